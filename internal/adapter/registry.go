package adapter

import "fmt"

// Source API identifiers as they appear in the data catalog.
const (
	SourceFRED    = "FRED"
	SourceYahoo   = "yfinance"
	SourceNewsAPI = "NewsAPI"
	SourceRSS     = "RSS"
)

// Registry maps catalog source_api values to adapters. Registration is
// explicit at startup; there is no dynamic loading.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register binds an adapter to a source API identifier.
func (r *Registry) Register(sourceAPI string, a Adapter) {
	r.adapters[sourceAPI] = a
}

// Get resolves an adapter. Returns ErrUnknownSource for unmapped sources.
func (r *Registry) Get(sourceAPI string) (Adapter, error) {
	a, ok := r.adapters[sourceAPI]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, sourceAPI)
	}
	return a, nil
}

// Sources lists the registered source API identifiers.
func (r *Registry) Sources() []string {
	sources := make([]string, 0, len(r.adapters))
	for s := range r.adapters {
		sources = append(sources, s)
	}
	return sources
}
