package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"heimdall/internal/domain"
)

const (
	defaultFREDBaseURL = "https://api.stlouisfed.org/fred"

	// One in-flight observation request per series, capped so a catalog
	// entry with many series ids does not hammer the API.
	fredFetchConcurrency = 4
)

// FREDAdapter fetches macro series observations from the FRED API.
// A catalog entry may aggregate several series ids; all of them are
// fetched concurrently and packed into one payload keyed by series id.
type FREDAdapter struct {
	client  *Client
	baseURL string
	apiKey  string
}

// FREDOption configures FREDAdapter.
type FREDOption func(*FREDAdapter)

// WithFREDBaseURL overrides the API base URL. Used in tests.
func WithFREDBaseURL(u string) FREDOption {
	return func(a *FREDAdapter) {
		a.baseURL = u
	}
}

// WithFREDClient sets a custom HTTP client.
func WithFREDClient(c *Client) FREDOption {
	return func(a *FREDAdapter) {
		a.client = c
	}
}

// NewFREDAdapter creates a new FRED adapter.
func NewFREDAdapter(apiKey string, opts ...FREDOption) *FREDAdapter {
	a := &FREDAdapter{
		client:  NewClient(),
		baseURL: defaultFREDBaseURL,
		apiKey:  apiKey,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Kind reports the macro series payload shape.
func (a *FREDAdapter) Kind() domain.PayloadKind {
	return domain.KindMacroSeries
}

// ValidateConfig requires a non-empty series_ids list.
func (a *FREDAdapter) ValidateConfig(params map[string]any) error {
	if _, ok := stringSliceParam(params, "series_ids"); !ok {
		return fmt.Errorf("%w: series_ids must be a non-empty string list", ErrConfigInvalid)
	}
	return nil
}

// fredObservation mirrors one observation in the FRED response. Values
// stay strings here; the cleaning layer parses them and drops the "."
// missing-value sentinel.
type fredObservation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

type fredObservationsResponse struct {
	Observations []fredObservation `json:"observations"`
}

type seriesBlock struct {
	Observations []fredObservation `json:"observations"`
}

// FetchRaw fetches observations for every configured series id and packs
// them into a single payload.
func (a *FREDAdapter) FetchRaw(ctx context.Context, fc FetchContext) (*domain.Payload, error) {
	seriesIDs, ok := stringSliceParam(fc.ConfigParams, "series_ids")
	if !ok {
		return nil, fmt.Errorf("%w: series_ids must be a non-empty string list", ErrConfigInvalid)
	}

	start := IncrementalStart(fc)

	var mu sync.Mutex
	seriesData := make(map[string]seriesBlock, len(seriesIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fredFetchConcurrency)

	for _, id := range seriesIDs {
		g.Go(func() error {
			obs, err := a.fetchObservations(gctx, id, start, 0)
			if err != nil {
				return fmt.Errorf("series %s: %w", id, err)
			}
			mu.Lock()
			seriesData[id] = seriesBlock{Observations: obs}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, block := range seriesData {
		total += len(block.Observations)
	}
	if total == 0 {
		return nil, ErrNoData
	}

	data, err := json.Marshal(map[string]any{"series_data": seriesData})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return &domain.Payload{Kind: domain.KindMacroSeries, Data: data}, nil
}

// DryRun validates params and probes the first series with a single
// observation request.
func (a *FREDAdapter) DryRun(ctx context.Context, fc FetchContext) error {
	seriesIDs, ok := stringSliceParam(fc.ConfigParams, "series_ids")
	if !ok {
		return fmt.Errorf("%w: series_ids must be a non-empty string list", ErrConfigInvalid)
	}

	obs, err := a.fetchObservations(ctx, seriesIDs[0], fc.Now.UTC().AddDate(-1, 0, 0), 1)
	if err != nil {
		return err
	}
	if len(obs) == 0 {
		return ErrNoData
	}
	return nil
}

func (a *FREDAdapter) fetchObservations(ctx context.Context, seriesID string, start time.Time, limit int) ([]fredObservation, error) {
	q := url.Values{}
	q.Set("series_id", seriesID)
	q.Set("api_key", a.apiKey)
	q.Set("file_type", "json")
	q.Set("sort_order", "asc")
	if !start.IsZero() {
		q.Set("observation_start", start.Format("2006-01-02"))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}

	body, err := a.client.GetJSON(ctx, a.baseURL+"/series/observations?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp fredObservationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return resp.Observations, nil
}

var _ Adapter = (*FREDAdapter)(nil)
