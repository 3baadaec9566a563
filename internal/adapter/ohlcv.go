package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"heimdall/internal/domain"
)

const (
	defaultYahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	defaultYahooRange   = "10y"
)

// YahooAdapter fetches daily OHLCV history from the Yahoo Finance chart API.
type YahooAdapter struct {
	client  *Client
	baseURL string
}

// YahooOption configures YahooAdapter.
type YahooOption func(*YahooAdapter)

// WithYahooBaseURL overrides the API base URL. Used in tests.
func WithYahooBaseURL(u string) YahooOption {
	return func(a *YahooAdapter) {
		a.baseURL = u
	}
}

// WithYahooClient sets a custom HTTP client.
func WithYahooClient(c *Client) YahooOption {
	return func(a *YahooAdapter) {
		a.client = c
	}
}

// NewYahooAdapter creates a new Yahoo Finance adapter.
func NewYahooAdapter(opts ...YahooOption) *YahooAdapter {
	a := &YahooAdapter{
		client:  NewClient(),
		baseURL: defaultYahooBaseURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Kind reports the OHLCV history payload shape.
func (a *YahooAdapter) Kind() domain.PayloadKind {
	return domain.KindOHLCVHistory
}

// ValidateConfig requires a ticker symbol.
func (a *YahooAdapter) ValidateConfig(params map[string]any) error {
	if _, ok := stringParam(params, "ticker"); !ok {
		return fmt.Errorf("%w: ticker must be a non-empty string", ErrConfigInvalid)
	}
	return nil
}

// yahooChart is the response structure from the Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// historicalBar is one bar in the raw payload.
type historicalBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// FetchRaw fetches daily bars for the configured ticker. The first fetch
// for a key pulls the full configured range; incremental fetches narrow
// the range by the role's lookback.
func (a *YahooAdapter) FetchRaw(ctx context.Context, fc FetchContext) (*domain.Payload, error) {
	ticker, ok := stringParam(fc.ConfigParams, "ticker")
	if !ok {
		return nil, fmt.Errorf("%w: ticker must be a non-empty string", ErrConfigInvalid)
	}

	rng := defaultYahooRange
	if p, ok := stringParam(fc.ConfigParams, "period"); ok {
		rng = p
	}
	if start := IncrementalStart(fc); !start.IsZero() {
		rng = incrementalRange(fc.Now.UTC().Sub(start))
	}

	bars, err := a.fetchChart(ctx, ticker, rng)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}

	data, err := json.Marshal(map[string]any{
		"mode": "history",
		"data": map[string]any{"historical_data": bars},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return &domain.Payload{Kind: domain.KindOHLCVHistory, Data: data}, nil
}

// DryRun validates params and probes the ticker with a minimal range.
func (a *YahooAdapter) DryRun(ctx context.Context, fc FetchContext) error {
	ticker, ok := stringParam(fc.ConfigParams, "ticker")
	if !ok {
		return fmt.Errorf("%w: ticker must be a non-empty string", ErrConfigInvalid)
	}

	bars, err := a.fetchChart(ctx, ticker, "5d")
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return ErrNoData
	}
	return nil
}

func (a *YahooAdapter) fetchChart(ctx context.Context, ticker, rng string) ([]historicalBar, error) {
	u := fmt.Sprintf("%s/%s?interval=1d&range=%s", a.baseURL, url.PathEscape(ticker), rng)

	body, err := a.client.GetJSON(ctx, u, nil)
	if err != nil {
		return nil, err
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoData, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	bars := make([]historicalBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue // null bars on holidays
		}
		bar := historicalBar{
			Date:  time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Close: *quote.Close[i],
		}
		if i < len(quote.Open) && quote.Open[i] != nil {
			bar.Open = *quote.Open[i]
		}
		if i < len(quote.High) && quote.High[i] != nil {
			bar.High = *quote.High[i]
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			bar.Low = *quote.Low[i]
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		bars = append(bars, bar)
	}

	return bars, nil
}

// incrementalRange maps a lookback duration onto the coarse range values
// the chart API accepts.
func incrementalRange(d time.Duration) string {
	days := int(d.Hours() / 24)
	switch {
	case days <= 5:
		return "5d"
	case days <= 30:
		return "1mo"
	case days <= 90:
		return "3mo"
	default:
		return "6mo"
	}
}

var _ Adapter = (*YahooAdapter)(nil)
