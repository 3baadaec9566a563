package adapter

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"heimdall/internal/domain"
)

const (
	defaultNewsAPIBaseURL = "https://newsapi.org/v2"

	// Article body extraction is best effort and bounded; a slow or
	// paywalled publisher must not stall the whole feed.
	bodyFetchConcurrency = 3
	bodyFetchTimeout     = 10 * time.Second
	maxBodyRunes         = 8000
)

// rawArticle is one article in the news payload.
type rawArticle struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at"` // RFC3339
	Author      string `json:"author,omitempty"`
	SourceName  string `json:"source_name,omitempty"`
	Description string `json:"description,omitempty"`
	Body        string `json:"body,omitempty"`
}

func marshalNewsPayload(articles []rawArticle) (*domain.Payload, error) {
	data, err := json.Marshal(map[string]any{"articles": articles})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &domain.Payload{Kind: domain.KindNewsFeed, Data: data}, nil
}

// NewsAPIAdapter fetches articles from the NewsAPI "everything" endpoint
// using the catalog entry's search keywords as the query.
type NewsAPIAdapter struct {
	client       *Client
	baseURL      string
	apiKey       string
	fetchBodies  bool
	bodyUpstream *Client
}

// NewsAPIOption configures NewsAPIAdapter.
type NewsAPIOption func(*NewsAPIAdapter)

// WithNewsAPIBaseURL overrides the API base URL. Used in tests.
func WithNewsAPIBaseURL(u string) NewsAPIOption {
	return func(a *NewsAPIAdapter) {
		a.baseURL = u
	}
}

// WithNewsAPIClient sets a custom HTTP client.
func WithNewsAPIClient(c *Client) NewsAPIOption {
	return func(a *NewsAPIAdapter) {
		a.client = c
		a.bodyUpstream = c
	}
}

// WithBodyExtraction toggles full-text body extraction from article pages.
func WithBodyExtraction(enabled bool) NewsAPIOption {
	return func(a *NewsAPIAdapter) {
		a.fetchBodies = enabled
	}
}

// NewNewsAPIAdapter creates a new NewsAPI adapter.
func NewNewsAPIAdapter(apiKey string, opts ...NewsAPIOption) *NewsAPIAdapter {
	a := &NewsAPIAdapter{
		client:      NewClient(),
		baseURL:     defaultNewsAPIBaseURL,
		apiKey:      apiKey,
		fetchBodies: true,
	}
	a.bodyUpstream = a.client
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Kind reports the news feed payload shape.
func (a *NewsAPIAdapter) Kind() domain.PayloadKind {
	return domain.KindNewsFeed
}

// ValidateConfig accepts any params; the query comes from search keywords.
func (a *NewsAPIAdapter) ValidateConfig(map[string]any) error {
	return nil
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Author      string `json:"author"`
		Description string `json:"description"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// FetchRaw queries NewsAPI for the entry's keywords and optionally
// extracts article bodies.
func (a *NewsAPIAdapter) FetchRaw(ctx context.Context, fc FetchContext) (*domain.Payload, error) {
	query := buildQuery(fc)
	if query == "" {
		return nil, fmt.Errorf("%w: no search keywords or query param", ErrConfigInvalid)
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("language", "en")
	q.Set("sortBy", "publishedAt")
	if start := IncrementalStart(fc); !start.IsZero() {
		q.Set("from", start.Format("2006-01-02"))
	}

	body, err := a.client.GetJSON(ctx, a.baseURL+"/everything?"+q.Encode(), map[string]string{
		"X-Api-Key": a.apiKey,
	})
	if err != nil {
		return nil, err
	}

	var resp newsAPIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Articles) == 0 {
		return nil, ErrNoData
	}

	articles := make([]rawArticle, 0, len(resp.Articles))
	for _, art := range resp.Articles {
		if art.Title == "" || art.URL == "" {
			continue
		}
		articles = append(articles, rawArticle{
			Title:       art.Title,
			URL:         art.URL,
			PublishedAt: art.PublishedAt,
			Author:      art.Author,
			SourceName:  art.Source.Name,
			Description: art.Description,
		})
	}
	if len(articles) == 0 {
		return nil, ErrNoData
	}

	if a.fetchBodies {
		fillBodies(ctx, a.bodyUpstream, articles)
	}

	return marshalNewsPayload(articles)
}

// DryRun probes the API with a minimal query.
func (a *NewsAPIAdapter) DryRun(ctx context.Context, fc FetchContext) error {
	query := buildQuery(fc)
	if query == "" {
		return fmt.Errorf("%w: no search keywords or query param", ErrConfigInvalid)
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("pageSize", "1")

	_, err := a.client.GetJSON(ctx, a.baseURL+"/everything?"+q.Encode(), map[string]string{
		"X-Api-Key": a.apiKey,
	})
	return err
}

// buildQuery prefers an explicit query param, falling back to OR-joined
// search keywords.
func buildQuery(fc FetchContext) string {
	if q, ok := stringParam(fc.ConfigParams, "query"); ok {
		return q
	}
	if len(fc.SearchKeywords) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(fc.SearchKeywords))
	for _, kw := range fc.SearchKeywords {
		quoted = append(quoted, `"`+kw+`"`)
	}
	return strings.Join(quoted, " OR ")
}

var _ Adapter = (*NewsAPIAdapter)(nil)

// RSSAdapter fetches articles from configured RSS feeds.
type RSSAdapter struct {
	client      *Client
	fetchBodies bool
}

// RSSOption configures RSSAdapter.
type RSSOption func(*RSSAdapter)

// WithRSSClient sets a custom HTTP client.
func WithRSSClient(c *Client) RSSOption {
	return func(a *RSSAdapter) {
		a.client = c
	}
}

// WithRSSBodyExtraction toggles full-text body extraction.
func WithRSSBodyExtraction(enabled bool) RSSOption {
	return func(a *RSSAdapter) {
		a.fetchBodies = enabled
	}
}

// NewRSSAdapter creates a new RSS adapter.
func NewRSSAdapter(opts ...RSSOption) *RSSAdapter {
	a := &RSSAdapter{
		client:      NewClient(),
		fetchBodies: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Kind reports the news feed payload shape.
func (a *RSSAdapter) Kind() domain.PayloadKind {
	return domain.KindNewsFeed
}

// ValidateConfig requires a non-empty feed_urls list.
func (a *RSSAdapter) ValidateConfig(params map[string]any) error {
	if _, ok := stringSliceParam(params, "feed_urls"); !ok {
		return fmt.Errorf("%w: feed_urls must be a non-empty string list", ErrConfigInvalid)
	}
	return nil
}

// rssFeed covers the RSS 2.0 subset the tracked feeds actually emit.
type rssFeed struct {
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			PubDate     string `xml:"pubDate"`
			Author      string `xml:"author"`
			Creator     string `xml:"creator"`
			Description string `xml:"description"`
		} `xml:"item"`
	} `xml:"channel"`
}

// FetchRaw fetches every configured feed concurrently and merges the items.
func (a *RSSAdapter) FetchRaw(ctx context.Context, fc FetchContext) (*domain.Payload, error) {
	feedURLs, ok := stringSliceParam(fc.ConfigParams, "feed_urls")
	if !ok {
		return nil, fmt.Errorf("%w: feed_urls must be a non-empty string list", ErrConfigInvalid)
	}

	var mu sync.Mutex
	var articles []rawArticle

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bodyFetchConcurrency)

	for _, feedURL := range feedURLs {
		g.Go(func() error {
			items, err := a.fetchFeed(gctx, feedURL)
			if err != nil {
				return fmt.Errorf("feed %s: %w", feedURL, err)
			}
			mu.Lock()
			articles = append(articles, items...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, ErrNoData
	}

	if a.fetchBodies {
		fillBodies(ctx, a.client, articles)
	}

	return marshalNewsPayload(articles)
}

// DryRun validates params and probes the first feed.
func (a *RSSAdapter) DryRun(ctx context.Context, fc FetchContext) error {
	feedURLs, ok := stringSliceParam(fc.ConfigParams, "feed_urls")
	if !ok {
		return fmt.Errorf("%w: feed_urls must be a non-empty string list", ErrConfigInvalid)
	}

	_, err := a.fetchFeed(ctx, feedURLs[0])
	return err
}

func (a *RSSAdapter) fetchFeed(ctx context.Context, feedURL string) ([]rawArticle, error) {
	body, err := a.client.GetJSON(ctx, feedURL, map[string]string{"Accept": "application/rss+xml, application/xml"})
	if err != nil {
		return nil, err
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	sourceName := feedSourceName(feedURL)
	articles := make([]rawArticle, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		if item.Title == "" || item.Link == "" {
			continue
		}
		author := item.Author
		if author == "" {
			author = item.Creator
		}
		articles = append(articles, rawArticle{
			Title:       strings.TrimSpace(item.Title),
			URL:         item.Link,
			PublishedAt: normalizePubDate(item.PubDate),
			Author:      author,
			SourceName:  sourceName,
			Description: item.Description,
		})
	}

	return articles, nil
}

// normalizePubDate converts common RSS date formats to RFC3339. Unparseable
// dates pass through untouched for the cleaning layer to reject.
func normalizePubDate(pubDate string) string {
	pubDate = strings.TrimSpace(pubDate)
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC3339} {
		if t, err := time.Parse(layout, pubDate); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return pubDate
}

func feedSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return feedURL
	}
	return strings.TrimPrefix(u.Host, "www.")
}

var _ Adapter = (*RSSAdapter)(nil)

// fillBodies extracts article text for each article concurrently. Failures
// are tolerated; the article keeps an empty body.
func fillBodies(ctx context.Context, client *Client, articles []rawArticle) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, bodyFetchConcurrency)

	for i := range articles {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			fetchCtx, cancel := context.WithTimeout(ctx, bodyFetchTimeout)
			defer cancel()

			page, err := client.GetJSON(fetchCtx, articles[i].URL, map[string]string{"Accept": "text/html"})
			if err != nil {
				return
			}
			articles[i].Body = ExtractArticleText(page)
		}()
	}
	wg.Wait()
}

// ExtractArticleText pulls paragraph text out of an HTML page, skipping
// script, style and nav subtrees. The result is capped to keep pathological
// pages out of the raw cache.
func ExtractArticleText(page []byte) string {
	doc, err := html.Parse(strings.NewReader(string(page)))
	if err != nil {
		return ""
	}

	var paragraphs []string
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "nav", "header", "footer", "aside":
				return
			case "p":
				text := strings.TrimSpace(collectText(n))
				if len(text) > 40 { // skip boilerplate stubs
					paragraphs = append(paragraphs, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)

	body := strings.Join(paragraphs, "\n\n")
	runes := []rune(body)
	if len(runes) > maxBodyRunes {
		body = string(runes[:maxBodyRunes])
	}
	return body
}

func collectText(n *html.Node) string {
	var sb strings.Builder
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}
