package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heimdall/internal/domain"
)

func decodeArticles(t *testing.T, payload *domain.Payload) []rawArticle {
	t.Helper()
	var decoded struct {
		Articles []rawArticle `json:"articles"`
	}
	require.NoError(t, json.Unmarshal(payload.Data, &decoded))
	return decoded.Articles
}

func TestNewsAPIAdapter_FetchRaw(t *testing.T) {
	var gotQuery, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/everything", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotKey = r.Header.Get("X-Api-Key")
		fmt.Fprint(w, `{"status":"ok","articles":[
			{"title":"NVIDIA beats estimates","url":"https://example.com/a","publishedAt":"2025-06-01T14:00:00Z","author":"Jo","source":{"name":"Example"}},
			{"title":"","url":"https://example.com/empty"}
		]}`)
	}))
	defer srv.Close()

	a := NewNewsAPIAdapter("secret", WithNewsAPIBaseURL(srv.URL), WithBodyExtraction(false))

	payload, err := a.FetchRaw(context.Background(), FetchContext{
		CatalogKey:     "NEWS_NVDA",
		Frequency:      domain.FrequencyHourly,
		SearchKeywords: []string{"NVIDIA", "NVDA"},
		Now:            time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.KindNewsFeed, payload.Kind)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, `"NVIDIA" OR "NVDA"`, gotQuery)

	articles := decodeArticles(t, payload)
	require.Len(t, articles, 1) // titleless article dropped
	assert.Equal(t, "NVIDIA beats estimates", articles[0].Title)
	assert.Equal(t, "Example", articles[0].SourceName)
}

func TestNewsAPIAdapter_NoKeywords(t *testing.T) {
	a := NewNewsAPIAdapter("secret", WithBodyExtraction(false))

	_, err := a.FetchRaw(context.Background(), FetchContext{Now: time.Now().UTC()})
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestNewsAPIAdapter_QueryParamOverridesKeywords(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprint(w, `{"status":"ok","articles":[{"title":"T","url":"https://example.com/a"}]}`)
	}))
	defer srv.Close()

	a := NewNewsAPIAdapter("secret", WithNewsAPIBaseURL(srv.URL), WithBodyExtraction(false))

	_, err := a.FetchRaw(context.Background(), FetchContext{
		ConfigParams:   map[string]any{"query": "semiconductors AND exports"},
		SearchKeywords: []string{"ignored"},
		Now:            time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, "semiconductors AND exports", gotQuery)
}

func TestNewsAPIAdapter_EmptyFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok","articles":[]}`)
	}))
	defer srv.Close()

	a := NewNewsAPIAdapter("secret", WithNewsAPIBaseURL(srv.URL), WithBodyExtraction(false))

	_, err := a.FetchRaw(context.Background(), FetchContext{
		SearchKeywords: []string{"NVDA"},
		Now:            time.Now().UTC(),
	})
	assert.ErrorIs(t, err, ErrNoData)
}

const rssSample = `<?xml version="1.0"?>
<rss version="2.0"><channel>
	<title>Feed</title>
	<item>
		<title>  Rate cut expected  </title>
		<link>https://feeds.example.com/rate-cut</link>
		<pubDate>Mon, 02 Jun 2025 09:00:00 +0000</pubDate>
		<description>Markets price in a cut.</description>
	</item>
	<item>
		<title>No link item</title>
	</item>
</channel></rss>`

func TestRSSAdapter_FetchRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssSample)
	}))
	defer srv.Close()

	a := NewRSSAdapter(WithRSSBodyExtraction(false))

	payload, err := a.FetchRaw(context.Background(), FetchContext{
		CatalogKey:   "NEWS_MACRO_RSS",
		ConfigParams: map[string]any{"feed_urls": []any{srv.URL + "/feed.xml"}},
		Now:          time.Now().UTC(),
	})
	require.NoError(t, err)

	articles := decodeArticles(t, payload)
	require.Len(t, articles, 1)
	assert.Equal(t, "Rate cut expected", articles[0].Title)
	assert.Equal(t, "2025-06-02T09:00:00Z", articles[0].PublishedAt)
	assert.Equal(t, "Markets price in a cut.", articles[0].Description)
	assert.NotEmpty(t, articles[0].SourceName)
}

func TestRSSAdapter_ValidateConfig(t *testing.T) {
	a := NewRSSAdapter()

	assert.NoError(t, a.ValidateConfig(map[string]any{"feed_urls": []any{"https://x/feed"}}))
	assert.ErrorIs(t, a.ValidateConfig(map[string]any{}), ErrConfigInvalid)
}

func TestRSSAdapter_BadFeedFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not a feed")
	}))
	defer srv.Close()

	a := NewRSSAdapter(WithRSSBodyExtraction(false))

	_, err := a.FetchRaw(context.Background(), FetchContext{
		ConfigParams: map[string]any{"feed_urls": []any{srv.URL}},
		Now:          time.Now().UTC(),
	})
	assert.Error(t, err)
}

func TestNormalizePubDate(t *testing.T) {
	assert.Equal(t, "2025-06-02T09:00:00Z", normalizePubDate("Mon, 02 Jun 2025 09:00:00 +0000"))
	assert.Equal(t, "2025-06-02T09:00:00Z", normalizePubDate("2025-06-02T09:00:00Z"))
	// Unparseable dates pass through for the cleaner to reject
	assert.Equal(t, "yesterday", normalizePubDate("yesterday"))
}

func TestExtractArticleText(t *testing.T) {
	longA := strings.Repeat("The central bank held rates steady. ", 3)
	longB := strings.Repeat("Analysts expect two cuts this year. ", 3)
	page := `<html><head><style>p{color:red}</style></head><body>
		<nav><p>` + longA + `</p></nav>
		<article><p>` + longA + `</p><p>short</p><p>` + longB + `</p></article>
		<script>var x = 1;</script>
	</body></html>`

	text := ExtractArticleText([]byte(page))
	paragraphs := strings.Split(text, "\n\n")
	require.Len(t, paragraphs, 2) // nav, short stub and script excluded
	assert.Contains(t, paragraphs[0], "held rates steady")
	assert.Contains(t, paragraphs[1], "two cuts")
}

func TestExtractArticleText_CapsLength(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 500; i++ {
		sb.WriteString("<p>" + strings.Repeat("word ", 20) + "</p>")
	}
	sb.WriteString("</body></html>")

	text := ExtractArticleText([]byte(sb.String()))
	assert.LessOrEqual(t, len([]rune(text)), maxBodyRunes)
}
