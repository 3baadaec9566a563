package cleaning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"heimdall/internal/domain"
	"heimdall/internal/idhash"
)

type newsPayload struct {
	Articles []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		PublishedAt string `json:"published_at"`
		Author      string `json:"author"`
		SourceName  string `json:"source_name"`
		Description string `json:"description"`
		Body        string `json:"body"`
	} `json:"articles"`
}

// cleanNews turns a news feed payload into deduplicatable items. The URL
// fingerprint is the identity; articles without title, URL, or a parseable
// publish time are dropped. Within one payload the first occurrence of a
// fingerprint wins, matching the insert-ignore semantics downstream.
func cleanNews(rec *domain.RawRecord) ([]*domain.NewsItem, error) {
	var payload newsPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.Articles == nil {
		return nil, fmt.Errorf("%w: missing articles", ErrMalformedPayload)
	}

	seen := make(map[string]bool, len(payload.Articles))
	items := make([]*domain.NewsItem, 0, len(payload.Articles))
	for _, art := range payload.Articles {
		title := strings.TrimSpace(art.Title)
		if title == "" || art.URL == "" {
			continue
		}
		publishedAt, err := time.Parse(time.RFC3339, art.PublishedAt)
		if err != nil {
			continue
		}

		fingerprint := idhash.NewsFingerprint(art.URL)
		if seen[fingerprint] {
			continue
		}
		seen[fingerprint] = true

		item := &domain.NewsItem{
			Fingerprint: fingerprint,
			TitleHash:   idhash.TitleHash(title),
			CatalogKey:  rec.CatalogKey,
			PublishedAt: publishedAt.UTC(),
			Title:       title,
			URL:         art.URL,
		}

		body := strings.TrimSpace(art.Body)
		if body == "" {
			body = strings.TrimSpace(art.Description)
		}
		if body != "" {
			item.Body = &body
		}
		if author := strings.TrimSpace(art.Author); author != "" {
			item.Author = &author
		}
		if source := strings.TrimSpace(art.SourceName); source != "" {
			item.SourceName = &source
		}

		items = append(items, item)
	}

	return items, nil
}
