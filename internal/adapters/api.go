package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/crawler"
)

var errUnexpectedShape = errors.New("unexpected API response structure")

// listKeys are the envelope keys that may hold the item array, in order.
var listKeys = []string{"articles", "results", "data"}

// APIReader extracts articles from JSON news APIs.
type APIReader struct {
	deps Deps
}

// NewAPIReader constructs an APIReader.
func NewAPIReader(deps Deps) *APIReader {
	return &APIReader{deps: deps.withDefaults("api")}
}

// Name implements Adapter.
func (r *APIReader) Name() string { return "API Crawler" }

// Priority implements Adapter.
func (r *APIReader) Priority() int { return PriorityAPI }

// Supports matches sources declared as api.
func (r *APIReader) Supports(source crawler.Source) bool {
	return source.Type == crawler.SourceTypeAPI
}

// Extract fetches the base URL and maps each item through the field aliases.
func (r *APIReader) Extract(ctx context.Context, source crawler.Source) ([]crawler.Article, error) {
	body, err := r.deps.fetch(ctx, source.BaseURL)
	if err != nil {
		return nil, &crawler.CrawlError{Adapter: r.Name(), Reason: "API request failed", Err: err}
	}
	items, err := decodeItems(body)
	if err != nil {
		return nil, &crawler.CrawlError{Adapter: r.Name(), Reason: "decode API response", Err: err}
	}

	articles := make([]crawler.Article, 0, len(items))
	for i, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			r.deps.Logger.Warn("skipping non-object API item", zap.Int("index", i), zap.String("source_id", source.ID))
			continue
		}
		articles = append(articles, r.toArticle(item, source))
	}
	r.deps.Logger.Info("API crawl completed", zap.String("source_id", source.ID), zap.Int("articles", len(articles)))
	return articles, nil
}

func (r *APIReader) toArticle(item map[string]any, source crawler.Source) crawler.Article {
	title := stringField(item, "title", "headline")
	if title == "" {
		title = "Untitled"
	}
	link := stringField(item, "url", "link")
	if link == "" {
		link = source.BaseURL
	}
	return crawler.NewArticle(
		r.Name(),
		title,
		link,
		stringField(item, "content", "body", "description"),
		stringField(item, "author", "byline"),
		parseDate(stringField(item, "publishedAt", "published_at", "date")),
		map[string]any{"source_type": string(crawler.SourceTypeAPI), "raw_data": item},
	)
}

// decodeItems accepts {articles|results|data: [...]} or a bare array.
func decodeItems(body []byte) ([]any, error) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	switch v := payload.(type) {
	case []any:
		return v, nil
	case map[string]any:
		for _, key := range listKeys {
			if list, ok := v[key].([]any); ok {
				return list, nil
			}
		}
	}
	return nil, errUnexpectedShape
}

// stringField returns the first alias holding a non-empty scalar value.
func stringField(item map[string]any, aliases ...string) string {
	for _, key := range aliases {
		switch v := item[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64, bool:
			return fmt.Sprint(v)
		}
	}
	return ""
}
