package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/crawler"
)

// FeedPaths are appended to a source's base URL when looking for its feed.
var FeedPaths = []string{"/feed", "/rss", "/rss.xml", "/feed.xml", "/atom.xml"}

// FeedReader extracts articles from RSS and Atom feeds.
type FeedReader struct {
	deps Deps
}

// NewFeedReader constructs a FeedReader.
func NewFeedReader(deps Deps) *FeedReader {
	return &FeedReader{deps: deps.withDefaults("feed")}
}

// Name implements Adapter.
func (r *FeedReader) Name() string { return "RSS Feed Crawler" }

// Priority implements Adapter.
func (r *FeedReader) Priority() int { return PriorityFeed }

// Supports matches sources declared as rss.
func (r *FeedReader) Supports(source crawler.Source) bool {
	return source.Type == crawler.SourceTypeRSS
}

// Extract tries the candidate feed URLs in order; the first one that fetches
// and parses wins.
func (r *FeedReader) Extract(ctx context.Context, source crawler.Source) ([]crawler.Article, error) {
	var lastErr error
	for _, candidate := range feedCandidates(source.BaseURL) {
		body, err := r.deps.fetch(ctx, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &crawler.CrawlError{Adapter: r.Name(), Reason: "fetch feed", Err: err}
			}
			r.deps.Logger.Debug("feed candidate failed", zap.String("url", candidate), zap.Error(err))
			lastErr = err
			continue
		}
		articles, err := parseFeed(r.Name(), body, source.BaseURL, nil)
		if err != nil {
			r.deps.Logger.Debug("feed candidate unparseable", zap.String("url", candidate), zap.Error(err))
			lastErr = err
			continue
		}
		r.deps.Logger.Info("feed parsed",
			zap.String("source_id", source.ID),
			zap.String("url", candidate),
			zap.Int("articles", len(articles)),
		)
		return articles, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no feed candidates")
	}
	return nil, &crawler.CrawlError{
		Adapter: r.Name(),
		Reason:  fmt.Sprintf("failed to fetch RSS feed from %s", source.BaseURL),
		Err:     lastErr,
	}
}

// feedCandidates lists the URLs to try for a feed; a base URL that already
// looks like a feed is tried first.
func feedCandidates(base string) []string {
	out := make([]string, 0, len(FeedPaths)+1)
	if looksLikeFeed(base) {
		out = append(out, base)
	}
	for _, path := range FeedPaths {
		out = append(out, joinPath(base, path))
	}
	return out
}

func looksLikeFeed(rawURL string) bool {
	lower := strings.ToLower(strings.TrimRight(rawURL, "/"))
	for _, suffix := range []string{".xml", ".rss", ".atom", "/feed", "/rss", "/atom"} {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// parseFeed converts an RSS or Atom document into articles. Items without a
// parseable date carry no PublishedAt.
func parseFeed(adapter string, body []byte, baseURL string, extra map[string]any) ([]crawler.Article, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	articles := make([]crawler.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = "Untitled"
		}
		link := strings.TrimSpace(item.Link)
		if link == "" {
			link = baseURL
		}

		meta := map[string]any{"feed_type": feed.FeedType}
		content := item.Description
		if feed.FeedType == "atom" {
			if item.Content != "" {
				content = item.Content
			}
			if item.GUID != "" {
				meta["id"] = item.GUID
			}
		} else {
			if content == "" {
				content = item.Content
			}
			if item.GUID != "" {
				meta["guid"] = item.GUID
			}
		}
		for k, v := range extra {
			meta[k] = v
		}

		articles = append(articles, crawler.NewArticle(
			adapter,
			title,
			link,
			strings.TrimSpace(content),
			feedAuthor(item),
			item.PublishedParsed,
			meta,
		))
	}
	return articles, nil
}

func feedAuthor(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	for _, author := range item.Authors {
		if author != nil && author.Name != "" {
			return author.Name
		}
	}
	return ""
}
