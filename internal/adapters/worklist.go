package adapters

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/policy/ratelimit"
)

const (
	// DefaultDetailLimit caps detail pages fetched per listing.
	DefaultDetailLimit = 50
	// DefaultDetailDelay spaces consecutive detail fetches to one host.
	DefaultDetailDelay = 500 * time.Millisecond
)

// Waiter blocks until a request to rawURL may proceed.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// WorkList drives the second level of a two-level crawl: a bounded, throttled
// walk over detail URLs where each failure is logged and skipped.
type WorkList struct {
	limit  int
	waiter Waiter
	logger *zap.Logger
}

// WorkListConfig tunes a WorkList.
type WorkListConfig struct {
	Limit int
	Delay time.Duration
}

// NewWorkList builds a WorkList with a per-host limiter spaced by cfg.Delay.
func NewWorkList(cfg WorkListConfig, logger *zap.Logger) *WorkList {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultDetailLimit
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDetailDelay
	}
	return NewWorkListWithWaiter(cfg.Limit, ratelimit.New(ratelimit.Config{Interval: cfg.Delay}), logger)
}

// NewWorkListWithWaiter builds a WorkList around a custom Waiter.
func NewWorkListWithWaiter(limit int, waiter Waiter, logger *zap.Logger) *WorkList {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkList{limit: limit, waiter: waiter, logger: logger}
}

// Run visits up to limit unique URLs in order. Items whose visit fails are
// skipped; only context cancellation stops the walk early.
func (w *WorkList) Run(
	ctx context.Context,
	urls []string,
	visit func(ctx context.Context, rawURL string) (crawler.Article, error),
) ([]crawler.Article, error) {
	seen := make(map[string]struct{}, len(urls))
	articles := make([]crawler.Article, 0, min(len(urls), w.limit))
	visited := 0
	for _, rawURL := range urls {
		if visited >= w.limit {
			w.logger.Info("detail limit reached", zap.Int("limit", w.limit), zap.Int("candidates", len(urls)))
			break
		}
		if _, dup := seen[rawURL]; dup {
			continue
		}
		seen[rawURL] = struct{}{}
		visited++

		if w.waiter != nil {
			if err := w.waiter.Wait(ctx, rawURL); err != nil {
				return articles, err
			}
		}
		article, err := visit(ctx, rawURL)
		if err != nil {
			if ctx.Err() != nil {
				return articles, fmt.Errorf("detail walk: %w", ctx.Err())
			}
			w.logger.Warn("detail page skipped", zap.String("url", rawURL), zap.Error(err))
			continue
		}
		articles = append(articles, article)
	}
	return articles, nil
}
