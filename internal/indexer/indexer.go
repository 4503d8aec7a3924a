// Package indexer turns index signals into search documents. Signals carry
// only an article ID; the indexer loads the article, decorates it with its
// campaign and source names, and writes it to the search backend.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/metrics"
)

// DefaultIndex is the search index articles are written to.
const DefaultIndex = "articles"

// Document is the search representation of an article.
type Document struct {
	ID           string         `json:"id"`
	CampaignID   string         `json:"campaign_id"`
	SourceID     string         `json:"source_id"`
	CrawlJobID   string         `json:"crawl_job_id"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	URL          string         `json:"url"`
	Author       string         `json:"author,omitempty"`
	PublishedAt  *time.Time     `json:"published_at,omitempty"`
	Summary      string         `json:"summary"`
	Metadata     map[string]any `json:"metadata"`
	CampaignName string         `json:"campaign_name,omitempty"`
	SourceName   string         `json:"source_name,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// DocumentWriter stores a document under id.
type DocumentWriter interface {
	IndexDocument(ctx context.Context, id string, doc Document) error
}

// Config tunes an Indexer.
type Config struct {
	Attempts int
	Backoff  time.Duration
}

// Indexer loads articles and writes their documents.
type Indexer struct {
	articles  crawler.ArticleStore
	sources   crawler.SourceStore
	campaigns crawler.CampaignStore
	writer    DocumentWriter
	clock     crawler.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Indexer. sources and campaigns are optional and only
// used to fill display names.
func New(
	articles crawler.ArticleStore,
	sources crawler.SourceStore,
	campaigns crawler.CampaignStore,
	writer DocumentWriter,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Indexer {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		articles:  articles,
		sources:   sources,
		campaigns: campaigns,
		writer:    writer,
		clock:     clock,
		cfg:       cfg,
		logger:    logger.Named("indexer"),
	}
}

// Run indexes every article ID received on signals until ctx ends or the
// channel closes. Failures are logged; the loop keeps going.
func (ix *Indexer) Run(ctx context.Context, signals <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-signals:
			if !ok {
				return
			}
			if err := ix.Index(ctx, id); err != nil {
				ix.logger.Error("index article failed", zap.String("article_id", id), zap.Error(err))
			}
		}
	}
}

// Handle decodes one transport message and indexes the article it names.
func (ix *Indexer) Handle(ctx context.Context, data []byte) error {
	id, err := DecodeSignal(data)
	if err != nil {
		return err
	}
	return ix.Index(ctx, id)
}

// Index writes the document for articleID, retrying transient failures.
// Articles deleted by a later crawl are skipped.
func (ix *Indexer) Index(ctx context.Context, articleID string) error {
	article, err := ix.articles.GetArticle(ctx, articleID)
	if err != nil {
		if errors.Is(err, crawler.ErrNotFound) {
			metrics.ObserveIndexSignal("index", "skipped")
			ix.logger.Info("article gone before indexing", zap.String("article_id", articleID))
			return nil
		}
		metrics.ObserveIndexSignal("index", "error")
		return fmt.Errorf("load article %s: %w", articleID, err)
	}
	doc := BuildDocument(article, ix.campaignName(ctx, article.CampaignID), ix.sourceName(ctx, article.SourceID))
	doc.UpdatedAt = ix.now()

	var lastErr error
	for attempt := 1; attempt <= ix.cfg.Attempts; attempt++ {
		if lastErr = ix.writer.IndexDocument(ctx, article.ID, doc); lastErr == nil {
			metrics.ObserveIndexSignal("index", "ok")
			ix.logger.Debug("article indexed", zap.String("article_id", articleID), zap.Int("attempt", attempt))
			return nil
		}
		if attempt == ix.cfg.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			metrics.ObserveIndexSignal("index", "error")
			return fmt.Errorf("index article %s: %w", articleID, ctx.Err())
		case <-time.After(ix.cfg.Backoff):
		}
	}
	metrics.ObserveIndexSignal("index", "error")
	return fmt.Errorf("index article %s after %d attempts: %w", articleID, ix.cfg.Attempts, lastErr)
}

func (ix *Indexer) now() time.Time {
	if ix.clock == nil {
		return time.Now().UTC()
	}
	return ix.clock.Now()
}

func (ix *Indexer) sourceName(ctx context.Context, id string) string {
	if ix.sources == nil || id == "" {
		return ""
	}
	source, err := ix.sources.GetSource(ctx, id)
	if err != nil {
		return ""
	}
	return source.Name
}

func (ix *Indexer) campaignName(ctx context.Context, id string) string {
	if ix.campaigns == nil || id == "" {
		return ""
	}
	campaigns, err := ix.campaigns.ListCampaigns(ctx)
	if err != nil {
		return ""
	}
	for _, c := range campaigns {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}

// BuildDocument maps an article to its search document.
func BuildDocument(article crawler.Article, campaignName, sourceName string) Document {
	meta := article.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return Document{
		ID:           article.ID,
		CampaignID:   article.CampaignID,
		SourceID:     article.SourceID,
		CrawlJobID:   article.CrawlJobID,
		Title:        article.Title,
		Content:      article.Content,
		URL:          article.URL,
		Author:       article.Author,
		PublishedAt:  article.PublishedAt,
		Summary:      article.Summary,
		Metadata:     meta,
		CampaignName: campaignName,
		SourceName:   sourceName,
		CreatedAt:    article.CreatedAt,
		UpdatedAt:    article.CreatedAt,
	}
}

// Signal is the wire form of an index request.
type Signal struct {
	ArticleID string `json:"article_id"`
}

// DecodeSignal parses a transport payload.
func DecodeSignal(data []byte) (string, error) {
	var s Signal
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("decode index signal: %w", err)
	}
	if s.ArticleID == "" {
		return "", errors.New("decode index signal: missing article_id")
	}
	return s.ArticleID, nil
}
