package crawler

import (
	"context"
	"io"
	"time"
)

// SourceStore reads sources and records successful crawls.
type SourceStore interface {
	GetSource(ctx context.Context, sourceID string) (Source, error)
	ListSources(ctx context.Context) ([]Source, error)
	UpdateSourceLastCrawled(ctx context.Context, sourceID string, at time.Time) error
}

// CampaignStore lists campaigns for the scheduler.
type CampaignStore interface {
	ListCampaigns(ctx context.Context) ([]Campaign, error)
}

// ArticleStore persists extracted articles.
type ArticleStore interface {
	SaveArticle(ctx context.Context, article Article) (string, error)
	DeleteArticlesBySource(ctx context.Context, sourceID string) (int, error)
	GetArticle(ctx context.Context, articleID string) (Article, error)
	ListArticlesBySource(ctx context.Context, sourceID string) ([]Article, error)
}

// JobStore persists crawl job records.
type JobStore interface {
	CreateJob(ctx context.Context, job CrawlJob) error
	UpdateCrawlJob(ctx context.Context, jobID string, status JobStatus, update JobUpdate) error
	GetJob(ctx context.Context, jobID string) (CrawlJob, error)
}

// JobLister lists crawl jobs newest first.
type JobLister interface {
	ListJobs(ctx context.Context, filter JobFilter) ([]CrawlJob, error)
}

// IndexQueue receives fire-and-forget indexing signals.
type IndexQueue interface {
	EnqueueIndex(ctx context.Context, articleID string) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes messages to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Queue provides enqueue/dequeue semantics for crawl requests.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
