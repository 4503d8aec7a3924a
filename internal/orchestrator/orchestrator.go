// Package orchestrator drives one crawl job from dispatch to a terminal state:
// resolve an adapter, replace the source's stored articles with a fresh
// extraction, and signal indexing for each saved article.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/adapters"
	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/metrics"
)

var tracer = otel.Tracer("github.com/JakeFAU/news-crawler/internal/orchestrator")

// Resolver picks the adapter for a source.
type Resolver interface {
	Resolve(source crawler.Source) (adapters.Adapter, error)
}

// Deps are the collaborators an Orchestrator needs. Index is optional.
type Deps struct {
	Sources  crawler.SourceStore
	Articles crawler.ArticleStore
	Jobs     crawler.JobStore
	Index    crawler.IndexQueue
	Resolver Resolver
	IDs      crawler.IDGenerator
	Clock    crawler.Clock
}

// Orchestrator runs crawl jobs.
type Orchestrator struct {
	deps   Deps
	logger *zap.Logger
}

// New constructs an Orchestrator.
func New(deps Deps, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{deps: deps, logger: logger.Named("orchestrator")}
}

// Run executes a first-attempt crawl of sourceID under campaignID.
func (o *Orchestrator) Run(ctx context.Context, campaignID, sourceID string) (crawler.CrawlJob, error) {
	return o.RunAttempt(ctx, campaignID, sourceID, 1)
}

// RunAttempt executes one crawl attempt and returns the terminal job record.
// The returned error is the cause of a failed job; the job itself has already
// been persisted as failed.
func (o *Orchestrator) RunAttempt(
	ctx context.Context,
	campaignID string,
	sourceID string,
	attempt int,
) (crawler.CrawlJob, error) {
	jobID, err := o.deps.IDs.NewID()
	if err != nil {
		return crawler.CrawlJob{}, fmt.Errorf("job id: %w", err)
	}
	ctx, span := tracer.Start(ctx, "crawl", trace.WithAttributes(
		attribute.String("crawl.job_id", jobID),
		attribute.String("crawl.source_id", sourceID),
		attribute.Int("crawl.attempt", attempt),
	))
	defer span.End()

	job := crawler.CrawlJob{
		ID:         jobID,
		CampaignID: campaignID,
		SourceID:   sourceID,
		Status:     crawler.JobStatusPending,
		Attempt:    attempt,
	}
	if err := o.deps.Jobs.CreateJob(ctx, job); err != nil {
		return job, &crawler.PersistenceError{Op: "create crawl job", Err: err}
	}
	logger := o.logger.With(
		zap.String("job_id", jobID),
		zap.String("campaign_id", campaignID),
		zap.String("source_id", sourceID),
		zap.Int("attempt", attempt),
	)

	source, err := o.deps.Sources.GetSource(ctx, sourceID)
	if err != nil {
		return o.fail(ctx, logger, job, fmt.Errorf("load source: %w", err))
	}
	adapter, err := o.deps.Resolver.Resolve(source)
	if err != nil {
		return o.fail(ctx, logger, job, err)
	}
	logger = logger.With(zap.String("adapter", adapter.Name()))
	span.SetAttributes(attribute.String("crawl.adapter", adapter.Name()))

	started := o.deps.Clock.Now()
	if err := o.transition(ctx, &job, crawler.JobStatusInProgress, crawler.JobUpdate{StartedAt: &started}); err != nil {
		return o.fail(ctx, logger, job, err)
	}
	logger.Info("crawl started", zap.String("base_url", source.BaseURL))

	count, err := o.crawl(ctx, logger, job, source, adapter)
	metrics.ObserveJobDuration(adapter.Name(), o.deps.Clock.Now().Sub(started))
	if err != nil {
		job.ArticleCount = count
		return o.fail(ctx, logger, job, err)
	}

	finished := o.deps.Clock.Now()
	update := crawler.JobUpdate{StartedAt: job.StartedAt, FinishedAt: &finished, ArticleCount: count}
	if err := o.transition(ctx, &job, crawler.JobStatusSuccess, update); err != nil {
		job.ArticleCount = count
		return o.fail(ctx, logger, job, err)
	}
	metrics.ObserveJob(string(crawler.JobStatusSuccess))
	span.SetAttributes(attribute.Int("crawl.articles", count))
	metrics.ObserveArticles(adapter.Name(), count)

	if err := o.deps.Sources.UpdateSourceLastCrawled(ctx, source.ID, finished); err != nil {
		logger.Error("update source last crawled failed", zap.Error(err))
	}
	logger.Info("crawl finished", zap.Int("articles", count))
	return job, nil
}

func (o *Orchestrator) crawl(
	ctx context.Context,
	logger *zap.Logger,
	job crawler.CrawlJob,
	source crawler.Source,
	adapter adapters.Adapter,
) (int, error) {
	deleted, err := o.deps.Articles.DeleteArticlesBySource(ctx, source.ID)
	if err != nil {
		return 0, &crawler.PersistenceError{Op: "delete articles", Err: err}
	}
	if deleted > 0 {
		logger.Info("cleared previous articles", zap.Int("deleted", deleted))
	}

	articles, err := adapter.Extract(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}

	saved := 0
	for _, article := range articles {
		article.CampaignID = job.CampaignID
		article.SourceID = source.ID
		article.CrawlJobID = job.ID
		article.CreatedAt = o.deps.Clock.Now()
		articleID, err := o.deps.Articles.SaveArticle(ctx, article)
		if err != nil {
			return saved, &crawler.PersistenceError{Op: "save article", Err: err}
		}
		saved++
		o.signalIndex(ctx, logger, articleID)
	}
	return saved, nil
}

func (o *Orchestrator) signalIndex(ctx context.Context, logger *zap.Logger, articleID string) {
	if o.deps.Index == nil {
		return
	}
	if err := o.deps.Index.EnqueueIndex(ctx, articleID); err != nil {
		metrics.ObserveIndexSignal("enqueue", "error")
		logger.Warn("index signal failed", zap.String("article_id", articleID), zap.Error(err))
		return
	}
	metrics.ObserveIndexSignal("enqueue", "ok")
}

// fail records cause on the job and moves it to failed. Status writes use a
// context detached from cancellation so a canceled crawl still lands terminal.
func (o *Orchestrator) fail(
	ctx context.Context,
	logger *zap.Logger,
	job crawler.CrawlJob,
	cause error,
) (crawler.CrawlJob, error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(cause)
	span.SetStatus(codes.Error, "crawl failed")

	finished := o.deps.Clock.Now()
	update := crawler.JobUpdate{
		StartedAt:    job.StartedAt,
		FinishedAt:   &finished,
		ArticleCount: job.ArticleCount,
		ErrorMessage: cause.Error(),
	}
	if err := o.transition(context.WithoutCancel(ctx), &job, crawler.JobStatusFailed, update); err != nil {
		return job, errors.Join(cause, err)
	}
	metrics.ObserveJob(string(crawler.JobStatusFailed))
	if errors.Is(cause, crawler.ErrNoAdapter) {
		logger.Warn("no adapter for source", zap.Error(cause))
	} else {
		logger.Error("crawl failed", zap.Error(cause))
	}
	return job, cause
}

func (o *Orchestrator) transition(
	ctx context.Context,
	job *crawler.CrawlJob,
	next crawler.JobStatus,
	update crawler.JobUpdate,
) error {
	if !job.Status.CanTransition(next) {
		return fmt.Errorf("crawl job %s: illegal transition %s -> %s", job.ID, job.Status, next)
	}
	if err := o.deps.Jobs.UpdateCrawlJob(ctx, job.ID, next, update); err != nil {
		return &crawler.PersistenceError{Op: "update crawl job", Err: err}
	}
	job.Status = next
	job.StartedAt = update.StartedAt
	job.FinishedAt = update.FinishedAt
	job.ArticleCount = update.ArticleCount
	job.ErrorMessage = update.ErrorMessage
	return nil
}

// Elapsed returns the wall time of a terminal job, or zero.
func Elapsed(job crawler.CrawlJob) time.Duration {
	if job.StartedAt == nil || job.FinishedAt == nil {
		return 0
	}
	return job.FinishedAt.Sub(*job.StartedAt)
}
