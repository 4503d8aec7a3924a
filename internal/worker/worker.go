// Package worker consumes queued crawl requests and runs them through the
// orchestrator, re-enqueueing failed attempts after a backoff.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/metrics"
)

// Runner executes one crawl attempt.
type Runner interface {
	RunAttempt(ctx context.Context, campaignID, sourceID string, attempt int) (crawler.CrawlJob, error)
}

// Worker consumes queue items and executes crawl jobs.
type Worker struct {
	queue  crawler.Queue
	runner Runner
	retry  RetryPolicy
	logger *zap.Logger

	// after is time.After, replaceable in tests.
	after   func(time.Duration) <-chan time.Time
	pending sync.WaitGroup
}

// New constructs a Worker.
func New(queue crawler.Queue, runner Runner, retry RetryPolicy, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = DefaultMaxAttempts
	}
	if retry.Backoff < 0 {
		retry.Backoff = 0
	}
	return &Worker{
		queue:  queue,
		runner: runner,
		retry:  retry,
		logger: logger.Named("worker"),
		after:  time.After,
	}
}

// Run blocks, consuming queue items until the context finishes. Pending
// retries are abandoned on shutdown.
func (w *Worker) Run(ctx context.Context) {
	defer w.pending.Wait()
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, crawler.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.process(ctx, item)
	}
}

func (w *Worker) process(ctx context.Context, item crawler.QueueItem) {
	if item.Attempt <= 0 {
		item.Attempt = 1
	}
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	logger := w.logger.With(
		zap.String("campaign_id", item.CampaignID),
		zap.String("source_id", item.SourceID),
		zap.Int("attempt", item.Attempt),
	)
	job, err := w.runner.RunAttempt(ctx, item.CampaignID, item.SourceID, item.Attempt)
	if err == nil {
		logger.Debug("crawl job succeeded", zap.String("job_id", job.ID), zap.Int("articles", job.ArticleCount))
		return
	}
	if ctx.Err() != nil {
		logger.Info("crawl job interrupted by shutdown", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if !w.retry.ShouldRetry(err, item.Attempt) {
		logger.Error("crawl job failed, not retrying", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	next := item
	next.Attempt++
	logger.Warn("crawl job failed, retry scheduled",
		zap.String("job_id", job.ID),
		zap.Duration("backoff", w.retry.Backoff),
		zap.Error(err),
	)
	w.pending.Add(1)
	go w.requeue(ctx, next)
}

func (w *Worker) requeue(ctx context.Context, item crawler.QueueItem) {
	defer w.pending.Done()
	select {
	case <-ctx.Done():
		w.logger.Info("retry dropped on shutdown", zap.String("source_id", item.SourceID), zap.Int("attempt", item.Attempt))
		return
	case <-w.after(w.retry.Backoff):
	}
	if err := w.queue.Enqueue(ctx, item); err != nil {
		w.logger.Error("retry enqueue failed", zap.String("source_id", item.SourceID), zap.Error(err))
	}
}
