package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/news-crawler/internal/crawler"
)

// JobStore provides an in-memory crawl job table for development/testing.
type JobStore struct {
	mu    sync.RWMutex
	jobs  map[string]crawler.CrawlJob
	order []string
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]crawler.CrawlJob)}
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(_ context.Context, job crawler.CrawlJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("crawl job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	return nil
}

// UpdateCrawlJob applies a status transition. Terminal jobs are immutable.
func (s *JobStore) UpdateCrawlJob(
	_ context.Context,
	jobID string,
	status crawler.JobStatus,
	update crawler.JobUpdate,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("crawl job %s: %w", jobID, crawler.ErrNotFound)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("crawl job %s is %s", jobID, job.Status)
	}
	job.Status = status
	job.StartedAt = copyTime(update.StartedAt)
	job.FinishedAt = copyTime(update.FinishedAt)
	job.ArticleCount = update.ArticleCount
	job.ErrorMessage = update.ErrorMessage
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (crawler.CrawlJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawler.CrawlJob{}, fmt.Errorf("crawl job %s: %w", jobID, crawler.ErrNotFound)
	}
	return job, nil
}

// ListJobs returns jobs matching filter, newest first.
func (s *JobStore) ListJobs(_ context.Context, filter crawler.JobFilter) ([]crawler.CrawlJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []crawler.CrawlJob{}
	skipped := 0
	for i := len(s.order) - 1; i >= 0; i-- {
		job := s.jobs[s.order[i]]
		if !filter.Matches(job) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, job)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	ts := *t
	return &ts
}
