// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"time"
	"unicode/utf8"
)

// SourceType is the declared family of a news source.
type SourceType string

// Source types understood by the registered adapters.
const (
	SourceTypeWebsite SourceType = "website"
	SourceTypeRSS     SourceType = "rss"
	SourceTypeAPI     SourceType = "api"
)

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusSuccess    JobStatus = "success"
	JobStatusFailed     JobStatus = "failed"
)

// SummaryLength is the number of characters of content copied into Article.Summary.
const SummaryLength = 200

// Source is a configured news origin.
type Source struct {
	ID            string        `json:"id" mapstructure:"id"`
	Name          string        `json:"name" mapstructure:"name"`
	BaseURL       string        `json:"base_url" mapstructure:"base_url"`
	Type          SourceType    `json:"source_type" mapstructure:"source_type"`
	CrawlInterval time.Duration `json:"crawl_interval" mapstructure:"crawl_interval"`
	Active        bool          `json:"is_active" mapstructure:"is_active"`
	LastCrawledAt *time.Time    `json:"last_crawled_at,omitempty" mapstructure:"-"`
}

// Due reports whether the source should be crawled at now.
func (s Source) Due(now time.Time) bool {
	if s.LastCrawledAt == nil {
		return true
	}
	return !now.Before(s.LastCrawledAt.Add(s.CrawlInterval))
}

// CampaignStatus is the lifecycle of a campaign.
type CampaignStatus string

// Campaign status values.
const (
	CampaignRunning   CampaignStatus = "running"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

// Campaign groups sources that are crawled together on a schedule.
type Campaign struct {
	ID        string         `json:"id" mapstructure:"id"`
	Name      string         `json:"name" mapstructure:"name"`
	Status    CampaignStatus `json:"status" mapstructure:"status"`
	StartDate time.Time      `json:"start_date" mapstructure:"start_date"`
	EndDate   *time.Time     `json:"end_date,omitempty" mapstructure:"end_date"`
	SourceIDs []string       `json:"source_ids" mapstructure:"source_ids"`
}

// ActiveAt reports whether the campaign is running and within its date window.
func (c Campaign) ActiveAt(now time.Time) bool {
	if c.Status != CampaignRunning {
		return false
	}
	if now.Before(c.StartDate) {
		return false
	}
	return c.EndDate == nil || !now.After(*c.EndDate)
}

// CrawlJob is the record of one crawl attempt for one source.
type CrawlJob struct {
	ID           string     `json:"id"`
	CampaignID   string     `json:"campaign_id"`
	SourceID     string     `json:"source_id"`
	Status       JobStatus  `json:"status"`
	Attempt      int        `json:"attempt"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ArticleCount int        `json:"total_articles"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// JobFilter narrows a job listing. Zero values match everything and a zero
// Limit means no limit.
type JobFilter struct {
	SourceID string
	Status   JobStatus
	Limit    int
	Offset   int
}

// Matches reports whether job passes the source and status filters.
func (f JobFilter) Matches(job CrawlJob) bool {
	if f.SourceID != "" && job.SourceID != f.SourceID {
		return false
	}
	return f.Status == "" || job.Status == f.Status
}

// JobUpdate carries the fields written alongside a status transition.
type JobUpdate struct {
	StartedAt    *time.Time
	FinishedAt   *time.Time
	ArticleCount int
	ErrorMessage string
}

// Article is a normalized news item produced by an adapter.
type Article struct {
	ID          string         `json:"id,omitempty"`
	CampaignID  string         `json:"campaign_id,omitempty"`
	SourceID    string         `json:"source_id,omitempty"`
	CrawlJobID  string         `json:"crawl_job_id,omitempty"`
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	Content     string         `json:"content"`
	Author      string         `json:"author,omitempty"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	Summary     string         `json:"summary"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// IsFallback reports whether the article was synthesized by a fallback path.
func (a Article) IsFallback() bool {
	v, ok := a.Metadata["fallback"].(bool)
	return ok && v
}

// NewArticle builds an Article with a derived summary and the adapter name in metadata.
func NewArticle(
	adapter string,
	title string,
	url string,
	content string,
	author string,
	publishedAt *time.Time,
	metadata map[string]any,
) Article {
	meta := map[string]any{
		"crawler": adapter,
	}
	for k, v := range metadata {
		meta[k] = v
	}
	return Article{
		Title:       title,
		URL:         url,
		Content:     content,
		Author:      author,
		PublishedAt: publishedAt,
		Summary:     Truncate(content, SummaryLength),
		Metadata:    meta,
	}
}

// Truncate returns at most n characters of s without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// QueueItem wraps a crawl request ready to run.
type QueueItem struct {
	CampaignID string
	SourceID   string
	Attempt    int
	Submitted  int64
}

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed
}

// CanTransition reports whether a job may move from s to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusInProgress || next == JobStatusFailed
	case JobStatusInProgress:
		return next == JobStatusSuccess || next == JobStatusFailed
	default:
		return false
	}
}
