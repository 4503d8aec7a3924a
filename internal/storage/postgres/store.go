// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/id/uuid"
)

//go:embed schema.sql
var schema string

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of *pgxpool.Pool the store uses; pgxmock satisfies it.
type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// Store implements the source, campaign, article and job stores on one pool.
type Store struct {
	pool pool
	ids  crawler.IDGenerator
}

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: p, ids: uuid.NewUUIDGenerator()}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, ids crawler.IDGenerator) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if ids == nil {
		ids = uuid.NewUUIDGenerator()
	}
	return &Store{pool: p, ids: ids}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, crawler.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", kind, id, err)
}

const sourceColumns = `id, name, base_url, source_type, crawl_interval_seconds, is_active, last_crawled_at`

func scanSource(row pgx.Row) (crawler.Source, error) {
	var (
		src        crawler.Source
		sourceType string
		interval   int64
	)
	if err := row.Scan(
		&src.ID,
		&src.Name,
		&src.BaseURL,
		&sourceType,
		&interval,
		&src.Active,
		&src.LastCrawledAt,
	); err != nil {
		return crawler.Source{}, err
	}
	src.Type = crawler.SourceType(sourceType)
	src.CrawlInterval = time.Duration(interval) * time.Second
	return src, nil
}

// GetSource fetches a source by ID.
func (s *Store) GetSource(ctx context.Context, sourceID string) (crawler.Source, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sourceColumns+` FROM news_sources WHERE id = $1`, sourceID)
	src, err := scanSource(row)
	if err != nil {
		return crawler.Source{}, notFound("source", sourceID, err)
	}
	return src, nil
}

// ListSources returns all sources ordered by ID.
func (s *Store) ListSources(ctx context.Context) ([]crawler.Source, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+sourceColumns+` FROM news_sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()
	var out []crawler.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return out, nil
}

// UpdateSourceLastCrawled records a successful crawl.
func (s *Store) UpdateSourceLastCrawled(ctx context.Context, sourceID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE news_sources SET last_crawled_at = $2, updated_at = now() WHERE id = $1`,
		sourceID, at)
	if err != nil {
		return fmt.Errorf("update source %s: %w", sourceID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source %s: %w", sourceID, crawler.ErrNotFound)
	}
	return nil
}

// UpsertSource inserts or updates a source definition. The last-crawled
// timestamp is left untouched on update.
func (s *Store) UpsertSource(ctx context.Context, src crawler.Source) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO news_sources (id, name, base_url, source_type, crawl_interval_seconds, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	base_url = EXCLUDED.base_url,
	source_type = EXCLUDED.source_type,
	crawl_interval_seconds = EXCLUDED.crawl_interval_seconds,
	is_active = EXCLUDED.is_active,
	updated_at = now()`,
		src.ID,
		src.Name,
		src.BaseURL,
		string(src.Type),
		int64(src.CrawlInterval/time.Second),
		src.Active,
	)
	if err != nil {
		return fmt.Errorf("upsert source %s: %w", src.ID, err)
	}
	return nil
}

// ListCampaigns returns all campaigns with their source IDs, ordered by ID.
func (s *Store) ListCampaigns(ctx context.Context) ([]crawler.Campaign, error) {
	rows, err := s.pool.Query(ctx, `
SELECT c.id, c.name, c.status, c.start_date, c.end_date,
	COALESCE(array_agg(cs.source_id ORDER BY cs.source_id) FILTER (WHERE cs.source_id IS NOT NULL), '{}')
FROM campaigns c
LEFT JOIN campaign_sources cs ON cs.campaign_id = c.id
GROUP BY c.id
ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()
	var out []crawler.Campaign
	for rows.Next() {
		var (
			c      crawler.Campaign
			status string
		)
		if err := rows.Scan(&c.ID, &c.Name, &status, &c.StartDate, &c.EndDate, &c.SourceIDs); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		c.Status = crawler.CampaignStatus(status)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return out, nil
}

// UpsertCampaign inserts or updates a campaign and links its sources.
func (s *Store) UpsertCampaign(ctx context.Context, c crawler.Campaign) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO campaigns (id, name, status, start_date, end_date)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	status = EXCLUDED.status,
	start_date = EXCLUDED.start_date,
	end_date = EXCLUDED.end_date,
	updated_at = now()`,
		c.ID, c.Name, string(c.Status), c.StartDate, c.EndDate)
	if err != nil {
		return fmt.Errorf("upsert campaign %s: %w", c.ID, err)
	}
	for _, sourceID := range c.SourceIDs {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO campaign_sources (campaign_id, source_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			c.ID, sourceID); err != nil {
			return fmt.Errorf("link campaign %s to source %s: %w", c.ID, sourceID, err)
		}
	}
	return nil
}

const articleColumns = `id, COALESCE(campaign_id, ''), COALESCE(source_id, ''), COALESCE(crawl_job_id, ''),
	title, url, content, author, published_at, summary, metadata, created_at`

func scanArticle(row pgx.Row) (crawler.Article, error) {
	var (
		a    crawler.Article
		meta []byte
	)
	if err := row.Scan(
		&a.ID,
		&a.CampaignID,
		&a.SourceID,
		&a.CrawlJobID,
		&a.Title,
		&a.URL,
		&a.Content,
		&a.Author,
		&a.PublishedAt,
		&a.Summary,
		&meta,
		&a.CreatedAt,
	); err != nil {
		return crawler.Article{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &a.Metadata); err != nil {
			return crawler.Article{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return a, nil
}

// SaveArticle inserts an article and returns its new ID.
func (s *Store) SaveArticle(ctx context.Context, article crawler.Article) (string, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("article id: %w", err)
	}
	meta := article.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO articles (
	id,
	campaign_id,
	source_id,
	crawl_job_id,
	title,
	url,
	content,
	author,
	published_at,
	summary,
	metadata,
	created_at
) VALUES (
	$1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12
)`,
		id,
		article.CampaignID,
		article.SourceID,
		article.CrawlJobID,
		article.Title,
		article.URL,
		article.Content,
		article.Author,
		article.PublishedAt,
		article.Summary,
		metaJSON,
		article.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert article: %w", err)
	}
	return id, nil
}

// DeleteArticlesBySource removes every article for sourceID.
func (s *Store) DeleteArticlesBySource(ctx context.Context, sourceID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM articles WHERE source_id = $1`, sourceID)
	if err != nil {
		return 0, fmt.Errorf("delete articles for source %s: %w", sourceID, err)
	}
	return int(tag.RowsAffected()), nil
}

// GetArticle fetches an article by ID.
func (s *Store) GetArticle(ctx context.Context, articleID string) (crawler.Article, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, articleID)
	a, err := scanArticle(row)
	if err != nil {
		return crawler.Article{}, notFound("article", articleID, err)
	}
	return a, nil
}

// ListArticlesBySource returns the source's articles oldest first.
func (s *Store) ListArticlesBySource(ctx context.Context, sourceID string) ([]crawler.Article, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE source_id = $1 ORDER BY created_at, id`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()
	var out []crawler.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return out, nil
}

// CreateJob inserts a new crawl job.
func (s *Store) CreateJob(ctx context.Context, job crawler.CrawlJob) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO crawl_jobs (id, campaign_id, source_id, status, attempt)
VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5)`,
		job.ID, job.CampaignID, job.SourceID, string(job.Status), job.Attempt)
	if err != nil {
		return fmt.Errorf("insert crawl job %s: %w", job.ID, err)
	}
	return nil
}

// UpdateCrawlJob applies a status transition. Terminal jobs are not updated
// and report ErrNotFound.
func (s *Store) UpdateCrawlJob(
	ctx context.Context,
	jobID string,
	status crawler.JobStatus,
	update crawler.JobUpdate,
) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE crawl_jobs SET
	status = $2,
	started_at = $3,
	finished_at = $4,
	total_articles = $5,
	error_message = $6,
	updated_at = now()
WHERE id = $1 AND status NOT IN ('success', 'failed')`,
		jobID,
		string(status),
		update.StartedAt,
		update.FinishedAt,
		update.ArticleCount,
		update.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("update crawl job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("crawl job %s missing or terminal: %w", jobID, crawler.ErrNotFound)
	}
	return nil
}

const jobColumns = `id, COALESCE(campaign_id, ''), COALESCE(source_id, ''), status, attempt,
	started_at, finished_at, total_articles, error_message`

func scanJob(row pgx.Row) (crawler.CrawlJob, error) {
	var (
		job    crawler.CrawlJob
		status string
	)
	if err := row.Scan(
		&job.ID,
		&job.CampaignID,
		&job.SourceID,
		&status,
		&job.Attempt,
		&job.StartedAt,
		&job.FinishedAt,
		&job.ArticleCount,
		&job.ErrorMessage,
	); err != nil {
		return crawler.CrawlJob{}, err
	}
	job.Status = crawler.JobStatus(status)
	return job, nil
}

// GetJob fetches a crawl job by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (crawler.CrawlJob, error) {
	job, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM crawl_jobs WHERE id = $1`, jobID))
	if err != nil {
		return crawler.CrawlJob{}, notFound("crawl job", jobID, err)
	}
	return job, nil
}

// ListJobs returns jobs matching filter, newest first.
func (s *Store) ListJobs(ctx context.Context, filter crawler.JobFilter) ([]crawler.CrawlJob, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+jobColumns+` FROM crawl_jobs
WHERE ($1 = '' OR source_id = $1) AND ($2 = '' OR status = $2)
ORDER BY created_at DESC, id DESC
LIMIT NULLIF($3, 0) OFFSET $4`,
		filter.SourceID, string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list crawl jobs: %w", err)
	}
	defer rows.Close()
	out := []crawler.CrawlJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan crawl job: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list crawl jobs: %w", err)
	}
	return out, nil
}
