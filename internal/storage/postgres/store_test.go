package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/news-crawler/internal/crawler"
)

type fixedIDs struct{ id string }

func (f fixedIDs) NewID() (string, error) { return f.id, nil }

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewWithPool(mock, fixedIDs{id: "art-1"})
	require.NoError(t, err)
	return store, mock
}

var sourceCols = []string{"id", "name", "base_url", "source_type", "crawl_interval_seconds", "is_active", "last_crawled_at"}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.EqualError(t, err, "storage.postgres.dsn is required")

	_, err = NewWithPool(nil, nil)
	require.Error(t, err)
}

func TestMigrateAppliesSchema(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS news_sources").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSource(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	crawled := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, name, base_url").
		WithArgs("src-1").
		WillReturnRows(pgxmock.NewRows(sourceCols).
			AddRow("src-1", "BBC News", "https://www.bbc.com/news", "website", int64(1800), true, &crawled))

	src, err := store.GetSource(context.Background(), "src-1")
	require.NoError(t, err)
	require.Equal(t, crawler.SourceTypeWebsite, src.Type)
	require.Equal(t, 30*time.Minute, src.CrawlInterval)
	require.True(t, src.Active)
	require.NotNil(t, src.LastCrawledAt)
	require.True(t, crawled.Equal(*src.LastCrawledAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSourceNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, name, base_url").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetSource(context.Background(), "missing")
	require.ErrorIs(t, err, crawler.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListSources(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("(?s)SELECT id, name, base_url.*ORDER BY id").
		WillReturnRows(pgxmock.NewRows(sourceCols).
			AddRow("a", "Feed", "https://a.example.com/rss", "rss", int64(3600), true, (*time.Time)(nil)).
			AddRow("b", "API", "https://api.example.com", "api", int64(60), false, (*time.Time)(nil)))

	sources, err := store.ListSources(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 2)
	require.Equal(t, crawler.SourceTypeRSS, sources[0].Type)
	require.Nil(t, sources[0].LastCrawledAt)
	require.False(t, sources[1].Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSourceLastCrawled(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE news_sources SET last_crawled_at").
		WithArgs("src-1", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE news_sources SET last_crawled_at").
		WithArgs("gone", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, store.UpdateSourceLastCrawled(context.Background(), "src-1", at))
	require.ErrorIs(t, store.UpdateSourceLastCrawled(context.Background(), "gone", at), crawler.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCampaignLinksSources(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	startDate := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	campaign := crawler.Campaign{
		ID:        "camp-1",
		Name:      "Elections",
		Status:    crawler.CampaignRunning,
		StartDate: startDate,
		SourceIDs: []string{"src-1", "src-2"},
	}
	src := crawler.Source{ID: "src-1", Name: "BBC", BaseURL: "https://www.bbc.com", Type: crawler.SourceTypeWebsite, CrawlInterval: time.Hour, Active: true}

	mock.ExpectExec("INSERT INTO news_sources").
		WithArgs("src-1", "BBC", "https://www.bbc.com", "website", int64(3600), true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO campaigns").
		WithArgs("camp-1", "Elections", "running", startDate, (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO campaign_sources").
		WithArgs("camp-1", "src-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO campaign_sources").
		WithArgs("camp-1", "src-2").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.UpsertSource(context.Background(), src))
	require.NoError(t, store.UpsertCampaign(context.Background(), campaign))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListCampaigns(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	startDate := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	endDate := startDate.AddDate(0, 6, 0)
	mock.ExpectQuery("SELECT c.id, c.name, c.status").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "status", "start_date", "end_date", "source_ids"}).
			AddRow("camp-1", "Elections", "running", startDate, &endDate, []string{"src-1", "src-2"}))

	campaigns, err := store.ListCampaigns(context.Background())
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	require.Equal(t, crawler.CampaignRunning, campaigns[0].Status)
	require.Equal(t, []string{"src-1", "src-2"}, campaigns[0].SourceIDs)
	require.True(t, campaigns[0].EndDate.Equal(endDate))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveArticleStoresMetadataAsJSON(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	article := crawler.NewArticle("RSS Feed Crawler", "Title", "https://a.example.com/1", "Body", "Reporter", nil, nil)
	article.CampaignID = "camp-1"
	article.SourceID = "src-1"
	article.CrawlJobID = "job-1"
	article.CreatedAt = created

	mock.ExpectExec("INSERT INTO articles").
		WithArgs(
			"art-1",
			"camp-1",
			"src-1",
			"job-1",
			"Title",
			"https://a.example.com/1",
			"Body",
			"Reporter",
			(*time.Time)(nil),
			"Body",
			[]byte(`{"crawler":"RSS Feed Crawler"}`),
			created,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := store.SaveArticle(context.Background(), article)
	require.NoError(t, err)
	require.Equal(t, "art-1", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveArticleInsertError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO articles").WillReturnError(errors.New("connection reset"))

	_, err := store.SaveArticle(context.Background(), crawler.Article{Title: "x"})
	require.ErrorContains(t, err, "insert article: connection reset")
}

func TestDeleteArticlesBySource(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM articles WHERE source_id").
		WithArgs("src-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := store.DeleteArticlesBySource(context.Background(), "src-1")
	require.NoError(t, err)
	require.Equal(t, 7, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

var articleCols = []string{
	"id", "campaign_id", "source_id", "crawl_job_id", "title", "url", "content",
	"author", "published_at", "summary", "metadata", "created_at",
}

func TestGetAndListArticles(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	published := time.Date(2025, 2, 28, 18, 0, 0, 0, time.UTC)
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	row := []any{
		"art-1", "camp-1", "src-1", "job-1", "Title", "https://a.example.com/1", "Body",
		"Reporter", &published, "Body", []byte(`{"crawler":"RSS Feed Crawler","guid":"g-1"}`), created,
	}
	mock.ExpectQuery("SELECT id, COALESCE\\(campaign_id").
		WithArgs("art-1").
		WillReturnRows(pgxmock.NewRows(articleCols).AddRow(row...))
	mock.ExpectQuery("(?s)SELECT id, COALESCE\\(campaign_id.*ORDER BY created_at").
		WithArgs("src-1").
		WillReturnRows(pgxmock.NewRows(articleCols).AddRow(row...).AddRow(row...))

	a, err := store.GetArticle(context.Background(), "art-1")
	require.NoError(t, err)
	require.Equal(t, "g-1", a.Metadata["guid"])
	require.True(t, published.Equal(*a.PublishedAt))

	list, err := store.ListArticlesBySource(context.Background(), "src-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobLifecycle(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(5 * time.Second)
	update := crawler.JobUpdate{StartedAt: &started, FinishedAt: &finished, ArticleCount: 4}

	mock.ExpectExec("INSERT INTO crawl_jobs").
		WithArgs("job-1", "camp-1", "src-1", "pending", 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE crawl_jobs SET").
		WithArgs("job-1", "success", &started, &finished, 4, "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE crawl_jobs SET").
		WithArgs("job-1", "failed", &started, &finished, 4, "late").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("(?s)SELECT id, COALESCE\\(campaign_id, ''\\), COALESCE\\(source_id, ''\\), status.*FROM crawl_jobs WHERE id").
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "campaign_id", "source_id", "status", "attempt", "started_at", "finished_at", "total_articles", "error_message",
		}).AddRow("job-1", "camp-1", "src-1", "success", 1, &started, &finished, 4, ""))

	ctx := context.Background()
	require.NoError(t, store.CreateJob(ctx, crawler.CrawlJob{
		ID: "job-1", CampaignID: "camp-1", SourceID: "src-1", Status: crawler.JobStatusPending, Attempt: 1,
	}))
	require.NoError(t, store.UpdateCrawlJob(ctx, "job-1", crawler.JobStatusSuccess, update))

	late := update
	late.ErrorMessage = "late"
	require.ErrorIs(t, store.UpdateCrawlJob(ctx, "job-1", crawler.JobStatusFailed, late), crawler.ErrNotFound)

	job, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusSuccess, job.Status)
	require.Equal(t, 4, job.ArticleCount)
	require.Equal(t, 5*time.Second, job.FinishedAt.Sub(*job.StartedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

var jobCols = []string{
	"id", "campaign_id", "source_id", "status", "attempt", "started_at", "finished_at", "total_articles", "error_message",
}

func TestListJobs(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("(?s)FROM crawl_jobs.*ORDER BY created_at DESC").
		WithArgs("src-1", "failed", 10, 0).
		WillReturnRows(pgxmock.NewRows(jobCols).
			AddRow("job-2", "camp-1", "src-1", "failed", 2, &started, &started, 0, "fetch failed").
			AddRow("job-1", "camp-1", "src-1", "failed", 1, (*time.Time)(nil), &started, 0, "no adapter"))

	jobs, err := store.ListJobs(context.Background(), crawler.JobFilter{
		SourceID: "src-1",
		Status:   crawler.JobStatusFailed,
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, 2, jobs[0].Attempt)
	require.Nil(t, jobs[1].StartedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store, err := NewWithPool(mock, nil)
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errors.New("down"))
	require.ErrorContains(t, store.Ping(context.Background()), "ping postgres: down")
	require.NoError(t, mock.ExpectationsWereMet())
}
