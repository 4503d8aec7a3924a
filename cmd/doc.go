// Package cmd defines the news-crawler CLI.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, readiness, metrics and the /v1 crawl endpoints. POST
//     /v1/crawls validates the source and hands it to the dispatcher; job and article reads go straight to the
//     configured stores.
//   - Scheduler: a cron runner (crawler.schedule) submits due sources of running campaigns. A source is queued at
//     most once per crawl interval.
//   - Dispatcher & workers: crawl requests flow through a bounded in-memory queue sized by crawler.queue_depth and
//     are fanned out to crawler.workers workers. Failed attempts are requeued after crawler.retry_backoff_seconds
//     until crawler.max_attempts is reached.
//   - Orchestrator: each attempt creates a job record, resolves an adapter through the registry (site profiles,
//     RSS/Atom feeds, JSON APIs, generic HTML), replaces the source's stored articles and emits one index signal
//     per saved article.
//   - Fetch pipeline: the Colly fetcher is optionally wrapped by the snapshot archive, which writes every 2xx body to
//     a content-addressed key in memory, on local disk or in GCS.
//   - Indexing: signals travel over an in-process channel or Pub/Sub to the indexer, which loads the article and
//     upserts a document into Elasticsearch.
//   - Configuration & plumbing: Viper populates config from env/files (CRAWLER_ prefix, .env via godotenv); zap
//     provides structured logging; Prometheus metrics are served on /metrics; OpenTelemetry carries trace context
//     across the Pub/Sub hop.
//
// Quick checklist:
//   - Run locally: go run . serve --config config.yaml
//   - One-off crawl: go run . crawl --config config.yaml --source bbc --campaign daily
//   - Persist beyond memory: storage.backend=postgres with db.dsn; snapshots with snapshot.enabled and a backend.
//   - Cloud Run: the server listens on PORT when set and drains workers on SIGTERM.
package cmd
