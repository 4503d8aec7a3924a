// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/crawls to queue a crawl of one source.
//   - GET /v1/jobs/{job_id} and /v1/sources/{source_id}/jobs for crawl job
//     status.
//   - GET /v1/sources and /v1/sources/{source_id}/articles for extracted
//     content.
package api
