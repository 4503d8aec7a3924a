// Package metrics exposes Prometheus collectors for the news crawler service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerFetchesTotal           *prometheus.CounterVec
	crawlerBytesTotal             *prometheus.CounterVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec
	crawlerJobsTotal              *prometheus.CounterVec
	crawlerJobDurationSeconds     *prometheus.HistogramVec
	crawlerActiveWorkers          prometheus.Gauge
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec
	crawlerParseBackendTotal      *prometheus.CounterVec
	crawlerParseInputBytes        prometheus.Histogram
	crawlerArticlesTotal          *prometheus.CounterVec
	crawlerFallbackArticlesTotal  *prometheus.CounterVec
	crawlerIndexSignalsTotal      *prometheus.CounterVec
	crawlerSnapshotsTotal         *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetches_total",
				Help: "Total number of HTTP fetches, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		crawlerJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_jobs_total",
				Help: "Total number of crawl jobs finished, labeled by status.",
			},
			[]string{"status"},
		)

		crawlerJobDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_job_duration_seconds",
				Help:    "Histogram of crawl job durations, labeled by adapter.",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"adapter"},
		)

		crawlerActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_workers",
				Help: "Number of workers currently processing a job.",
			},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		crawlerParseBackendTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_parse_backend_total",
				Help: "Total number of documents parsed, labeled by backend.",
			},
			[]string{"backend"},
		)

		crawlerParseInputBytes = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_parse_input_bytes",
				Help:    "Histogram of HTML input sizes handed to the parser.",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		)

		crawlerArticlesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_articles_total",
				Help: "Total number of articles persisted, labeled by adapter.",
			},
			[]string{"adapter"},
		)

		crawlerFallbackArticlesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fallback_articles_total",
				Help: "Total number of fallback articles synthesized, labeled by adapter and reason.",
			},
			[]string{"adapter", "reason"},
		)

		crawlerIndexSignalsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_index_signals_total",
				Help: "Total number of index signals, labeled by stage and status.",
			},
			[]string{"stage", "status"},
		)
		crawlerSnapshotsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_snapshots_total",
				Help: "Total number of archived page snapshots, labeled by status.",
			},
			[]string{"status"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveFetch records a fetch outcome and the bytes received.
func ObserveFetch(site string, status string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	crawlerFetchesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	Init()
	crawlerJobsTotal.WithLabelValues(status).Inc()
}

// ObserveJobDuration records how long a job ran with the given adapter.
func ObserveJobDuration(adapter string, duration time.Duration) {
	Init()
	crawlerJobDurationSeconds.WithLabelValues(adapter).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	crawlerActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	crawlerActiveWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveParse records the backend chosen for a document and its size.
func ObserveParse(backend string, size int) {
	Init()
	crawlerParseBackendTotal.WithLabelValues(backend).Inc()
	crawlerParseInputBytes.Observe(float64(size))
}

// ObserveArticles adds n persisted articles for the adapter.
func ObserveArticles(adapter string, n int) {
	Init()
	if n > 0 {
		crawlerArticlesTotal.WithLabelValues(adapter).Add(float64(n))
	}
}

// ObserveFallback counts a synthesized fallback article.
func ObserveFallback(adapter, reason string) {
	Init()
	crawlerFallbackArticlesTotal.WithLabelValues(adapter, reason).Inc()
}

// ObserveIndexSignal counts an index signal at the given stage ("enqueue" or "index").
func ObserveIndexSignal(stage, status string) {
	Init()
	crawlerIndexSignalsTotal.WithLabelValues(stage, status).Inc()
}

// ObserveSnapshot counts a page snapshot write.
func ObserveSnapshot(status string) {
	Init()
	crawlerSnapshotsTotal.WithLabelValues(status).Inc()
}
