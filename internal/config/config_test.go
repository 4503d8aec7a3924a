package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JakeFAU/news-crawler/internal/crawler"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
crawler:
  workers: 6
  queue_depth: 128
  user_agent: test-agent
  detail_limit: 20
  detail_delay_ms: 250
  max_attempts: 5
  retry_backoff_seconds: 10
http:
  timeout_seconds: 45
storage:
  backend: postgres
db:
  dsn: postgres://crawler@localhost/news
  max_conns: 4
snapshot:
  enabled: true
  backend: gcs
  gcs_bucket: raw-pages
index:
  enabled: true
  transport: pubsub
elasticsearch:
  addresses: ["http://localhost:9200"]
pubsub:
  project_id: news
logging:
  development: false
sources:
  - id: bbc
    name: BBC News
    base_url: https://www.bbc.com/news
    source_type: website
    crawl_interval: 30m
    is_active: true
  - id: feed
    name: Example Feed
    base_url: https://feeds.example.com
    source_type: rss
    crawl_interval: 1h
    is_active: true
campaigns:
  - id: elections
    name: Elections 2025
    status: running
    start_date: "2025-01-01T00:00:00Z"
    end_date: "2025-12-31T23:59:59Z"
    source_ids: [bbc, feed]
profiles:
  - name: guardian
    display_name: Guardian Crawler
    match: [theguardian.com]
    containers: ["div.fc-item"]
    title: ["h3"]
    link: ["a"]
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Crawler.Workers != 6 || cfg.Crawler.MaxAttempts != 5 {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if got := cfg.Crawler.DetailDelay(); got != 250*time.Millisecond {
		t.Fatalf("expected detail delay 250ms, got %v", got)
	}
	if got := cfg.Crawler.RetryBackoff(); got != 10*time.Second {
		t.Fatalf("expected retry backoff 10s, got %v", got)
	}
	if got := cfg.HTTP.Timeout(); got != 45*time.Second {
		t.Fatalf("expected timeout 45s, got %v", got)
	}
	if cfg.DB.MaxConns != 4 || !cfg.DB.Migrate {
		t.Fatalf("expected db overrides with migrate default: %+v", cfg.DB)
	}
	if cfg.PubSub.TopicName != "article-index" || cfg.Elasticsearch.Index != "articles" {
		t.Fatalf("expected index defaults to survive partial overrides")
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(cfg.Sources))
	}
	bbc := cfg.Sources[0]
	if bbc.Type != crawler.SourceTypeWebsite || bbc.CrawlInterval != 30*time.Minute || !bbc.Active {
		t.Fatalf("unexpected source decode: %+v", bbc)
	}
	campaign := cfg.Campaigns[0]
	if campaign.Status != crawler.CampaignRunning || campaign.EndDate == nil {
		t.Fatalf("unexpected campaign decode: %+v", campaign)
	}
	if !campaign.StartDate.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start date %v", campaign.StartDate)
	}
	if len(cfg.Profiles) != 1 || cfg.Profiles[0].Containers[0] != "div.fc-item" {
		t.Fatalf("expected profile to load: %+v", cfg.Profiles)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Backend != BackendMemory || cfg.Index.Transport != TransportChannel {
		t.Fatalf("unexpected backends: %+v %+v", cfg.Storage, cfg.Index)
	}
	if cfg.Crawler.Workers != 4 || cfg.Crawler.DetailLimit != 50 || cfg.Crawler.Schedule != "@every 1m" {
		t.Fatalf("unexpected crawler defaults: %+v", cfg.Crawler)
	}
	if cfg.Crawler.RetryBackoff() != time.Minute || cfg.HTTP.Timeout() != 30*time.Second {
		t.Fatalf("unexpected duration defaults")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadDotEnvIgnoresMissingFiles(t *testing.T) {
	t.Parallel()

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8080},
		Crawler: CrawlerConfig{Workers: 1, QueueDepth: 1, MaxAttempts: 1},
		HTTP:    HTTPConfig{TimeoutSeconds: 10},
		Storage: StorageConfig{Backend: BackendMemory},
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "invalid workers", mutate: func(c *Config) { c.Crawler.Workers = 0 }, want: "crawler.workers"},
		{name: "invalid timeout", mutate: func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, want: "http.timeout_seconds"},
		{name: "auth missing api key", mutate: func(c *Config) { c.Auth.Enabled = true }, want: "auth.api_key"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Backend = "mongo" }, want: "storage.backend"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Backend = BackendPostgres }, want: "db.dsn"},
		{
			name: "gcs snapshot without bucket",
			mutate: func(c *Config) {
				c.Snapshot = SnapshotConfig{Enabled: true, Backend: BackendGCS}
			},
			want: "snapshot.gcs_bucket",
		},
		{
			name:   "index without elasticsearch",
			mutate: func(c *Config) { c.Index = IndexConfig{Enabled: true, Transport: TransportChannel, Buffer: 1} },
			want:   "elasticsearch.addresses",
		},
		{
			name: "pubsub transport without project",
			mutate: func(c *Config) {
				c.Index = IndexConfig{Enabled: true, Transport: TransportPubSub}
				c.Elasticsearch.Addresses = []string{"http://es:9200"}
			},
			want: "pubsub.project_id",
		},
		{
			name: "duplicate source",
			mutate: func(c *Config) {
				c.Sources = []crawler.Source{{ID: "a", BaseURL: "https://a"}, {ID: "a", BaseURL: "https://b"}}
			},
			want: "duplicate id",
		},
		{
			name: "campaign with unknown source",
			mutate: func(c *Config) {
				c.Sources = []crawler.Source{{ID: "a", BaseURL: "https://a"}}
				c.Campaigns = []crawler.Campaign{{ID: "c", SourceIDs: []string{"b"}}}
			},
			want: "unknown source",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
