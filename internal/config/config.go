// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/news-crawler/internal/adapters"
	"github.com/JakeFAU/news-crawler/internal/crawler"
)

// Storage and transport backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendLocal    = "local"
	BackendGCS      = "gcs"

	TransportChannel = "channel"
	TransportPubSub  = "pubsub"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	Auth          AuthConfig         `mapstructure:"auth"`
	Crawler       CrawlerConfig      `mapstructure:"crawler"`
	HTTP          HTTPConfig         `mapstructure:"http"`
	Storage       StorageConfig      `mapstructure:"storage"`
	DB            DBConfig           `mapstructure:"db"`
	Snapshot      SnapshotConfig     `mapstructure:"snapshot"`
	Index         IndexConfig        `mapstructure:"index"`
	Elasticsearch ElasticConfig      `mapstructure:"elasticsearch"`
	PubSub        PubSubConfig       `mapstructure:"pubsub"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Sources       []crawler.Source   `mapstructure:"sources"`
	Campaigns     []crawler.Campaign `mapstructure:"campaigns"`
	Profiles      []adapters.Profile `mapstructure:"profiles"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs workers, retries, detail crawling and scheduling.
type CrawlerConfig struct {
	Workers             int    `mapstructure:"workers"`
	QueueDepth          int    `mapstructure:"queue_depth"`
	UserAgent           string `mapstructure:"user_agent"`
	DetailLimit         int    `mapstructure:"detail_limit"`
	DetailDelayMs       int    `mapstructure:"detail_delay_ms"`
	MaxAttempts         int    `mapstructure:"max_attempts"`
	RetryBackoffSeconds int    `mapstructure:"retry_backoff_seconds"`
	Schedule            string `mapstructure:"schedule"`
	SchedulerEnabled    bool   `mapstructure:"scheduler_enabled"`
}

// DetailDelay spaces detail page fetches to one host.
func (c CrawlerConfig) DetailDelay() time.Duration {
	return time.Duration(c.DetailDelayMs) * time.Millisecond
}

// RetryBackoff is the wait before a failed crawl is retried.
func (c CrawlerConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffSeconds) * time.Second
}

// HTTPConfig configures the page fetcher.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int `mapstructure:"max_body_bytes"`
}

// Timeout bounds one fetch.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StorageConfig selects the persistence backend for sources, articles and jobs.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN                 string `mapstructure:"dsn"`
	MaxConns            int32  `mapstructure:"max_conns"`
	MinConns            int32  `mapstructure:"min_conns"`
	ConnLifetimeSeconds int    `mapstructure:"conn_lifetime_seconds"`
	Migrate             bool   `mapstructure:"migrate"`
}

// SnapshotConfig controls raw page archiving.
type SnapshotConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Backend   string `mapstructure:"backend"`
	Prefix    string `mapstructure:"prefix"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// IndexConfig controls search indexing of saved articles.
type IndexConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Transport string `mapstructure:"transport"`
	Buffer    int    `mapstructure:"buffer"`
	Attempts  int    `mapstructure:"attempts"`
	BackoffMs int    `mapstructure:"backoff_ms"`
}

// Backoff is the wait between index attempts.
func (c IndexConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMs) * time.Millisecond
}

// ElasticConfig points at the search cluster.
type ElasticConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// PubSubConfig holds the topic and subscription carrying index signals.
type PubSubConfig struct {
	ProjectID    string `mapstructure:"project_id"`
	TopicName    string `mapstructure:"topic_name"`
	Subscription string `mapstructure:"subscription"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// LoadDotEnv loads environment files if present. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.workers", 4)
	v.SetDefault("crawler.queue_depth", 64)
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (compatible; NewsBot/1.0)")
	v.SetDefault("crawler.detail_limit", adapters.DefaultDetailLimit)
	v.SetDefault("crawler.detail_delay_ms", 500)
	v.SetDefault("crawler.max_attempts", 3)
	v.SetDefault("crawler.retry_backoff_seconds", 60)
	v.SetDefault("crawler.schedule", "@every 1m")
	v.SetDefault("crawler.scheduler_enabled", true)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.migrate", true)
	v.SetDefault("snapshot.enabled", false)
	v.SetDefault("snapshot.backend", BackendMemory)
	v.SetDefault("snapshot.prefix", "snapshots")
	v.SetDefault("snapshot.local_dir", "data/snapshots")
	v.SetDefault("index.enabled", false)
	v.SetDefault("index.transport", TransportChannel)
	v.SetDefault("index.buffer", 1024)
	v.SetDefault("index.attempts", 3)
	v.SetDefault("index.backoff_ms", 1000)
	v.SetDefault("elasticsearch.index", "articles")
	v.SetDefault("pubsub.topic_name", "article-index")
	v.SetDefault("pubsub.subscription", "article-index-sub")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.QueueDepth <= 0 {
		return fmt.Errorf("crawler.queue_depth must be > 0")
	}
	if c.Crawler.MaxAttempts <= 0 {
		return fmt.Errorf("crawler.max_attempts must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of memory, postgres", c.Storage.Backend)
	}
	if err := c.validateSnapshot(); err != nil {
		return err
	}
	if err := c.validateIndex(); err != nil {
		return err
	}
	return c.validateCatalog()
}

func (c Config) validateSnapshot() error {
	if !c.Snapshot.Enabled {
		return nil
	}
	switch c.Snapshot.Backend {
	case BackendMemory:
	case BackendLocal:
		if c.Snapshot.LocalDir == "" {
			return fmt.Errorf("snapshot.local_dir is required for the local backend")
		}
	case BackendGCS:
		if c.Snapshot.GCSBucket == "" {
			return fmt.Errorf("snapshot.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("snapshot.backend %q is not one of memory, local, gcs", c.Snapshot.Backend)
	}
	return nil
}

func (c Config) validateIndex() error {
	if !c.Index.Enabled {
		return nil
	}
	if len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("elasticsearch.addresses is required when indexing is enabled")
	}
	switch c.Index.Transport {
	case TransportChannel:
		if c.Index.Buffer <= 0 {
			return fmt.Errorf("index.buffer must be > 0")
		}
	case TransportPubSub:
		if c.PubSub.ProjectID == "" || c.PubSub.TopicName == "" || c.PubSub.Subscription == "" {
			return fmt.Errorf("pubsub.project_id, pubsub.topic_name and pubsub.subscription are required for the pubsub transport")
		}
	default:
		return fmt.Errorf("index.transport %q is not one of channel, pubsub", c.Index.Transport)
	}
	return nil
}

func (c Config) validateCatalog() error {
	ids := make([]string, 0, len(c.Sources))
	for i, src := range c.Sources {
		if src.ID == "" || src.BaseURL == "" {
			return fmt.Errorf("sources[%d]: id and base_url are required", i)
		}
		if slices.Contains(ids, src.ID) {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID)
		}
		ids = append(ids, src.ID)
	}
	for i, campaign := range c.Campaigns {
		if campaign.ID == "" {
			return fmt.Errorf("campaigns[%d]: id is required", i)
		}
		for _, sourceID := range campaign.SourceIDs {
			if len(c.Sources) > 0 && !slices.Contains(ids, sourceID) {
				return fmt.Errorf("campaigns[%d]: unknown source %q", i, sourceID)
			}
		}
	}
	for i, p := range c.Profiles {
		if p.Name == "" || len(p.Match) == 0 {
			return fmt.Errorf("profiles[%d]: name and match are required", i)
		}
	}
	return nil
}
