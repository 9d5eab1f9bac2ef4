// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	DB        DBConfig        `mapstructure:"db"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Runner    RunnerConfig    `mapstructure:"runner"`
	Logging   LoggingConfig   `mapstructure:"logging"`
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

// CrawlerConfig governs page fetching and the crawl loop.
type CrawlerConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	UserAgent         string `mapstructure:"user_agent"`
	RespectRobots     bool   `mapstructure:"respect_robots"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	PageDelaySeconds  int    `mapstructure:"page_delay_seconds"`
	BatchSize         int    `mapstructure:"batch_size"`
	MaxRecordsDefault int    `mapstructure:"max_records_default"`
}

// HeadlessConfig configures the headless rendering fallback.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN           string `mapstructure:"dsn"`
	RunsTable     string `mapstructure:"runs_table"`
	ListingsTable string `mapstructure:"listings_table"`
	MaxConns      int    `mapstructure:"max_conns"`
}

// StorageConfig selects and parameterizes the page archive backend.
type StorageConfig struct {
	// Provider is one of "none", "memory", "local", "gcs".
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// PublisherConfig selects the run-completion publisher.
type PublisherConfig struct {
	// Provider is one of "none", "memory", "pubsub".
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ProgressConfig bounds the in-memory job progress store.
type ProgressConfig struct {
	RetentionSeconds int `mapstructure:"retention_seconds"`
	MaxEntries       int `mapstructure:"max_entries"`
}

// RunnerConfig sizes the crawl worker pool and admission queue.
type RunnerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	QueueDepth  int `mapstructure:"queue_depth"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LISTINGS")
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
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.base_url", "https://www.propertyfinder.qa/en/search")
	v.SetDefault("crawler.user_agent", "listing-crawler/0.1")
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.timeout_seconds", 15)
	v.SetDefault("crawler.page_delay_seconds", 1)
	v.SetDefault("crawler.batch_size", 50)
	v.SetDefault("crawler.max_records_default", 10000)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("db.runs_table", "runs")
	v.SetDefault("db.listings_table", "buy_listings")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("storage.provider", "none")
	v.SetDefault("storage.prefix", "pages")
	v.SetDefault("publisher.provider", "none")
	v.SetDefault("progress.retention_seconds", 300)
	v.SetDefault("progress.max_entries", 20)
	v.SetDefault("runner.concurrency", 1)
	v.SetDefault("runner.queue_depth", 8)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.BaseURL == "" {
		return fmt.Errorf("crawler.base_url is required")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Crawler.BatchSize <= 0 {
		return fmt.Errorf("crawler.batch_size must be > 0")
	}
	if c.Crawler.MaxRecordsDefault <= 0 {
		return fmt.Errorf("crawler.max_records_default must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Storage.Provider {
	case "", "none", "memory":
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local provider")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	switch c.Publisher.Provider {
	case "", "none", "memory":
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.Topic == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic are required for pubsub")
		}
	default:
		return fmt.Errorf("unknown publisher.provider %q", c.Publisher.Provider)
	}
	if c.Progress.RetentionSeconds <= 0 {
		return fmt.Errorf("progress.retention_seconds must be > 0")
	}
	if c.Progress.MaxEntries <= 0 {
		return fmt.Errorf("progress.max_entries must be > 0")
	}
	if c.Runner.Concurrency <= 0 {
		return fmt.Errorf("runner.concurrency must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// FetchTimeout converts the configured timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}

// PageDelay converts the politeness delay into a duration.
func (c Config) PageDelay() time.Duration {
	return time.Duration(c.Crawler.PageDelaySeconds) * time.Second
}

// ProgressRetention converts the progress retention into a duration.
func (c Config) ProgressRetention() time.Duration {
	return time.Duration(c.Progress.RetentionSeconds) * time.Second
}
