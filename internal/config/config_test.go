package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
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
  base_url: https://example.test/en/search
  user_agent: listing-agent
  respect_robots: false
  timeout_seconds: 45
  page_delay_seconds: 2
  batch_size: 25
  max_records_default: 500
headless:
  enabled: true
  max_parallel: 2
  nav_timeout_seconds: 30
db:
  dsn: postgres://localhost/listings
  runs_table: crawl_runs
  listings_table: qa_buy_listings
  max_conns: 8
storage:
  provider: local
  local_dir: /tmp/pages
  prefix: snapshots
publisher:
  provider: pubsub
  project_id: proj-1
  topic: run-completions
progress:
  retention_seconds: 120
  max_entries: 10
runner:
  concurrency: 3
  queue_depth: 16
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port override, got %d", cfg.Server.Port)
	}
	if cfg.Crawler.BaseURL != "https://example.test/en/search" {
		t.Fatalf("unexpected base url %q", cfg.Crawler.BaseURL)
	}
	if cfg.Crawler.BatchSize != 25 || cfg.Crawler.MaxRecordsDefault != 500 {
		t.Fatalf("unexpected crawler config %+v", cfg.Crawler)
	}
	if cfg.DB.RunsTable != "crawl_runs" || cfg.DB.ListingsTable != "qa_buy_listings" {
		t.Fatalf("unexpected db config %+v", cfg.DB)
	}
	if cfg.Storage.Provider != "local" || cfg.Storage.LocalDir != "/tmp/pages" {
		t.Fatalf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Publisher.Provider != "pubsub" || cfg.Publisher.Topic != "run-completions" {
		t.Fatalf("unexpected publisher config %+v", cfg.Publisher)
	}
	if cfg.ProgressRetention() != 2*time.Minute {
		t.Fatalf("unexpected retention %v", cfg.ProgressRetention())
	}
	if cfg.PageDelay() != 2*time.Second {
		t.Fatalf("unexpected page delay %v", cfg.PageDelay())
	}
	if cfg.Logging.Development {
		t.Fatal("expected development logging disabled")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("unexpected default port %d", cfg.Server.Port)
	}
	if cfg.Crawler.BatchSize != 50 {
		t.Fatalf("unexpected default batch size %d", cfg.Crawler.BatchSize)
	}
	if cfg.Progress.RetentionSeconds != 300 || cfg.Progress.MaxEntries != 20 {
		t.Fatalf("unexpected progress defaults %+v", cfg.Progress)
	}
	if cfg.DB.ListingsTable != "buy_listings" {
		t.Fatalf("unexpected default listings table %q", cfg.DB.ListingsTable)
	}
	if cfg.FetchTimeout() != 15*time.Second {
		t.Fatalf("unexpected default timeout %v", cfg.FetchTimeout())
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"missing base url", func(c *Config) { c.Crawler.BaseURL = "" }, "crawler.base_url"},
		{"zero batch size", func(c *Config) { c.Crawler.BatchSize = 0 }, "crawler.batch_size"},
		{"auth without key", func(c *Config) { c.Auth.Enabled = true }, "auth.api_key"},
		{"local without dir", func(c *Config) { c.Storage.Provider = "local" }, "storage.local_dir"},
		{"gcs without bucket", func(c *Config) { c.Storage.Provider = "gcs" }, "storage.gcs_bucket"},
		{"unknown storage", func(c *Config) { c.Storage.Provider = "s3" }, "storage.provider"},
		{"pubsub without topic", func(c *Config) { c.Publisher.Provider = "pubsub" }, "publisher.project_id"},
		{"zero workers", func(c *Config) { c.Runner.Concurrency = 0 }, "runner.concurrency"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("LISTINGS_SERVER_PORT", "7070")
	t.Setenv("LISTINGS_CRAWLER_BATCH_SIZE", "10")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected env port override, got %d", cfg.Server.Port)
	}
	if cfg.Crawler.BatchSize != 10 {
		t.Fatalf("expected env batch size override, got %d", cfg.Crawler.BatchSize)
	}
}
