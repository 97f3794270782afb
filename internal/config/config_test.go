package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8082 {
		t.Fatalf("expected default port 8082, got %d", cfg.Server.Port)
	}
	if cfg.Driver.MaxPages != 3 || cfg.Driver.Pause != 3*time.Second {
		t.Fatalf("unexpected driver defaults: %+v", cfg.Driver)
	}
	if len(cfg.Driver.Positions) != 3 || cfg.Driver.Positions[0] != "technical recruiter" {
		t.Fatalf("unexpected positions: %v", cfg.Driver.Positions)
	}
	if cfg.Driver.SearchURL != DefaultSearchURL {
		t.Fatalf("unexpected search url %q", cfg.Driver.SearchURL)
	}
	if cfg.Index.SearchResultsPath != "data/indices/search_results.json" {
		t.Fatalf("unexpected search results path %q", cfg.Index.SearchResultsPath)
	}
	if cfg.Address() != ":8082" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  cors_origins: ["https://www.linkedin.com"]
  request_timeout: 5s
index:
  search_results_path: /tmp/a.json
  recruiters_path: /tmp/b.json
driver:
  max_pages: 5
  pause: 1500ms
  positions: ["sourcer"]
browser:
  mode: log
companies:
  source: web
  url: https://example.com/fortune500
  selector: "tbody tr"
  name_selector: "td.name"
  limit: 20
logging:
  development: false
  output_paths: ["stdout"]
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.RequestTimeout != 5*time.Second {
		t.Fatalf("expected server overrides to apply: %+v", cfg.Server)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://www.linkedin.com" {
		t.Fatalf("unexpected cors origins: %v", cfg.Server.CORSOrigins)
	}
	if cfg.Driver.MaxPages != 5 || cfg.Driver.Pause != 1500*time.Millisecond {
		t.Fatalf("expected driver overrides to apply: %+v", cfg.Driver)
	}
	if cfg.Browser.Mode != BrowserLog {
		t.Fatalf("expected browser mode log, got %q", cfg.Browser.Mode)
	}
	if cfg.Companies.Source != SourceWeb || cfg.Companies.Limit != 20 || cfg.Companies.NameSelector != "td.name" {
		t.Fatalf("expected companies overrides to apply: %+v", cfg.Companies)
	}
	if cfg.Logging.Development || len(cfg.Logging.OutputPaths) != 1 {
		t.Fatalf("expected logging overrides to apply: %+v", cfg.Logging)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8082},
		Index: IndexConfig{
			SearchResultsPath: "a.json",
			RecruitersPath:    "b.json",
		},
		Driver: DriverConfig{
			MaxPages:  3,
			SearchURL: DefaultSearchURL,
			Positions: []string{"technical recruiter"},
		},
		Browser:   BrowserConfig{Mode: BrowserLog},
		Companies: CompaniesConfig{Source: SourceStatic},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "same index paths", mutate: func(c *Config) { c.Index.RecruitersPath = "a.json" }, want: "must differ"},
		{name: "missing index path", mutate: func(c *Config) { c.Index.SearchResultsPath = "" }, want: "index.search_results_path"},
		{name: "invalid max pages", mutate: func(c *Config) { c.Driver.MaxPages = 0 }, want: "driver.max_pages"},
		{name: "negative pause", mutate: func(c *Config) { c.Driver.Pause = -time.Second }, want: "driver.pause"},
		{name: "bad template", mutate: func(c *Config) { c.Driver.SearchURL = "https://x/?q=%s" }, want: "driver.search_url"},
		{name: "no positions", mutate: func(c *Config) { c.Driver.Positions = nil }, want: "driver.positions"},
		{name: "unknown browser", mutate: func(c *Config) { c.Browser.Mode = "firefox" }, want: "browser.mode"},
		{name: "file without path", mutate: func(c *Config) { c.Companies.Source = SourceFile }, want: "companies.file"},
		{name: "web without selector", mutate: func(c *Config) {
			c.Companies.Source = SourceWeb
			c.Companies.URL = "https://example.com"
		}, want: "companies.selector"},
		{name: "unknown source", mutate: func(c *Config) { c.Companies.Source = "ftp" }, want: "companies.source"},
		{name: "negative limit", mutate: func(c *Config) { c.Companies.Limit = -1 }, want: "companies.limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Driver.Positions = append([]string(nil), base.Driver.Positions...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
