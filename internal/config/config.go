// Package config loads and validates scout configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultSearchURL is the LinkedIn people-search template: keywords, then page.
const DefaultSearchURL = "https://www.linkedin.com/search/results/people/?keywords=%s&origin=CLUSTER_EXPANSION&page=%s"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Index     IndexConfig     `mapstructure:"index"`
	Driver    DriverConfig    `mapstructure:"driver"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Companies CompaniesConfig `mapstructure:"companies"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the capture receiver.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// IndexConfig locates the JSON documents.
type IndexConfig struct {
	SearchResultsPath string `mapstructure:"search_results_path"`
	RecruitersPath    string `mapstructure:"recruiters_path"`
}

// DriverConfig governs the search-page loop.
type DriverConfig struct {
	MaxPages  int           `mapstructure:"max_pages"`
	Pause     time.Duration `mapstructure:"pause"`
	SearchURL string        `mapstructure:"search_url"`
	Positions []string      `mapstructure:"positions"`
}

// BrowserConfig selects and tunes the tab opener.
type BrowserConfig struct {
	Mode              string        `mapstructure:"mode"`
	UserDataDir       string        `mapstructure:"user_data_dir"`
	ExecPath          string        `mapstructure:"exec_path"`
	UserAgent         string        `mapstructure:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	Headless          bool          `mapstructure:"headless"`
}

// CompaniesConfig selects where the company list comes from.
type CompaniesConfig struct {
	Source         string        `mapstructure:"source"`
	List           []string      `mapstructure:"list"`
	File           string        `mapstructure:"file"`
	URL            string        `mapstructure:"url"`
	Selector       string        `mapstructure:"selector"`
	NameSelector   string        `mapstructure:"name_selector"`
	FilterSelector string        `mapstructure:"filter_selector"`
	FilterValue    string        `mapstructure:"filter_value"`
	Limit          int           `mapstructure:"limit"`
	UserAgent      string        `mapstructure:"user_agent"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// LoggingConfig toggles zap development features and sinks.
type LoggingConfig struct {
	Development bool     `mapstructure:"development"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// Browser modes.
const (
	BrowserChromedp = "chromedp"
	BrowserSystem   = "system"
	BrowserLog      = "log"
)

// Company sources.
const (
	SourceStatic = "static"
	SourceFile   = "file"
	SourceWeb    = "web"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCOUT")
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
	v.SetDefault("server.port", 8082)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_body_bytes", 32<<20)
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("index.search_results_path", "data/indices/search_results.json")
	v.SetDefault("index.recruiters_path", "data/indices/recruiters.json")
	v.SetDefault("driver.max_pages", 3)
	v.SetDefault("driver.pause", "3s")
	v.SetDefault("driver.search_url", DefaultSearchURL)
	v.SetDefault("driver.positions", []string{
		"technical recruiter",
		"technical sourcer",
		"early career technical recruiter",
	})
	v.SetDefault("browser.mode", BrowserChromedp)
	v.SetDefault("browser.user_data_dir", "data/chrome-profile")
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.headless", false)
	v.SetDefault("companies.source", SourceStatic)
	v.SetDefault("companies.list", []string{})
	v.SetDefault("companies.timeout", "15s")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"data/logs.txt"})
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Index.SearchResultsPath == "" {
		return fmt.Errorf("index.search_results_path must be set")
	}
	if c.Index.RecruitersPath == "" {
		return fmt.Errorf("index.recruiters_path must be set")
	}
	if c.Index.SearchResultsPath == c.Index.RecruitersPath {
		return fmt.Errorf("index.search_results_path and index.recruiters_path must differ")
	}
	if c.Driver.MaxPages <= 0 {
		return fmt.Errorf("driver.max_pages must be > 0")
	}
	if c.Driver.Pause < 0 {
		return fmt.Errorf("driver.pause must be >= 0")
	}
	if strings.Count(c.Driver.SearchURL, "%s") != 2 {
		return fmt.Errorf("driver.search_url must contain two %%s verbs (keywords, page)")
	}
	if len(c.Driver.Positions) == 0 {
		return fmt.Errorf("driver.positions must not be empty")
	}
	switch c.Browser.Mode {
	case BrowserChromedp, BrowserSystem, BrowserLog:
	default:
		return fmt.Errorf("browser.mode must be one of chromedp, system, log")
	}
	switch c.Companies.Source {
	case SourceStatic:
	case SourceFile:
		if c.Companies.File == "" {
			return fmt.Errorf("companies.file must be set when companies.source is file")
		}
	case SourceWeb:
		if c.Companies.URL == "" || c.Companies.Selector == "" {
			return fmt.Errorf("companies.url and companies.selector must be set when companies.source is web")
		}
	default:
		return fmt.Errorf("companies.source must be one of static, file, web")
	}
	if c.Companies.Limit < 0 {
		return fmt.Errorf("companies.limit must be >= 0")
	}
	return nil
}

// Address returns the listen address for the receiver.
func (c Config) Address() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
