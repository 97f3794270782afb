// Package app initializes and holds long-lived application services, acting as
// a dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/recruiter-scout/internal/api"
	"github.com/JakeFAU/recruiter-scout/internal/browser"
	"github.com/JakeFAU/recruiter-scout/internal/companies"
	"github.com/JakeFAU/recruiter-scout/internal/config"
	"github.com/JakeFAU/recruiter-scout/internal/driver"
	"github.com/JakeFAU/recruiter-scout/internal/index"
)

// Index names used in logs, metrics and the operator API.
const (
	SearchResultsIndex = "search_results"
	RecruitersIndex    = "recruiters"
)

// App holds the shared services. Both indices are loaded once and shared by
// the receiver and the driver.
type App struct {
	Config        config.Config
	Logger        *zap.Logger
	SearchResults *index.Index
	Recruiters    *index.Index

	closers []browser.Closer
}

// New loads both indices. It fails fast when either document cannot be
// prepared.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("initializing application services")

	search, err := index.Open(cfg.Index.SearchResultsPath, index.Options{
		Name:   SearchResultsIndex,
		Logger: logger.Named("index"),
	})
	if err != nil {
		return nil, fmt.Errorf("open search results index: %w", err)
	}
	recruiters, err := index.Open(cfg.Index.RecruitersPath, index.Options{
		Name:   RecruitersIndex,
		Logger: logger.Named("index"),
	})
	if err != nil {
		return nil, fmt.Errorf("open recruiters index: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		SearchResults: search,
		Recruiters:    recruiters,
	}, nil
}

// HTTPServer builds the capture receiver bound to the configured port.
func (a *App) HTTPServer() *http.Server {
	srv := api.NewServer(a.SearchResults, a.Recruiters, api.Config{
		CORSOrigins:    a.Config.Server.CORSOrigins,
		MaxBodyBytes:   a.Config.Server.MaxBodyBytes,
		RequestTimeout: a.Config.Server.RequestTimeout,
	}, a.Logger.Named("api"))
	return &http.Server{
		Addr:              a.Config.Address(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Opener builds the tab opener for mode, or the configured one when mode is
// empty. Openers holding a browser are closed by Close.
func (a *App) Opener(mode string) (browser.Opener, error) {
	if mode == "" {
		mode = a.Config.Browser.Mode
	}
	opener, err := browser.New(mode, browser.ChromedpConfig{
		ExecPath:          a.Config.Browser.ExecPath,
		UserDataDir:       a.Config.Browser.UserDataDir,
		UserAgent:         a.Config.Browser.UserAgent,
		NavigationTimeout: a.Config.Browser.NavigationTimeout,
		Headless:          a.Config.Browser.Headless,
	}, a.Logger.Named("browser"))
	if err != nil {
		return nil, fmt.Errorf("init browser: %w", err)
	}
	if c, ok := opener.(browser.Closer); ok {
		a.closers = append(a.closers, c)
	}
	return opener, nil
}

// Driver builds a search-page driver around opener.
func (a *App) Driver(opener browser.Opener) (*driver.Driver, error) {
	d, err := driver.New(driver.Config{
		MaxPages:  a.Config.Driver.MaxPages,
		SearchURL: a.Config.Driver.SearchURL,
		Positions: a.Config.Driver.Positions,
	}, a.SearchResults, opener, driver.NewPacer(a.Config.Driver.Pause), a.Logger.Named("driver"))
	if err != nil {
		return nil, fmt.Errorf("init driver: %w", err)
	}
	return d, nil
}

// Companies resolves the company list once.
func (a *App) Companies(ctx context.Context) ([]string, error) {
	provider, err := CompaniesProvider(a.Config.Companies)
	if err != nil {
		return nil, err
	}
	names, err := provider.Companies(ctx)
	if err != nil {
		return nil, fmt.Errorf("load companies: %w", err)
	}
	a.Logger.Info("companies loaded",
		zap.String("source", a.Config.Companies.Source),
		zap.Int("count", len(names)),
	)
	return names, nil
}

// CompaniesProvider selects the provider named by cfg.Source.
func CompaniesProvider(cfg config.CompaniesConfig) (companies.Provider, error) {
	switch cfg.Source {
	case config.SourceStatic, "":
		return companies.Static(cfg.List), nil
	case config.SourceFile:
		return companies.File{Path: cfg.File}, nil
	case config.SourceWeb:
		return companies.Web{
			URL:            cfg.URL,
			RowSelector:    cfg.Selector,
			NameSelector:   cfg.NameSelector,
			FilterSelector: cfg.FilterSelector,
			FilterValue:    cfg.FilterValue,
			Limit:          cfg.Limit,
			UserAgent:      cfg.UserAgent,
			Timeout:        cfg.Timeout,
		}, nil
	default:
		return nil, fmt.Errorf("unknown companies source: %s", cfg.Source)
	}
}

// Close releases browsers and flushes the logger.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.Logger.Warn("error closing browser", zap.Error(err))
		}
	}
	a.closers = nil
	// Sync fails on stderr/stdout sinks on some platforms; nothing to do then.
	_ = a.Logger.Sync()
}
