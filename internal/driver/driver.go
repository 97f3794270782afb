// Package driver walks (page, company) search combinations and opens a browser
// tab for every one that has not been captured yet.
//
// Iteration is page-major: every company's page 1 is opened before any page 2,
// which gives the capture extension time to report page 1 before the driver
// decides whether page 2 is worth visiting. Page N is only opened when page
// N-1 was captured with a non-empty results list.
package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/recruiter-scout/internal/metrics"
	"github.com/JakeFAU/recruiter-scout/internal/searchkey"
)

// Index is the read side of the search results index.
type Index interface {
	Has(key string) bool
	Results(key string) []json.RawMessage
}

// Opener opens a URL in a browser tab.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// Pacer is waited on after every tab that was opened.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Action is the decision taken for one combination.
type Action string

// Possible decisions.
const (
	ActionOpen              Action = "open"
	ActionSkipIndexed       Action = "skip_indexed"
	ActionSkipEmptyPrevious Action = "skip_empty_previous"
)

// Config drives the loop.
type Config struct {
	// MaxPages is the last page visited per query, inclusive.
	MaxPages int
	// SearchURL is a template with two %s verbs: keywords, then page.
	SearchURL string
	// Positions are OR-ed into each company's query.
	Positions []string
}

// Step describes one (page, company) combination.
type Step struct {
	Page    int
	Company string
	Query   string
	Key     string
	URL     string
	Action  Action
}

// Summary counts what a run did.
type Summary struct {
	Opened            int
	SkippedIndexed    int
	SkippedPagination int
	Failed            int
}

// Driver opens tabs for combinations missing from the index.
type Driver struct {
	cfg    Config
	index  Index
	opener Opener
	pacer  Pacer
	logger *zap.Logger
}

// New validates cfg and builds a Driver. A nil pacer disables pausing.
func New(cfg Config, index Index, opener Opener, pacer Pacer, logger *zap.Logger) (*Driver, error) {
	if cfg.MaxPages <= 0 {
		return nil, fmt.Errorf("max pages must be > 0")
	}
	if strings.Count(cfg.SearchURL, "%s") != 2 {
		return nil, fmt.Errorf("search url template must contain exactly two %%s verbs")
	}
	if len(cfg.Positions) == 0 {
		return nil, fmt.Errorf("at least one position is required")
	}
	if index == nil || opener == nil {
		return nil, fmt.Errorf("index and opener are required")
	}
	if pacer == nil {
		pacer = noPause{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		cfg:    cfg,
		index:  index,
		opener: opener,
		pacer:  pacer,
		logger: logger,
	}, nil
}

// Plan reports the decision for every combination against the current index
// without opening anything.
func (d *Driver) Plan(companies []string) []Step {
	companies = orGeneric(companies)
	steps := make([]Step, 0, d.cfg.MaxPages*len(companies))
	for page := 1; page <= d.cfg.MaxPages; page++ {
		for _, company := range companies {
			steps = append(steps, d.decide(page, company))
		}
	}
	return steps
}

// Run visits every combination in order. It stops early only when ctx is
// canceled; opener failures are logged and counted.
func (d *Driver) Run(ctx context.Context, companies []string) (Summary, error) {
	var summary Summary
	companies = orGeneric(companies)
	d.logger.Info("driver started",
		zap.Int("companies", len(companies)),
		zap.Int("max_pages", d.cfg.MaxPages),
	)

	for page := 1; page <= d.cfg.MaxPages; page++ {
		for _, company := range companies {
			if err := ctx.Err(); err != nil {
				return summary, fmt.Errorf("driver canceled: %w", err)
			}
			step := d.decide(page, company)
			switch step.Action {
			case ActionSkipIndexed:
				summary.SkippedIndexed++
				metrics.ObserveDriverAction(metrics.DriverSkippedIndexed)
				continue
			case ActionSkipEmptyPrevious:
				summary.SkippedPagination++
				metrics.ObserveDriverAction(metrics.DriverSkippedPagination)
				continue
			}

			if err := d.opener.Open(ctx, step.URL); err != nil {
				if errors.Is(err, context.Canceled) && ctx.Err() != nil {
					return summary, fmt.Errorf("driver canceled: %w", ctx.Err())
				}
				summary.Failed++
				metrics.ObserveDriverAction(metrics.DriverFailed)
				d.logger.Warn("failed to open tab", zap.String("key", step.Key), zap.Error(err))
				continue
			}
			summary.Opened++
			metrics.ObserveDriverAction(metrics.DriverOpened)
			d.logger.Info("opened url", zap.String("key", step.Key), zap.String("url", step.URL))

			// The pause also follows the last tab, so the extension can post it
			// before the caller closes the browser.
			if err := d.pacer.Wait(ctx); err != nil {
				return summary, fmt.Errorf("driver pause: %w", err)
			}
		}
	}

	d.logger.Info("driver finished",
		zap.Int("opened", summary.Opened),
		zap.Int("skipped_indexed", summary.SkippedIndexed),
		zap.Int("skipped_pagination", summary.SkippedPagination),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (d *Driver) decide(page int, company string) Step {
	query := searchkey.BuildQuery(strings.ToLower(company), d.cfg.Positions)
	key := searchkey.FromSearchQuery(query, page)
	step := Step{
		Page:    page,
		Company: company,
		Query:   query,
		Key:     key.String(),
		URL:     searchkey.SearchURL(d.cfg.SearchURL, query, page),
		Action:  ActionOpen,
	}
	switch {
	case d.index.Has(step.Key):
		step.Action = ActionSkipIndexed
	case page > 1 && len(d.index.Results(key.Prev().String())) == 0:
		step.Action = ActionSkipEmptyPrevious
	}
	return step
}

// orGeneric falls back to a single company-less query.
func orGeneric(companies []string) []string {
	if len(companies) == 0 {
		return []string{""}
	}
	return companies
}

type noPause struct{}

func (noPause) Wait(context.Context) error { return nil }
