package companies

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// Web scrapes company names from a ranking page such as a Fortune 500 table.
// Each element matching RowSelector yields one candidate; NameSelector picks
// the name inside it (the row text when empty). When FilterSelector is set,
// only rows whose filter cell equals FilterValue (case-insensitive) are kept,
// e.g. the sector column equal to "Technology".
type Web struct {
	URL            string
	RowSelector    string
	NameSelector   string
	FilterSelector string
	FilterValue    string
	Limit          int
	UserAgent      string
	Timeout        time.Duration
}

// Companies fetches and parses the page.
func (w Web) Companies(ctx context.Context) ([]string, error) {
	if strings.TrimSpace(w.URL) == "" {
		return nil, fmt.Errorf("companies url is required")
	}
	if strings.TrimSpace(w.RowSelector) == "" {
		return nil, fmt.Errorf("companies row selector is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("companies fetch canceled: %w", err)
	}

	var (
		names    []string
		fetchErr error
	)
	collector := w.buildCollector(&names, &fetchErr)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(w.URL)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("companies fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("colly visit failed: %w", err)
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("colly response failed: %w", fetchErr)
		}
	}

	names = Normalize(names)
	if w.Limit > 0 && len(names) > w.Limit {
		names = names[:w.Limit]
	}
	return names, nil
}

func (w Web) buildCollector(names *[]string, fetchErr *error) *colly.Collector {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	if w.UserAgent != "" {
		c.UserAgent = w.UserAgent
	}
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c.SetRequestTimeout(timeout)

	c.OnHTML(w.RowSelector, func(e *colly.HTMLElement) {
		if w.FilterSelector != "" {
			got := strings.TrimSpace(e.ChildText(w.FilterSelector))
			if !strings.EqualFold(got, strings.TrimSpace(w.FilterValue)) {
				return
			}
		}
		name := e.Text
		if w.NameSelector != "" {
			name = e.ChildText(w.NameSelector)
		}
		*names = append(*names, name)
	})
	c.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
	return c
}
