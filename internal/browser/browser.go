// Package browser opens search pages in a real browser so the capture
// extension running there can post them back to the receiver.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Opener opens url in a new tab. It returns once the tab has been requested;
// it does not wait for the page to be captured.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// Closer is implemented by openers that hold browser processes.
type Closer interface {
	Close() error
}

// Log only records the URL. It backs dry runs.
type Log struct {
	logger *zap.Logger
}

// NewLog builds a Log opener.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Open logs the URL.
func (l *Log) Open(_ context.Context, rawURL string) error {
	if err := validateURL(rawURL); err != nil {
		return err
	}
	l.logger.Info("would open tab", zap.String("url", rawURL))
	return nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return fmt.Errorf("refusing to open non-http url %q", rawURL)
	}
	return nil
}

// Modes accepted by New.
const (
	ModeChromedp = "chromedp"
	ModeSystem   = "system"
	ModeLog      = "log"
)

// New builds the opener selected by mode.
func New(mode string, cfg ChromedpConfig, logger *zap.Logger) (Opener, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeChromedp:
		c, err := NewChromedp(cfg, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ModeSystem:
		return NewSystem(logger), nil
	case ModeLog:
		return NewLog(logger), nil
	default:
		return nil, fmt.Errorf("unknown browser mode %q", mode)
	}
}
