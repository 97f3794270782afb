package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ErrClosed is returned by Open after Close.
var ErrClosed = errors.New("browser closed")

// ChromedpConfig controls the visible Chrome instance.
type ChromedpConfig struct {
	// ExecPath overrides Chrome discovery.
	ExecPath string
	// UserDataDir keeps cookies between runs so the LinkedIn session survives.
	UserDataDir string
	// UserAgent overrides the browser default when set.
	UserAgent string
	// NavigationTimeout bounds how long Open waits for the navigation to be
	// accepted. The tab stays open after the timeout.
	NavigationTimeout time.Duration
	// Headless is only meant for smoke tests; captures need a visible window.
	Headless bool
}

// Chromedp opens each URL in a new tab of one shared Chrome window. Tabs are
// left open until Close so the extension can capture them.
type Chromedp struct {
	cfg    ChromedpConfig
	logger *zap.Logger

	mu            sync.Mutex
	closed        bool
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	tabCancels    []context.CancelFunc
	started       bool
}

// NewChromedp prepares the allocator. Chrome itself starts on the first Open.
func NewChromedp(cfg ChromedpConfig, logger *zap.Logger) (*Chromedp, error) {
	if cfg.NavigationTimeout < 0 {
		return nil, fmt.Errorf("navigation timeout must be >= 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	return &Chromedp{
		cfg:           cfg,
		logger:        logger,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

func allocatorOptions(cfg ChromedpConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("hide-scrollbars", false),
		chromedp.Flag("mute-audio", false),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	return opts
}

// Open navigates a fresh tab to rawURL.
func (c *Chromedp) Open(ctx context.Context, rawURL string) error {
	if err := validateURL(rawURL); err != nil {
		return err
	}
	tabCtx, err := c.nextTab()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(tabCtx, c.navTimeout())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	actions := []chromedp.Action{chromedp.Navigate(rawURL)}
	if c.cfg.UserAgent != "" {
		actions = append([]chromedp.Action{emulation.SetUserAgentOverride(c.cfg.UserAgent)}, actions...)
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			// Slow pages still count as opened; the tab keeps loading.
			c.logger.Debug("navigation still loading after timeout", zap.String("url", rawURL))
			return nil
		}
		return fmt.Errorf("chromedp navigate: %w", err)
	}
	return nil
}

// nextTab starts Chrome on first use and returns a context bound to a new tab.
// The browser is started on the long-lived browser context so per-navigation
// timeouts never take the whole process down with them.
func (c *Chromedp) nextTab() (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if !c.started {
		if err := chromedp.Run(c.browserCtx); err != nil {
			return nil, fmt.Errorf("chromedp start: %w", err)
		}
		c.started = true
		c.logger.Info("chrome started", zap.Bool("headless", c.cfg.Headless))
	}
	tabCtx, cancel := chromedp.NewContext(c.browserCtx)
	c.tabCancels = append(c.tabCancels, cancel)
	return tabCtx, nil
}

// Close closes every tab and stops Chrome.
func (c *Chromedp) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, cancel := range c.tabCancels {
		cancel()
	}
	c.tabCancels = nil
	c.browserCancel()
	c.allocCancel()
	return nil
}

func (c *Chromedp) navTimeout() time.Duration {
	if c.cfg.NavigationTimeout > 0 {
		return c.cfg.NavigationTimeout
	}
	return 30 * time.Second
}
