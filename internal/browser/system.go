package browser

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"go.uber.org/zap"
)

// System hands URLs to the operating system's default browser.
type System struct {
	logger *zap.Logger
	goos   string
	start  func(name string, args ...string) error
}

// NewSystem builds a System opener for the running platform.
func NewSystem(logger *zap.Logger) *System {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &System{logger: logger, goos: runtime.GOOS}
	s.start = s.startDetached
	return s
}

// Open launches the platform URL handler without waiting for the browser.
func (s *System) Open(ctx context.Context, rawURL string) error {
	if err := validateURL(rawURL); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("open canceled: %w", err)
	}
	name, args := commandFor(s.goos, rawURL)
	if err := s.start(name, args...); err != nil {
		return fmt.Errorf("launch %s: %w", name, err)
	}
	return nil
}

func (s *System) startDetached(name string, args ...string) error {
	// #nosec G204 -- the command is fixed per platform; only the URL varies.
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			s.logger.Debug("url handler exited with error", zap.String("command", name), zap.Error(err))
		}
	}()
	return nil
}

func commandFor(goos, rawURL string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{rawURL}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", rawURL}
	default:
		return "xdg-open", []string{rawURL}
	}
}
