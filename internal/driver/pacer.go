package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/recruiter-scout/internal/metrics"
)

// FixedPacer pauses for the same interval after every tab open. The interval
// is measured from the call, so a slow open never shortens the pause that
// follows it.
type FixedPacer struct {
	interval time.Duration
}

// NewPacer builds a FixedPacer. A non-positive interval never waits.
func NewPacer(interval time.Duration) *FixedPacer {
	return &FixedPacer{interval: interval}
}

// Wait blocks for one interval or until ctx ends.
func (p *FixedPacer) Wait(ctx context.Context) error {
	if p.interval <= 0 {
		return nil
	}
	timer := time.NewTimer(p.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("pause canceled: %w", ctx.Err())
	case <-timer.C:
	}
	metrics.ObservePause(p.interval)
	return nil
}
