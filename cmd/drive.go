package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/recruiter-scout/internal/app"
	"github.com/JakeFAU/recruiter-scout/internal/driver"
)

func newDriveCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Runs only the search-page driver",
		Long: `Opens every search page not yet in the index as loaded at start.
Captures must be received by a separately running "scout serve".`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app.App) error {
			warnIndexSnapshot(a.Logger, a.Config.Driver.MaxPages)
			summary, err := drive(cmd.Context(), a, mode)
			if err != nil {
				return err
			}
			printSummary(cmd, summary)
			return nil
		}),
	}
	cmd.Flags().StringVar(&mode, "browser", "", "tab opener: chromedp, system or log (default from config)")
	return cmd
}

// drive resolves companies and runs the driver once. Cancellation is not an
// error.
func drive(ctx context.Context, a *app.App, mode string) (driver.Summary, error) {
	names, err := a.Companies(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return driver.Summary{}, nil
		}
		return driver.Summary{}, err
	}
	opener, err := a.Opener(mode)
	if err != nil {
		return driver.Summary{}, err
	}
	d, err := a.Driver(opener)
	if err != nil {
		return driver.Summary{}, err
	}
	summary, err := d.Run(ctx, names)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return summary, nil
		}
		return summary, fmt.Errorf("run driver: %w", err)
	}
	return summary, nil
}

// warnIndexSnapshot flags that pages past the first only open when the
// previous page was captured before this process started.
func warnIndexSnapshot(logger *zap.Logger, maxPages int) {
	if maxPages <= 1 {
		return
	}
	logger.Warn("drive reads the index once at start; captures stored by another process are not seen, "+
		"so pages after 1 open only if their previous page was already captured. Use \"scout run\" to follow captures live",
		zap.Int("max_pages", maxPages),
	)
}

func printSummary(cmd *cobra.Command, s driver.Summary) {
	fmt.Fprintf(cmd.OutOrStdout(), "opened=%d skipped_indexed=%d skipped_pagination=%d failed=%d\n",
		s.Opened, s.SkippedIndexed, s.SkippedPagination, s.Failed)
}
