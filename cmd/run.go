package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/recruiter-scout/internal/app"
)

func newRunCmd() *cobra.Command {
	var (
		mode           string
		exitAfterDrive bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the capture receiver and the driver together",
		Long: `Starts the receiver, then walks the search pages. The receiver keeps
running after the driver finishes so late captures are still stored, unless
--exit-after-drive is set.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app.App) error {
			return runAll(cmd, a, mode, exitAfterDrive)
		}),
	}
	cmd.Flags().StringVar(&mode, "browser", "", "tab opener: chromedp, system or log (default from config)")
	cmd.Flags().BoolVar(&exitAfterDrive, "exit-after-drive", false, "stop the receiver once the driver finishes")
	return cmd
}

func runAll(cmd *cobra.Command, a *app.App, mode string, exitAfterDrive bool) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	srv := a.HTTPServer()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serveHTTP(gctx, srv, a.Config.Server.ShutdownTimeout, a.Logger)
	})
	g.Go(func() error {
		summary, err := drive(gctx, a, mode)
		if err != nil {
			return err
		}
		printSummary(cmd, summary)
		if exitAfterDrive {
			a.Logger.Info("driver finished; stopping receiver")
			cancel()
		} else if gctx.Err() == nil {
			a.Logger.Info("driver finished; receiver still running", zap.String("addr", srv.Addr))
		}
		return nil
	})
	return g.Wait()
}
