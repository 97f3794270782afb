// Package cmd defines the scout CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/recruiter-scout/internal/app"
	"github.com/JakeFAU/recruiter-scout/internal/config"
	"github.com/JakeFAU/recruiter-scout/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "scout",
		Short: "Finds technical recruiters through LinkedIn people search.",
		Long: `scout opens LinkedIn people-search pages for a list of companies in a
real browser and receives the pages captured by the browser extension on
POST /save-html, keeping every capture in a local JSON index so no search
page is opened twice.`,
		SilenceUsage: true,

		// Builds the application after flags are parsed and before the
		// subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Config{
				Development: cfg.Logging.Development,
				OutputPaths: cfg.Logging.OutputPaths,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := app.New(cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); SCOUT_* env vars override it")

	cmd.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newDriveCmd(),
		newPlanCmd(),
		newKeysCmd(),
	)
	return cmd
}

// Execute runs the CLI until completion or SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "scout:", err)
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// withApp resolves the App for fn and closes it once fn returns.
func withApp(fn func(cmd *cobra.Command, args []string, a *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		appInstance, err := resolveApp(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()
		return fn(cmd, args, appInstance)
	}
}
