// Package cmd defines the CLI commands of the gamedb-scraper executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/gamedb-scraper/internal/app"
	"github.com/JakeFAU/gamedb-scraper/internal/config"
	"github.com/JakeFAU/gamedb-scraper/internal/logging"
	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is the part of *app.App the commands use, so tests can inject a fake.
type App interface {
	Config() config.Config
	Scrape(ctx context.Context, target string, ov app.Overrides) (scraper.RunSummary, error)
	Close()
}

// newApp is the application factory; tests replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates the root command and its subcommands. The returned
// cleanup closes the app and flushes the logger; call it after Execute
// whether or not the command failed.
func newRootCmd() (*cobra.Command, func()) {
	var cfgFile string
	var logger *zap.Logger
	var appInstance App

	cmd := &cobra.Command{
		Use:   "gamedb-scraper",
		Short: "Scrapes item and quest pages of a game database into TSV files.",
		Long: `gamedb-scraper walks every ID of a configured target, fetching pages in
parallel through a shared rate-limit gate, and writes the extracted records
in ID order to an available and a not-available TSV file.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err = logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			built, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			appInstance = built
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, built))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newTargetsCmd())

	cleanup := func() {
		if appInstance != nil {
			appInstance.Close()
			appInstance = nil
		}
		if logger != nil {
			_ = logger.Sync()
		}
	}
	return cmd, cleanup
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	root, cleanup := newRootCmd()
	err := root.ExecuteContext(context.Background())
	cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
