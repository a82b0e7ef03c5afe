package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/gamedb-scraper/internal/app"
)

func newScrapeCmd() *cobra.Command {
	var ov app.Overrides

	cmd := &cobra.Command{
		Use:   "scrape <target>...",
		Short: "Scrapes one or more configured targets",
		Long: `Runs each named target to completion in turn. Pages already cached today
are reused; --offline re-extracts from the cache without any network access.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, args, ov)
		},
	}
	cmd.Flags().IntVar(&ov.Workers, "workers", 0, "number of parallel workers (default from config)")
	cmd.Flags().IntVar(&ov.LastID, "last-id", 0, "last ID to scrape (default from target)")
	cmd.Flags().BoolVar(&ov.Offline, "offline", false, "read pages from the cache only")
	cmd.Flags().BoolVar(&ov.DryRun, "dry-run", false, "keep pages, archives and notifications in memory")
	return cmd
}

func runScrape(cmd *cobra.Command, targets []string, ov app.Overrides) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	if ov.Workers < 0 || ov.LastID < 0 {
		return fmt.Errorf("--workers and --last-id must be >= 0")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, name := range targets {
		summary, err := appInstance.Scrape(ctx, name, ov)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return fmt.Errorf("scrape %s interrupted: %w", name, err)
			}
			return fmt.Errorf("scrape %s: %w", name, err)
		}
		zap.L().Info("target complete",
			zap.String("target", name),
			zap.String("run_id", summary.RunID),
			zap.Int("available", summary.Available),
			zap.Int("not_available", summary.NotAvailable),
			zap.Duration("elapsed", summary.Elapsed),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d available\t%d not available\t%s\n",
			name, summary.Available, summary.NotAvailable, summary.Elapsed)
	}
	return nil
}
