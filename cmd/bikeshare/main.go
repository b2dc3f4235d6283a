package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bikeshare-dashboard/internal/common/config"
	"github.com/bikeshare-dashboard/internal/common/maintenance"
	"github.com/bikeshare-dashboard/internal/networks/api"
	"github.com/bikeshare-dashboard/internal/networks/pipeline"
)

const version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bikeshare",
		Short:         "Bike-share network directory enrichment service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(newServeCmd(), newEnrichCmd(), newCacheCmd(), newRunsCmd())
	return root
}

// withApp loads config, wires the app and tears it down after fn.
func withApp(cmd *cobra.Command, console io.Writer, fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, console)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Refresh the enriched dataset periodically and serve it over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, os.Stdout, func(ctx context.Context, a *app) error {
				a.log.Info("Bikeshare dashboard service starting",
					"version", version,
					"base_url", a.cfg.Fetch.BaseURL,
					"workers", a.cfg.Enrich.Workers,
					"refresh_interval", a.cfg.Enrich.RefreshInterval)

				ctx, cancel := context.WithCancel(ctx)
				defer cancel()

				var wg sync.WaitGroup

				refresher := pipeline.NewRefreshScheduler(a.pipeline, a.cfg.Enrich.RefreshInterval, a.log)
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := refresher.Start(ctx); err != nil {
						a.log.Error("Refresh scheduler error", "error", err)
					}
				}()

				server := api.New(a.cfg.Server.Addr, a.pipeline, a.log)
				if a.cleanup != nil {
					if err := a.cleanup.Start(ctx); err != nil {
						a.log.Error("Cleanup scheduler error", "error", err)
					} else {
						defer a.cleanup.Stop()
					}
					server.WithRunHistory(a.runs).WithCleanupStatus(a.cleanup)
				}

				err := server.Run(ctx)
				cancel()

				wg.Wait()
				a.log.Info("Bikeshare dashboard service stopped")
				return err
			})
		},
	}
}

func newEnrichCmd() *cobra.Command {
	var withRows bool

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Run a single dashboard load and print the result as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				d := a.pipeline.Load(ctx)

				out := map[string]interface{}{"dashboard": d, "networks": len(d.Rows)}
				if withRows {
					out["rows"] = d.Rows
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			})
		},
	}
	cmd.Flags().BoolVar(&withRows, "rows", false, "include every enriched row in the output")
	return cmd
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the per-network detail cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached network detail",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, cmd.ErrOrStderr(), func(_ context.Context, a *app) error {
				return report(cmd, a.maintenance.ClearDetailCache(), a.cache.Dir())
			})
		},
	})
	return cmd
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage enrichment run history",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete run history older than RUN_RETENTION",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				if a.cleanup == nil {
					return report(cmd, a.maintenance.PruneRuns(ctx, a.cfg.Database.RunRetention), "")
				}
				return report(cmd, a.cleanup.TriggerPrune(ctx), "")
			})
		},
	})
	return cmd
}

func report(cmd *cobra.Command, result maintenance.CleanupResult, location string) error {
	if !result.Success {
		return fmt.Errorf("%s cleanup failed: %s", result.Target, result.Error)
	}
	if location != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d removed from %s\n", result.Target, result.RecordsDeleted, location)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d removed\n", result.Target, result.RecordsDeleted)
	return nil
}
