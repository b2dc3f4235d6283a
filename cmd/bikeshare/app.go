package main

import (
	"context"
	"fmt"
	"io"

	"github.com/bikeshare-dashboard/internal/common/config"
	"github.com/bikeshare-dashboard/internal/common/db"
	"github.com/bikeshare-dashboard/internal/common/discord"
	"github.com/bikeshare-dashboard/internal/common/logger"
	"github.com/bikeshare-dashboard/internal/common/maintenance"
	"github.com/bikeshare-dashboard/internal/networks/cache"
	"github.com/bikeshare-dashboard/internal/networks/enricher"
	"github.com/bikeshare-dashboard/internal/networks/pipeline"
	"github.com/bikeshare-dashboard/internal/networks/scraper"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg         *config.Config
	log         logger.Logger
	alerts      *discord.Client
	database    *db.DB
	runs        *db.RunStore
	cache       *cache.DetailCache
	pipeline    *pipeline.Pipeline
	maintenance *maintenance.Maintenance
	cleanup     *maintenance.CleanupScheduler
}

func newLogger(cfg *config.Config, alerts *discord.Client, console io.Writer) logger.Logger {
	loggerConfig := logger.DefaultLoggerConfig()
	loggerConfig.ConsoleOut = console
	loggerConfig.Level = logger.ParseLogLevel(cfg.Logging.Level)
	loggerConfig.FilePath = cfg.Logging.FilePath
	loggerConfig.File = cfg.Logging.FilePath != ""
	if alerts.Enabled() {
		loggerConfig.Alerter = alerts
	}
	return logger.NewFromConfig(loggerConfig)
}

// buildApp wires every component. Console logs go to console so one-shot
// commands can keep stdout for their output.
func buildApp(ctx context.Context, cfg *config.Config, console io.Writer) (*app, error) {
	alerts := discord.NewClient(cfg.Logging.DiscordURL)
	log := newLogger(cfg, alerts, console)

	a := &app{cfg: cfg, log: log, alerts: alerts}

	detailCache, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, log)
	if err != nil {
		return nil, fmt.Errorf("opening detail cache: %w", err)
	}
	a.cache = detailCache

	if cfg.Database.Enabled() {
		database, err := db.New(ctx, cfg.Database.ConnectionString(), log)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		runs := db.NewRunStore(database)
		if err := runs.EnsureSchema(ctx); err != nil {
			database.Close()
			return nil, err
		}
		a.database, a.runs = database, runs
	} else {
		log.Info("Run history disabled (DB_HOST not set)")
	}

	details := scraper.NewHTTPDetailFetcher(scraper.DetailFetcherConfig{
		BaseURL:       cfg.Fetch.BaseURL,
		Timeout:       cfg.Fetch.Timeout,
		MaxAttempts:   cfg.Fetch.MaxAttempts,
		BackoffFactor: cfg.Fetch.BackoffFactor,
		RatePerSecond: cfg.Fetch.RatePerSecond,
	}, detailCache, log)

	engine := enricher.NewEngine(enricher.Config{
		Workers:     cfg.Enrich.Workers,
		PassTimeout: cfg.Enrich.PassTimeout,
	}, details, enricher.NewSnapshotStore(cfg.Enrich.SnapshotPath), log)
	if a.runs != nil {
		engine.WithRecorder(a.runs)
	}
	if alerts.Enabled() {
		engine.WithNotifier(alerts)
	}

	directory := scraper.NewHTTPDirectoryFetcher(cfg.Fetch.BaseURL, cfg.Fetch.Timeout, log)
	a.pipeline = pipeline.New(directory, engine, log)

	var pruner maintenance.RunPruner
	if a.runs != nil {
		pruner = a.runs
	}
	a.maintenance = maintenance.New(pruner, detailCache, log)
	if a.runs != nil {
		a.cleanup = maintenance.NewCleanupScheduler(a.maintenance, log, maintenance.SchedulerConfig{
			PruneInterval: cfg.Database.PruneInterval,
			RunRetention:  cfg.Database.RunRetention,
			InitialDelay:  maintenance.DefaultSchedulerConfig().InitialDelay,
		})
	}

	return a, nil
}

func (a *app) Close() {
	if a.database != nil {
		if err := a.database.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}
}
