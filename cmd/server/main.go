package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rankwatch/internal/autotrack"
	"rankwatch/internal/billing"
	"rankwatch/internal/checks"
	"rankwatch/internal/config"
	"rankwatch/internal/db"
	"rankwatch/internal/email"
	"rankwatch/internal/jobs"
	"rankwatch/internal/locations"
	"rankwatch/internal/metrics"
	"rankwatch/internal/provider"
	"rankwatch/internal/server"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg)
	slog.SetDefault(log)

	// Load YAML config (optional)
	yamlCfg, err := config.LoadYAMLConfig()
	if err != nil {
		fatal(log, "failed to load config file", err)
	}
	if err := yamlCfg.Apply(cfg); err != nil {
		fatal(log, "invalid config file", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal(log, "invalid configuration", err)
	}

	locs := locations.NewTable()
	if yamlCfg != nil {
		if err := locs.Apply(yamlCfg.Locations); err != nil {
			fatal(log, "invalid location overrides", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal(log, "failed to connect to database", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		fatal(log, "failed to run migrations", err)
	}
	log.Info("migrations completed successfully")

	if cfg.IsDev() {
		userID, err := database.SeedDevData(ctx)
		if err != nil {
			log.Warn("failed to seed development data", "error", err)
		} else {
			log.Info("development data ready", "user_id", userID)
		}
	}

	metrics.Init(database)

	// Core services
	prov := provider.NewFromConfig(ctx, cfg, log)
	ledger := billing.New(database, log)
	checkService := checks.New(database, ledger, prov, locs, checks.OptionsFromConfig(cfg), log)
	notifier := email.NewNotifier(cfg, log)
	autoTracker := autotrack.New(database, checkService, notifier, cfg.Pricing.AutoTracking, cfg.TierIntervals, log)

	// HTTP server
	srv := server.New(cfg, log)
	srv.RegisterRoutes(server.Services{
		Checks:    checkService,
		Projects:  database,
		Keywords:  database,
		Contacts:  database,
		Locations: locs,
		Ledger:    ledger,
		AutoTrack: autoTracker,
		Health:    database,
	})

	// Background jobs
	var scheduler *jobs.Scheduler
	if cfg.EnableJobs {
		go jobs.NewSyncWorker(checkService, cfg.SyncInterval, log).Start(ctx)

		scheduler = jobs.NewScheduler(log)
		registered := []jobs.Job{
			{
				Name:    "autotrack",
				Spec:    cfg.AutoTrackSchedule,
				Timeout: 30 * time.Minute,
				Run:     jobs.AutoTrackJob(autoTracker),
			},
			{
				Name:    "release_stale_claims",
				Spec:    "@every 5m",
				Timeout: time.Minute,
				Run:     jobs.ReleaseStaleClaimsJob(database, cfg.ClaimTTL, log),
			},
		}
		for _, job := range registered {
			if err := scheduler.Add(job); err != nil {
				fatal(log, "failed to schedule job", err)
			}
		}
		scheduler.Start(ctx)
	} else {
		log.Info("background jobs disabled")
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	if err := srv.Shutdown(); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	log.Info("server exited")
}

// newLogger builds the process logger: JSON in production, text otherwise.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	format := strings.ToLower(cfg.LogFormat)
	if format == "" {
		format = "json"
		if cfg.IsDev() {
			format = "text"
		}
	}

	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
