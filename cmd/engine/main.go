package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"social_metrics/internal/aggregator"
	"social_metrics/internal/cache"
	"social_metrics/internal/config"
	"social_metrics/internal/domain"
	"social_metrics/internal/notify"
	"social_metrics/internal/provider"
	"social_metrics/internal/provider/snapgrid"
	"social_metrics/internal/ratelimit"
	"social_metrics/internal/scheduler"
	"social_metrics/internal/storage/postgres"
	"social_metrics/internal/trigger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := postgres.RunMigrations(db)
	if err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database", "schema_version", version, "dirty", dirty)

	extractionCache, err := cache.New(cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer extractionCache.Close()

	notifier, err := notify.NewRabbitMQ(cfg.RabbitMQ, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer notifier.Close()

	profileStore := postgres.NewProfileStore(db)
	campaignStore := postgres.NewCampaignStore(db)
	jobStore := postgres.NewJobStore(db)
	postStore := postgres.NewPostStore(db)
	commentStore := postgres.NewCommentStore(db)
	metricStore := postgres.NewMetricStore(db)
	txManager := postgres.NewTransactionManager(db)

	registry := provider.NewRegistry()
	limiterSettings := make(map[string]ratelimit.Settings, len(cfg.Providers))
	for platform, providerCfg := range cfg.Providers {
		adapter := snapgrid.New(domain.Platform(platform), providerCfg, logger)
		if err := registry.Register(adapter, providerCfg); err != nil {
			logger.Error("failed to register provider", "platform", platform, "error", err)
			os.Exit(1)
		}
		limiterSettings[platform] = ratelimit.Settings{
			RatePerSecond: providerCfg.RatePerSecond,
			Burst:         providerCfg.Burst,
			MaxConcurrent: providerCfg.MaxConcurrent,
			MaxWait:       providerCfg.MaxAcquireWait,
		}
	}
	limiter := ratelimit.New(limiterSettings)

	ingestor := aggregator.New(postStore, commentStore, metricStore, txManager, logger, cfg.Aggregator)

	sched := scheduler.New(
		profileStore,
		campaignStore,
		jobStore,
		extractionCache,
		limiter,
		registry,
		ingestor,
		notifier,
		logger,
		cfg.Scheduler,
	)

	trig := trigger.New(campaignStore, profileStore, sched, cfg.Scheduler.TriggerScanInterval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	sched.Start()
	defer sched.Stop()

	logger.Info("starting extraction engine",
		"platforms", registry.Platforms(),
		"workers", cfg.Scheduler.Workers,
		"scan_interval", cfg.Scheduler.TriggerScanInterval,
	)

	if err := trig.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("trigger error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
