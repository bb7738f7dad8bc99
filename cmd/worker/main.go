package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/hugh/agricoop/internal/audit"
	"github.com/hugh/agricoop/internal/database"
	"github.com/hugh/agricoop/internal/dns"
	"github.com/hugh/agricoop/internal/registry"
	"github.com/hugh/agricoop/internal/tasks"
	"github.com/hugh/agricoop/pkg/config"
	"github.com/hugh/agricoop/pkg/queue"
	"github.com/hugh/agricoop/pkg/util"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration (.env included)
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting agricoop worker", "dns_provider", cfg.DNS.Provider, "sweep_cron", cfg.Worker.SweepCron)

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provisioner, err := dns.New(ctx, cfg.DNS, logger)
	if err != nil {
		logger.Error("failed to create dns provisioner", "error", err)
		os.Exit(1)
	}
	dnsService := dns.NewService(provisioner, cfg.Tenancy.BaseDomain, cfg.DNS.Target, logger)

	// The sweep suspends organizations; the cache must see it.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	defer redisClient.Close()

	reg := registry.New(db, registry.Options{
		Cache:  registry.NewRedisCache(redisClient, cfg.Tenancy.CacheTTL(), logger),
		Events: audit.NewDirectPublisher(audit.NewRecorder(db), logger),
		Logger: logger,
	})

	// Create Asynq server and scheduler
	srv := queue.NewServer(&cfg.Redis, cfg.Worker.Concurrency)
	scheduler := queue.NewScheduler(&cfg.Redis)
	if _, err := queue.RegisterPeriodic(scheduler, cfg.Worker.SweepCron, tasks.NewLifecycleSweepTask()); err != nil {
		logger.Error("failed to schedule lifecycle sweep", "error", err)
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// Create task handler
	handler := tasks.NewHandler(db, logger, reg, dnsService, cfg.Worker.SweepCron)

	// Register handlers
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	// Handle shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		scheduler.Shutdown()
		srv.Shutdown()
		cancel()
	}()

	logger.Info("worker started, waiting for tasks...")

	// Start the server
	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
	}

	// Wait for context cancellation
	<-ctx.Done()

	// Close database connection
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}
