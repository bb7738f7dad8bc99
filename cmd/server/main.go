package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/agricoop/internal/api"
	"github.com/hugh/agricoop/internal/archive"
	"github.com/hugh/agricoop/internal/audit"
	"github.com/hugh/agricoop/internal/auth"
	"github.com/hugh/agricoop/internal/database"
	"github.com/hugh/agricoop/internal/registry"
	"github.com/hugh/agricoop/pkg/config"
	"github.com/hugh/agricoop/pkg/crypto"
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

	logger.Info("starting agricoop server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
		"base_domain", cfg.Tenancy.BaseDomain,
	)

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// A tenant-scoped table with a global unique key would make one
	// cooperative's data block another's; refuse to serve.
	violations, err := database.VerifyTenantKeys(db)
	if err != nil {
		logger.Error("failed to verify tenant keys", "error", err)
		os.Exit(1)
	}
	if len(violations) > 0 {
		for _, v := range violations {
			logger.Error("tenant key violation", "detail", v.String())
		}
		os.Exit(1)
	}

	// Connect to Redis
	var redisClient *redis.Client
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis, running without cache and queue", "error", err)
		client.Close()
	} else {
		redisClient = client
	}

	// Asynq client for audit events and DNS jobs
	var asynqClient *asynq.Client
	var events audit.Publisher
	var jobs registry.Enqueuer
	var cache registry.Cache = registry.NopCache{}
	if redisClient != nil {
		asynqClient = queue.NewClient(&cfg.Redis)
		events = audit.NewQueuePublisher(asynqClient, logger)
		jobs = asynqClient
		cache = registry.NewRedisCache(redisClient, cfg.Tenancy.CacheTTL(), logger)
	} else {
		events = audit.NewDirectPublisher(audit.NewRecorder(db), logger)
	}

	// Sealer for bank accounts and organization archives
	sealer, err := crypto.NewSealer(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create sealer", "error", err)
		os.Exit(1)
	}
	if cfg.Encryption.Key == "" {
		logger.Warn("ENCRYPTION_KEY not set, using generated key - sealed data will be unreadable after restart")
	}

	archiver, err := archive.New(context.Background(), cfg.Archive)
	if err != nil {
		logger.Error("failed to create archiver", "error", err)
		os.Exit(1)
	}

	// Initialize services
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService)
	reg := registry.New(db, registry.Options{
		Cache:         cache,
		Events:        events,
		Jobs:          jobs,
		Archiver:      archiver,
		ArchivePrefix: cfg.Archive.Prefix,
		Sealer:        sealer,
		TrialPeriod:   cfg.Tenancy.TrialPeriod(),
		Reserved:      cfg.Tenancy.IsReserved,
		Logger:        logger,
	})

	if cfg.Encryption.Key == "" || cfg.Archive.Provider == "" || cfg.Archive.Provider == "none" {
		logger.Warn("no durable archive configured, organization hard delete is disabled")
	}

	if cfg.Admin.Key == "" {
		logger.Info("ADMIN_KEY not set, admin routes disabled")
	}

	// Create router
	var routerRedis redis.UniversalClient
	if redisClient != nil {
		routerRedis = redisClient
	}
	router := api.NewRouter(api.RouterConfig{
		DB:            db,
		Redis:         routerRedis,
		Logger:        logger,
		JWTService:    jwtService,
		AuthService:   authService,
		Registry:      reg,
		Sealer:        sealer,
		Events:        events,
		Tenancy:       cfg.Tenancy,
		AdminKey:      cfg.Admin.Key,
		RateLimitReqs: cfg.RateLimit.Requests,
		RateLimitSecs: cfg.RateLimit.WindowSeconds,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Close Asynq client
	if asynqClient != nil {
		asynqClient.Close()
	}

	// Close Redis connection
	if redisClient != nil {
		redisClient.Close()
	}

	// Close database connection
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}
