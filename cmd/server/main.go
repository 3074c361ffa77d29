package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"url-registry/internal/config"
	"url-registry/internal/diaglog"
	httpHandler "url-registry/internal/handler/http"
	"url-registry/internal/jobs"
	"url-registry/internal/ratelimit"
	"url-registry/internal/repository/memory"
	"url-registry/internal/service"
	"url-registry/pkg/logger"
)

func main() {
	// A missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.App.LogLevel, cfg.App.LogFormat)
	appLogger.Info("Starting URL Registry",
		"environment", cfg.App.Environment,
		"port", cfg.Server.Port,
		"diagnostic_sink", cfg.DiagLog.Sink,
	)

	ctx := context.Background()

	// Diagnostic log sink. Failures here fall back to local-only logging
	// so the registry keeps serving.
	var sink diaglog.Sink = diaglog.NopSink{}
	var db *pgxpool.Pool
	switch cfg.DiagLog.Sink {
	case config.SinkHTTP:
		sink = diaglog.NewHTTPSink(cfg.DiagLog.URL, cfg.DiagLog.Token, cfg.DiagLog.Timeout)
	case config.SinkPostgres:
		db, err = diaglog.InitDB(
			ctx,
			cfg.Database.DatabaseDSN(),
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			appLogger.Error("Diagnostic database unavailable, logging locally only", "error", err)
			break
		}
		pgSink := diaglog.NewPostgresSink(db)
		if err := pgSink.EnsureSchema(ctx); err != nil {
			appLogger.Error("Failed to prepare diagnostic table, logging locally only", "error", err)
			break
		}
		sink = pgSink
		appLogger.Info("Diagnostic database connection established")
	}
	if db != nil {
		defer db.Close()
	}

	dispatcher := diaglog.NewDispatcher(sink, appLogger.Logger, diaglog.Options{
		Stack:      cfg.DiagLog.Stack,
		BufferSize: cfg.DiagLog.BufferSize,
		Timeout:    cfg.DiagLog.Timeout,
		MinLevel:   diaglog.Level(cfg.DiagLog.MinLevel),
	})

	store := memory.New()
	registry := service.NewRegistry(
		store.URLs(),
		store.Clicks(),
		dispatcher,
		appLogger.Logger,
		service.Config{
			CheckGeneratedCollisions: cfg.Registry.CheckGeneratedCollisions,
			MaxGenerateAttempts:      cfg.Registry.MaxGenerateAttempts,
			SimulatedLatency:         cfg.Registry.SimulatedLatency,
		},
		service.WithOriginSource(service.NewOriginSimulator(cfg.Registry.ClickSeed)),
	)

	var limiter httpHandler.RateLimiter
	var redisClient *redis.Client
	if cfg.RateLimit.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			appLogger.Warn("Redis unreachable, rate limiter will fail open", "error", err)
		}
		limiter = ratelimit.NewLimiter(redisClient, "ratelimit", cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
		appLogger.Info("Rate limiting enabled",
			"max_requests", cfg.RateLimit.MaxRequests,
			"window", cfg.RateLimit.Window,
		)
	}

	handler := httpHandler.NewHandler(registry, appLogger.Logger, cfg.Server.BaseURL)
	router := httpHandler.NewRouter(handler, httpHandler.RouterConfig{
		Logger:         appLogger.Logger,
		Limiter:        limiter,
		EnableMetrics:  cfg.App.EnableMetrics,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	var reporter *jobs.StatsReporter
	if cfg.Jobs.StatsEnabled {
		reporter = jobs.NewStatsReporter(registry, appLogger.Logger)
		if err := reporter.Start(cfg.Jobs.StatsSchedule); err != nil {
			appLogger.Error("Stats reporter disabled", "error", err)
			reporter = nil
		}
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLogger.Info("Server starting", "address", server.Addr, "base_url", cfg.Server.BaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Server failed", "error", err)
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	if reporter != nil {
		reporter.Stop(shutdownCtx)
	}

	// Flush queued diagnostics after the last request has finished
	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.DiagLog.ShutdownTimeout)
	defer drainCancel()
	if err := dispatcher.Close(drainCtx); err != nil {
		appLogger.Warn("Diagnostic log queue not fully drained", "error", err)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			appLogger.Error("Failed to close redis client", "error", err)
		}
	}

	appLogger.Info("Server exited gracefully")
}
