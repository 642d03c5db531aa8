// cmd/api-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"grant-backend/internal/admin"
	"grant-backend/internal/applications"
	"grant-backend/internal/common/config"
	"grant-backend/internal/common/database"
	"grant-backend/internal/common/logger"
	"grant-backend/internal/common/observability"
	"grant-backend/internal/common/ratelimit"
	"grant-backend/internal/grants"
	"grant-backend/internal/httpapi"
	"grant-backend/internal/notifications"
	"grant-backend/internal/store"
	"grant-backend/internal/workflow"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting API server...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (optional) ---
	var searchIndex grants.SearchIndex
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		searchIndex = grants.NewElasticIndex(esClient.Client, cfg.Database.Elasticsearch.GrantIndex, log)
		zapLog.Info("Elasticsearch connected successfully")
	} else {
		zapLog.Info("Elasticsearch disabled, grant search uses SQL fallback")
	}

	// --- Stores and services ---
	applicationStore := store.NewApplicationStore(pg.DB, log)
	grantStore := store.NewGrantStore(pg.DB, log)

	policy, err := workflow.NewPolicy(cfg.Workflow)
	if err != nil {
		zapLog.Fatal("workflow policy invalid", zap.Error(err))
	}
	engine := workflow.NewEngine(applicationStore, policy, log)

	notifier, err := notifications.NewNotifier(ctx, cfg.Notifications, log)
	if err != nil {
		zapLog.Fatal("notifier init failed", zap.Error(err))
	}

	appService := applications.NewService(applicationStore, policy, notifier, cfg.Workflow.SeedInitialHistory, log)
	aggregator := admin.NewAggregator(applicationStore, cfg.Workflow.RecentLimit, log)
	queryService := admin.NewQueryService(applicationStore, cfg.Pagination, log)
	grantService := grants.NewService(grantStore, searchIndex, cfg.Pagination.DefaultPageSize, cfg.Pagination.MaxPageSize, log)

	var limiter ratelimit.Limiter = ratelimit.NoopLimiter{}
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewRedisLimiter(redisClient.Client, cfg.App.Name)
	}

	server := httpapi.NewServer(cfg.Server, httpapi.Deps{
		Applications: httpapi.NewApplicationHandler(appService, log),
		Admin:        httpapi.NewAdminHandler(aggregator, queryService, engine, notifier, log),
		Grants:       httpapi.NewGrantHandler(grantService, log),
		Limiter:      limiter,
		Auth:         cfg.Auth,
		RateLimit:    cfg.RateLimit,
		Obs:          obs,
		Health: map[string]func() error{
			"postgres": func() error { return pg.Ping(context.Background()) },
			"redis":    func() error { return redisClient.Ping(context.Background()) },
		},
	}, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			zapLog.Fatal("server error", zap.Error(err))
		}
	case sig := <-sigCh:
		zapLog.Info("Shutdown signal received, draining...", zap.String("signal", sig.String()))
	}

	shutdownTimeout := 10 * time.Second
	if cfg.Server.ShutdownTimeout > 0 {
		shutdownTimeout = time.Duration(cfg.Server.ShutdownTimeout) * time.Millisecond
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("shutdown incomplete", zap.Error(err))
	}
	zapLog.Info("API server stopped")
}
