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

	"github.com/medtrack/medtrack/internal/app"
	"github.com/medtrack/medtrack/internal/listing"
	"github.com/medtrack/medtrack/internal/notify"
	"github.com/medtrack/medtrack/internal/observability"
	"github.com/medtrack/medtrack/internal/platform/cache"
	"github.com/medtrack/medtrack/internal/platform/db"
	"github.com/medtrack/medtrack/internal/request"
	"github.com/medtrack/medtrack/internal/shared"
	"github.com/medtrack/medtrack/internal/stock"
	"github.com/medtrack/medtrack/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, calculated-field caching disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	locks := shared.NewKeyedMutex()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	notifyRepo := notify.NewRepository(pool)
	notifyService := notify.NewService(notifyRepo, jobClient, logger)

	stockRepo := stock.NewRepository(pool)
	listingRepo := listing.NewRepository(pool)
	listingCache := listing.NewCache(redisClient, 5*time.Minute)
	metrics := observability.NewMetrics()

	listingService := listing.NewService(listingRepo, stockRepo, notify.NewStockAlerter(notifyService), listingCache, auditLogger, logger)
	stockService := stock.NewService(stockRepo, listingService, locks, auditLogger, metrics, logger)

	requestRepo := request.NewRepository(pool)
	requestService := request.NewService(requestRepo, listingService, notify.NewRequestNotifier(notifyService), idempotencyStore, locks, auditLogger, metrics, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		ListingHandler:      listing.NewHandler(logger, listingService),
		StockHandler:        stock.NewHandler(logger, stockService),
		RequestHandler:      request.NewHandler(logger, requestService),
		NotificationHandler: notify.NewHandler(logger, notifyService),
		JobHandler:          jobs.NewHandler(inspector, logger),
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
