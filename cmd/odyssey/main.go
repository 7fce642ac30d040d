package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-desk/internal/app"
	"github.com/odyssey-erp/odyssey-desk/internal/observability"
	"github.com/odyssey-erp/odyssey-desk/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-desk/internal/reconcile"
	"github.com/odyssey-erp/odyssey-desk/internal/shared"
	"github.com/odyssey-erp/odyssey-desk/internal/view"
	viewshttp "github.com/odyssey-erp/odyssey-desk/internal/views/http"
	"github.com/odyssey-erp/odyssey-desk/jobs"
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
	metrics := observability.NewMetrics()

	services, err := app.NewServices(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("init services", slog.Any("error", err))
		os.Exit(1)
	}
	defer services.Close()

	if err := services.Backend.Ping(ctx); err != nil {
		logger.Warn("backend ping", slog.String("url", cfg.BackendURL), slog.Any("error", err))
	}

	if services.Redis != nil {
		go func() {
			if err := services.Cache.ListenForInvalidation(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("list cache invalidation listener", slog.Any("error", err))
			}
		}()
	}

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	viewsHandler := viewshttp.NewHandler(logger, services.Views, templates, cfg.RateLimitSearch)
	viewsHandler.OnSuperseded(metrics.SearchSuperseded)

	boards := reconcile.NewBoards(reconcile.Config{
		Backend:     services.Backend,
		Invalidator: services.Views,
		Logger:      logger,
		OnRollback:  func() { metrics.Rollback("bank_movements") },
	})
	reconcileHandler := reconcile.NewHandler(boards, templates, cfg.Currency, logger)

	var jobHandler *jobs.Handler
	if services.Redis != nil {
		queueOpts := cache.QueueOpts(cfg.RedisAddr)
		inspector := asynq.NewInspector(queueOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobClient, err := jobs.NewClient(queueOpts)
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, jobClient, logger)
	} else {
		jobHandler = jobs.NewHandler(nil, nil, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		DeskManager:      shared.NewDeskManager(cfg.DeskCookie, cfg.DeskCookieTTL, cfg.IsProduction()),
		ViewsHandler:     viewsHandler,
		ReconcileHandler: reconcileHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", cfg.BackendURL))
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
