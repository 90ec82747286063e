package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/KakaCheng2010/go-admin/internal/app"
	"github.com/KakaCheng2010/go-admin/internal/auth"
	"github.com/KakaCheng2010/go-admin/internal/gateway"
	"github.com/KakaCheng2010/go-admin/internal/menu"
	"github.com/KakaCheng2010/go-admin/internal/observability"
	"github.com/KakaCheng2010/go-admin/internal/pages"
	"github.com/KakaCheng2010/go-admin/internal/platform/cache"
	"github.com/KakaCheng2010/go-admin/internal/routes"
	"github.com/KakaCheng2010/go-admin/internal/session"
	"github.com/KakaCheng2010/go-admin/internal/view"
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// Sessions need Redis eventually, but menu caching degrades to
		// backend fetches, so start anyway and keep retrying via the client.
		logger.Warn("redis unavailable at startup", slog.Any("error", err))
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := session.NewManager(redisClient, "console_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := session.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	backend := gateway.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout, logger)
	menuCache := menu.NewCache(redisClient, cfg.MenuCacheTTL, logger)

	registry := pages.NewRegistry(pages.Deps{
		Logger:    logger,
		Templates: templates,
		CSRF:      csrfManager,
	})

	resolver := routes.NewResolver(registry, menuCache, backend.MenuFetcher(), logger, metrics)

	authHandler := auth.NewHandler(logger, backend, sessionManager, csrfManager, templates, resolver, metrics)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthHandler:    authHandler,
		Resolver:       resolver,
		Metrics:        metrics,
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
