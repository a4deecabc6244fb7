// Package main запускает HTTP-сервер магазина рангов ChampaMC.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Hiroshi-99/ChampaMC/internal/config"
	"github.com/Hiroshi-99/ChampaMC/internal/handler"
	"github.com/Hiroshi-99/ChampaMC/internal/metrics"
	"github.com/Hiroshi-99/ChampaMC/internal/middleware"
	"github.com/Hiroshi-99/ChampaMC/internal/notify"
	"github.com/Hiroshi-99/ChampaMC/internal/repository"
	"github.com/Hiroshi-99/ChampaMC/internal/service"
	"github.com/Hiroshi-99/ChampaMC/internal/storage"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		sugar.Warnw("failed to load .env file", "error", err.Error())
	}

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}
	if err := cfg.Validate(); err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	store, err := storage.NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL, cfg.MaxUploadBytes)
	if err != nil {
		sugar.Fatalw("upload storage initialization error", "error", err.Error())
	}

	dispatcher := notify.NewDispatcher(notify.Config{
		URL:            cfg.WebhookURL,
		Attempts:       cfg.WebhookAttempts,
		RetryDelay:     cfg.WebhookRetryDelay,
		AttemptTimeout: cfg.WebhookTimeout,
		Username:       cfg.WebhookUsername,
		AvatarURL:      cfg.WebhookAvatarURL,
	}, logger.Named("notify"))
	if !cfg.NotificationsEnabled() {
		sugar.Warn("webhook URL is not set, order notifications are disabled")
	}

	storeMetrics := metrics.NewStoreMetrics(prometheus.DefaultRegisterer)

	svc := service.NewService(repo, store, dispatcher, logger.Named("service"),
		service.WithMetrics(storeMetrics),
		service.WithDemoFallback(cfg.DemoFallback),
	)
	defer svc.Close()

	if err := svc.EnsureAdmin(context.Background(), cfg.AdminEmail, cfg.AdminPassword); err != nil {
		sugar.Fatalw("staff seed error", "error", err.Error())
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret, cfg.SessionTTL)
	h := handler.NewHandler(svc, logger, authMiddleware, handler.Config{
		UploadDir:      store.Root(),
		MaxUploadBytes: store.MaxBytes(),
		Metrics:        promhttp.Handler(),
	})

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting champamc server",
			"addr", cfg.RunAddress,
			"demo_fallback", cfg.DemoFallback,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Errorw("application terminated with error", "error", err)
	}
}
