// Package main запускает HTTP-сервер движка жизненного цикла лидов.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/leadflow/internal/config"
	"github.com/mmeshcher/leadflow/internal/dangerzone"
	"github.com/mmeshcher/leadflow/internal/handler"
	"github.com/mmeshcher/leadflow/internal/middleware"
	"github.com/mmeshcher/leadflow/internal/notify"
	"github.com/mmeshcher/leadflow/internal/repository"
	"github.com/mmeshcher/leadflow/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewPostgresRepository(ctx, cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	var cache dangerzone.Store = dangerzone.NewMemoryStore()
	if cfg.RedisAddress != "" {
		client, err := dangerzone.NewRedisClient(ctx, cfg.RedisAddress)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer client.Close()
		cache = dangerzone.NewRedisStore(client)
	}

	var notifier service.Notifier = notify.Discard{}
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewClient(cfg.NotifyWebhookURL)
	}

	svc := service.NewService(repo, service.Options{
		Notifier:          notifier,
		Cache:             cache,
		Logger:            logger,
		CommissionPercent: cfg.CommissionPercent,
	})
	defer func() {
		if err := svc.Close(); err != nil {
			sugar.Errorw("close service", "error", err)
		}
	}()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting leadflow server", "addr", cfg.RunAddress)
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
