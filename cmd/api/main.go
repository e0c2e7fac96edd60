// Package main runs the shop HTTP API.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/safar/go-shop-bot/internal/config"
	"github.com/safar/go-shop-bot/internal/database"
	"github.com/safar/go-shop-bot/internal/handler"
	"github.com/safar/go-shop-bot/internal/images"
	"github.com/safar/go-shop-bot/internal/logging"
	"github.com/safar/go-shop-bot/internal/notify"
	"github.com/safar/go-shop-bot/internal/service"
	"github.com/safar/go-shop-bot/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("application terminated with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, database.Up); err != nil {
		return err
	}

	var sender notify.Sender
	if cfg.Telegram.Token != "" {
		sender = notify.NewTelegramSender(cfg.Telegram.APIURL, cfg.Telegram.Token)
	} else {
		logger.Warn("telegram token not set, messages are only logged")
		sender = notify.NewLogSender(logger)
	}

	svc := service.NewService(
		store.NewRepository(db),
		images.NewFileStore(cfg.Catalog.ImageDir, cfg.Catalog.DefaultImage),
		notify.NewNotifier(sender, logger),
		service.NewAllowList(cfg.Admin.IDs),
		service.Options{
			Categories:   cfg.Catalog.Categories,
			BackupDir:    cfg.Catalog.BackupDir,
			BackupFile:   cfg.Catalog.BackupFile,
			SnapshotKeep: cfg.Catalog.SnapshotKeep,
		},
		logger,
	)
	defer svc.Wait()

	if err := svc.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.NewHandler(svc, logger).SetupRouter(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting shop server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		logger.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}
