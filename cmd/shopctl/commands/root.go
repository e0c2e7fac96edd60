// Package commands implements the shopctl command tree.
package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/safar/go-shop-bot/cmd/shopctl/output"
	"github.com/safar/go-shop-bot/internal/config"
	"github.com/safar/go-shop-bot/internal/database"
	"github.com/safar/go-shop-bot/internal/images"
	"github.com/safar/go-shop-bot/internal/logging"
	"github.com/safar/go-shop-bot/internal/notify"
	"github.com/safar/go-shop-bot/internal/service"
	"github.com/safar/go-shop-bot/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dbURL      string
	jsonOutput bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "shopctl",
	Short: "Maintenance tool for the shop database",
	Long: `shopctl runs schema migrations, moves the catalog in and out of JSON
backups and reports on the shop without going through the bot.

Settings are read from the environment (and .env) exactly as the server
reads them; --db overrides DATABASE_URL.`,
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		output.Error("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "Database connection URL (defaults to DATABASE_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
}

// shop is everything a command may need, opened from the environment.
type shop struct {
	cfg    *config.Config
	db     *sql.DB
	repo   *store.Repository
	svc    *service.Service
	logger *zap.Logger
}

func (s *shop) Close() {
	s.svc.Wait()
	_ = s.db.Close()
	_ = s.logger.Sync()
}

func openShop(ctx context.Context) (*shop, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dbURL != "" {
		cfg.Database.URL = dbURL
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(level, true)
	if err != nil {
		return nil, err
	}

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	var sender notify.Sender = notify.NewLogSender(logger)
	if cfg.Telegram.Token != "" {
		sender = notify.NewTelegramSender(cfg.Telegram.APIURL, cfg.Telegram.Token)
	}

	repo := store.NewRepository(db)
	svc := service.NewService(
		repo,
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

	return &shop{cfg: cfg, db: db, repo: repo, svc: svc, logger: logger}, nil
}

// withShop opens the shop for the duration of fn.
func withShop(cmd *cobra.Command, fn func(ctx context.Context, s *shop) error) error {
	ctx := cmd.Context()
	s, err := openShop(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(ctx, s)
}
