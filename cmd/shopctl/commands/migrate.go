package commands

import (
	"context"

	"github.com/safar/go-shop-bot/cmd/shopctl/output"
	"github.com/safar/go-shop-bot/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Apply or roll back the embedded schema migrations.

Subcommands:
  up      - Apply pending migrations
  down    - Roll back the latest migration
  status  - Show the current schema version`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withShop(cmd, func(ctx context.Context, s *shop) error {
			return runMigrate(ctx, s, database.Up)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the latest migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withShop(cmd, func(ctx context.Context, s *shop) error {
			return runMigrate(ctx, s, database.Down)
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withShop(cmd, func(ctx context.Context, s *shop) error {
			version, err := database.MigrationVersion(ctx, s.db)
			if err != nil {
				return err
			}
			if jsonOutput {
				return output.JSON(map[string]int64{"version": version})
			}
			output.Info("Schema version %d", version)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
}

func runMigrate(ctx context.Context, s *shop, direction database.Direction) error {
	if err := database.Migrate(ctx, s.db, direction); err != nil {
		return err
	}

	version, err := database.MigrationVersion(ctx, s.db)
	if err != nil {
		return err
	}
	if jsonOutput {
		return output.JSON(map[string]any{"direction": direction, "version": version})
	}
	output.Success("Migrated %s, schema version %d", direction, version)
	return nil
}
