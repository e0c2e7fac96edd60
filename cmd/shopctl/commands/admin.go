package commands

import (
	"context"
	"fmt"

	"github.com/safar/go-shop-bot/cmd/shopctl/output"
	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Inspect and reconcile administrator flags",
}

var adminSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Write the ADMIN_IDS allow-list to the database",
	Long: `Mark every id in ADMIN_IDS as an administrator, registering ids the
database has never seen. Flags of users outside the list are untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withShop(cmd, func(ctx context.Context, s *shop) error {
			if len(s.cfg.Admin.IDs) == 0 {
				output.Warning("ADMIN_IDS is empty, nothing to sync")
				return nil
			}
			if err := s.svc.ReconcileAdministrators(ctx); err != nil {
				return err
			}
			output.Success("Synced %d administrators", len(s.cfg.Admin.IDs))
			return nil
		})
	},
}

var adminListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users flagged as administrators",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withShop(cmd, func(ctx context.Context, s *shop) error {
			ids, err := s.repo.ListAdministrators(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return output.JSON(ids)
			}
			if len(ids) == 0 {
				output.Warning("No administrators")
				return nil
			}
			output.Section("Administrators")
			for _, id := range ids {
				fmt.Fprintf(output.Writer, "  %d\n", id)
			}
			return nil
		})
	},
}

var broadcastCmd = &cobra.Command{
	Use:   "broadcast <text>",
	Short: "Send a message to every registered user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withShop(cmd, func(ctx context.Context, s *shop) error {
			report, err := s.svc.Broadcast(ctx, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return output.JSON(report)
			}
			output.Success("Sent %d of %d", report.Sent, report.Total)
			if report.Failed > 0 {
				output.Warning("%d deliveries failed", report.Failed)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(adminCmd, broadcastCmd)
	adminCmd.AddCommand(adminSyncCmd, adminListCmd)
}
