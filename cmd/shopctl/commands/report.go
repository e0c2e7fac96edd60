package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/safar/go-shop-bot/cmd/shopctl/output"
	"github.com/safar/go-shop-bot/internal/models"
	"github.com/spf13/cobra"
)

var (
	usersPage     int
	usersPageSize int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show shop totals and the busiest categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withShop(cmd, func(ctx context.Context, s *shop) error {
			stats, err := s.svc.Stats(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return output.JSON(stats)
			}
			printStats(stats)
			return nil
		})
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List registered users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withShop(cmd, func(ctx context.Context, s *shop) error {
			page, err := s.svc.Users(ctx, usersPage, usersPageSize)
			if err != nil {
				return err
			}
			if jsonOutput {
				return output.JSON(page)
			}

			users, _ := page.Items.([]models.User)
			w := tabwriter.NewWriter(output.Writer, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tUSERNAME\tADMIN\tREGISTERED")
			_, _ = fmt.Fprintln(w, "--\t--------\t-----\t----------")
			for _, u := range users {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%t\t%s\n", u.ExternalID, u.Username, u.IsAdmin, u.CreatedAt.Format("2006-01-02"))
			}
			_ = w.Flush()
			output.Muted("page %d of %d, %d users", page.Page, page.TotalPages, page.Total)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd, usersCmd)

	usersCmd.Flags().IntVar(&usersPage, "page", 1, "Page number")
	usersCmd.Flags().IntVar(&usersPageSize, "page-size", 20, "Users per page")
}

func printStats(stats *models.Stats) {
	output.Section("Shop statistics")
	output.Field("products", stats.Products)
	output.Field("categories", stats.Categories)
	output.Field("users", stats.Users)
	output.Field("orders", stats.Orders)

	if len(stats.TopCategories) == 0 {
		return
	}
	output.Section("Top categories")
	for i, c := range stats.TopCategories {
		output.Field(fmt.Sprintf("%d. %s", i+1, c.Name), c.Products)
	}
}
