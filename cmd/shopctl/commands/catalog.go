package commands

import (
	"context"

	"github.com/safar/go-shop-bot/cmd/shopctl/output"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Move the product catalog in and out of JSON backups",
}

var catalogExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write every product to a JSON backup",
	Long: `Write every product to a JSON backup. Without a file argument the
configured backup file inside the backup directory is used.

Examples:
  shopctl catalog export
  shopctl catalog export /tmp/catalog.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withShop(cmd, func(ctx context.Context, s *shop) error {
			path, n, err := s.svc.ExportCatalog(ctx, fileArg(args))
			if err != nil {
				return err
			}
			if jsonOutput {
				return output.JSON(map[string]any{"file": path, "products": n})
			}
			output.Success("Exported %d products to %s", n, path)
			return nil
		})
	},
}

var catalogImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Merge a JSON backup into the catalog",
	Long: `Merge a JSON backup into the catalog. Products that already exist
(same name in the same category) are left alone; records with an unknown
category or invalid data are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withShop(cmd, func(ctx context.Context, s *shop) error {
			result, err := s.svc.ImportCatalog(ctx, fileArg(args))
			if err != nil {
				return err
			}
			if jsonOutput {
				return output.JSON(result)
			}
			output.Section("Catalog import")
			output.Field("imported", result.Imported)
			output.Field("already present", result.Existing)
			output.Field("skipped", result.Skipped)
			if result.Skipped > 0 {
				output.Warning("%d records were skipped, see the log with -v", result.Skipped)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogExportCmd, catalogImportCmd)
}

func fileArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
