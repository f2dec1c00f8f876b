package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"bloudan-catalogue/app"
	"bloudan-catalogue/models"
	"bloudan-catalogue/service"
)

func newWarmCmd(rt *state) *cobra.Command {
	var items string

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Prefetch catalogue images into the image cache",
		Long: `Fetches every item's image once through the image proxy so the
configured cache (Redis or disk) is populated before the next render.`,
		Example: `  bloudan-catalogue warm --items items.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log := rt.cfg, rt.log

			source, closeSource, err := itemSource(ctx, cfg, items, log)
			if err != nil {
				return err
			}
			defer closeSource()

			list, err := source.ListItems(ctx, models.OrderAsc)
			if err != nil {
				return err
			}

			proxy, closeCache, err := app.NewImageProxy(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer closeCache()

			prefetch := service.NewPrefetchService(proxy, service.NewAssetLocator(cfg.Render.AssetBaseURL), log)
			report, err := prefetch.PrefetchImages(ctx, list)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d fetched, %d skipped, %d failed of %d items\n",
				report.Fetched, report.Skipped, len(report.Errors), report.Total)
			for _, e := range report.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), e)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&items, "items", "i", "", "Item file (.json, .yaml); the catalogue store is used when empty")

	return cmd
}
