package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bloudan-catalogue/app"
	"bloudan-catalogue/config"
	"bloudan-catalogue/db"
	"bloudan-catalogue/logger"
	"bloudan-catalogue/models"
	"bloudan-catalogue/repository"
	"bloudan-catalogue/service"
)

type renderOptions struct {
	items  string
	filter string
	order  string
	out    string
	force  bool
	link   bool
	stdout bool
}

func newRenderCmd(rt *state) *cobra.Command {
	opts := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the catalogue to a local PDF",
		Long: `Renders the catalogue once and saves it through the delivery tiers:
the local file first, then a download link (--link, needs S3 settings),
then standard output (--stdout). A tier that is unavailable or declined
passes the document to the next one.

Items come from --items (JSON or YAML) or from the catalogue store.`,
		Example: `  # Render adult sizes from a file
  bloudan-catalogue render --items items.yaml --filter Adult

  # Render everything from the database, replacing an existing file
  bloudan-catalogue render --filter Both --out catalogue.pdf --force

  # Stream to stdout
  bloudan-catalogue render --items items.json --filter Kids --out "" --stdout > kids.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, rt, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.items, "items", "i", "", "Item file (.json, .yaml); the catalogue store is used when empty")
	cmd.Flags().StringVarP(&opts.filter, "filter", "f", "", "Size filter: Adult, Kids or Both")
	cmd.Flags().StringVar(&opts.order, "order", string(models.OrderAsc), "Model number order: asc or desc")
	cmd.Flags().StringVarP(&opts.out, "out", "o", ".", "Output file or directory; empty skips the file tier")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Overwrite an existing output file")
	cmd.Flags().BoolVar(&opts.link, "link", false, "Upload and print a download link when the file tier declines")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "Write the PDF to standard output as the last tier")
	_ = cmd.MarkFlagRequired("filter")

	return cmd
}

func runRender(cmd *cobra.Command, rt *state, opts *renderOptions) error {
	ctx := cmd.Context()
	cfg, log := rt.cfg, rt.log

	filter, err := models.ParseRenderFilter(opts.filter)
	if err != nil {
		return err
	}
	order, err := models.ParseSortOrder(opts.order)
	if err != nil {
		return err
	}

	// Keep log lines out of the PDF stream
	if opts.stdout && (cfg.Log.Output == "" || cfg.Log.Output == "stdout") {
		logCfg := cfg.Log
		logCfg.Output = "stderr"
		if log, err = logger.New(logCfg); err != nil {
			return err
		}
	}

	source, closeSource, err := itemSource(ctx, cfg, opts.items, log)
	if err != nil {
		return err
	}
	defer closeSource()

	items, err := source.ListItems(ctx, order)
	if err != nil {
		return err
	}

	proxy, closeCache, err := app.NewImageProxy(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	proxyURL, stopProxy, err := app.StartLocalProxy(proxy, log)
	if err != nil {
		return err
	}
	defer stopProxy()

	doc, err := app.NewAssembler(cfg, proxyURL, log).Assemble(ctx, items, filter)
	if err != nil {
		return err
	}

	var tiers []service.Saver
	if opts.out != "" {
		tiers = append(tiers, &service.FileSaver{Path: opts.out, Overwrite: opts.force})
	}
	if opts.link && cfg.Storage.Enabled() {
		store, err := service.NewS3ObjectStore(ctx, cfg.Storage, log)
		if err != nil {
			return err
		}
		tiers = append(tiers, &service.LinkSaver{Store: store, Prefix: "catalogues/"})
	}
	if opts.stdout {
		tiers = append(tiers, &service.BlobSaver{W: cmd.OutOrStdout()})
	}

	delivery, err := service.NewDeliverySelector(log, tiers...).Deliver(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to save catalogue: %w", err)
	}

	if delivery.Tier != "blob" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s (%d pages)\n", delivery.Location, doc.Pages)
	}
	if len(doc.Degraded) > 0 {
		log.Warn("⚠️  Some cards were rendered without their image", zap.Ints("modelNumbers", doc.Degraded))
	}
	return nil
}

// itemSource picks the item file when given, the catalogue store otherwise
func itemSource(ctx context.Context, cfg *config.Config, path string, log *zap.Logger) (service.ItemSource, func() error, error) {
	if path != "" {
		return repository.NewFileStore(path), func() error { return nil }, nil
	}

	dsn := cfg.Database.DSN()
	if dsn == "" {
		return nil, nil, fmt.Errorf("%w: pass --items or configure the catalogue store", models.ErrValidationFailed)
	}
	if err := db.InitDB(ctx, dsn, log); err != nil {
		return nil, nil, err
	}
	return repository.NewCatalogueRepository(db.DB, log), db.CloseDB, nil
}
