package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bloudan-catalogue/config"
	"bloudan-catalogue/logger"
)

// state carries what PersistentPreRunE loaded to the subcommands
type state struct {
	cfg *config.Config
	log *zap.Logger
}

func NewRootCmd() *cobra.Command {
	rt := &state{}

	cmd := &cobra.Command{
		Use:   "bloudan-catalogue",
		Short: "Render the Bloudan Bangles product catalogue as a PDF",
		Long: `bloudan-catalogue renders the bangle catalogue into a printable A4 PDF,
four product cards per page, filtered by Adult, Kids or Both sizes.

It runs either as an HTTP service (download, render and email endpoints)
or as a one-shot render to a local file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Missing .env is fine, variables may come from the environment
			_ = config.LoadDotEnv(os.Getenv("ENV"))

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			log, err := logger.New(cfg.Log)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			rt.cfg, rt.log = cfg, log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.log != nil {
				_ = rt.log.Sync()
			}
		},
	}

	cmd.AddCommand(newServeCmd(rt))
	cmd.AddCommand(newRenderCmd(rt))
	cmd.AddCommand(newWarmCmd(rt))

	return cmd
}
