package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bloudan-catalogue/app"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(rt *state) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the catalogue HTTP service",
		Long: `Starts the catalogue service with the /ping, /proxy and /catalogue endpoints.

The catalogue store, download links and email delivery are enabled when
their settings are present (DATABASE_URL, S3_BUCKET, SMTP_HOST).`,
		Example: `  # Start on PORT or 8080
  bloudan-catalogue serve

  # Start on a custom port
  bloudan-catalogue serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := rt.cfg, rt.log
			if port != "" {
				cfg.Port = port
			}

			application, err := app.Initialize(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}

			// Listen on all interfaces for container deployments
			addr := "0.0.0.0:" + cfg.Port
			server := &http.Server{
				Addr:              addr,
				Handler:           application.Handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				log.Info("🚀 Server starting", zap.String("addr", addr), zap.String("backend", cfg.Render.Backend))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				log.Info("Shutting down server...")
			case err := <-serverErr:
				application.Shutdown(context.Background())
				return err
			}

			// Queued emails are sent before the listener closes, new ones get 503
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := application.DrainEmails(shutdownCtx); err != nil {
				log.Error("❌ Email queue not drained", zap.Error(err))
			}
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error("❌ Server shutdown failed", zap.Error(err))
			}
			if err := application.Shutdown(shutdownCtx); err != nil {
				log.Error("❌ Shutdown incomplete", zap.Error(err))
				return err
			}
			log.Info("✓ Server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides PORT)")

	return cmd
}
