package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agent2000/agent2000/internal/presentation/tui"
	httpAdapter "github.com/agent2000/agent2000/pkg/adapters/http"
	"github.com/agent2000/agent2000/pkg/ratelimit"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the helper service",
	Long: `Starts the HTTP service the container image exposes: token accounting,
text extraction, history with a live event stream, limiter statistics and host
information. Stops gracefully on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		logger := appLogger

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		manager, closeHistory, err := openHistory(ctx)
		if err != nil {
			return err
		}
		defer closeHistory()

		api, err := httpAdapter.NewServer(ctx, httpAdapter.Deps{
			History:      manager,
			Limiters:     ratelimit.NewRegistry(ratelimit.WithLogger(logger)),
			APILimit:     cfg.APILimiter(),
			Model:        cfg.Tokens.Model,
			MaxInputSize: cfg.Input.MaxSize,
		}, httpAdapter.WithLogger(logger))
		if err != nil {
			return err
		}
		defer api.Close()

		srv := &http.Server{
			Addr:              cfg.Addr(),
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if tui.IsTerminal(os.Stderr) {
			tui.PrintBanner(os.Stderr)
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting server", "addr", srv.Addr, "history", cfg.History.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err

		case <-ctx.Done():
			logger.Info("shutdown started")

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("graceful shutdown did not complete", "timeout", cfg.Server.ShutdownTimeout, "error", err)
				if err := srv.Close(); err != nil {
					logger.Error("failed to close server", "error", err)
				}
			}
			logger.Info("server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
}
