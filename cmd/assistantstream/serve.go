package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/assistantstream/server"
	"github.com/hupe1980/assistantstream/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the chat agent behind POST /api/chat, with /healthz and, when enabled, /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		a, err := newApp(cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		logger := a.logger.WithComponent("server")

		handler := server.New(a.agent, func(o *server.Options) {
			o.Runs = a.runs
			o.DefaultFormat = cfg.Server.DefaultFormat
			o.Logger = logger
			if cfg.Server.ThreadHistory > 0 {
				o.Sessions = session.NewInMemoryStore(func(o *session.InMemoryOptions) {
					o.MaxMessages = cfg.Server.ThreadHistory
				})
			}
			if a.registry != nil {
				o.Gatherer = a.registry
			}
		})

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("server.start", "addr", srv.Addr, "provider", cfg.Agent.Provider)
			serverErrors <- srv.ListenAndServe()
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			logger.Info("server.shutdown", "timeout", cfg.Server.ShutdownTimeout)

			// Give outstanding runs a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown did not complete in %v: %w", cfg.Server.ShutdownTimeout, err)
			}
			logger.Info("server.stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Listen address (overrides server.addr)")
}
