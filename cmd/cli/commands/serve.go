package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/shiftsync/internal/server"
	"github.com/jakechorley/shiftsync/pkg/core/services"
	"github.com/jakechorley/shiftsync/pkg/worker"
)

// ServeCmd creates the serve command: the HTTP API plus the worker pool
func ServeCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the request workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(app.Ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			manager := worker.StartManager(ctx, app.Database, app.Client, app.Logger, worker.Options{
				Count:        app.Cfg.WorkerCount,
				PollInterval: app.Cfg.PollInterval(),
				LockTTL:      app.Cfg.LockTTL(),
				Process: services.ProcessOptions{
					MaxRetries: app.Cfg.MaxRetries,
					RetryDelay: app.Cfg.RetryDelay(),
				},
			})

			srv := server.New(app.Database, app.Logger, app.Cfg.MinBatchSize, manager, app.Postgres)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(app.Cfg.ListenAddr)
			}()

			select {
			case err := <-errCh:
				manager.Shutdown(30 * time.Second)
				if err != nil {
					return fmt.Errorf("HTTP server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			app.Logger.Info("Signal received, shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				app.Logger.Error("HTTP shutdown failed", zap.Error(err))
			}

			manager.Shutdown(30 * time.Second)
			return nil
		},
	}
}
