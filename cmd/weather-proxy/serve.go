package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-proxy/internal/observability"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = observability.Flush(logger) }()
			defer func() {
				if err := a.Close(); err != nil {
					logger.Error("close resources", zap.Error(err))
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := a.Server()
			errCh := make(chan error, 1)
			go func() {
				logger.Info("server starting", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()
			defer a.StartCacheWarming(ctx)()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-ctx.Done():
			}

			logger.Info("graceful shutdown triggered")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("server shutdown", zap.Error(err))
			}

			logger.Info("waiting for in-flight requests", zap.Int64("count", a.InFlight.Count()))
			if err := a.InFlight.WaitForZero(shutdownCtx, 50*time.Millisecond); err != nil {
				logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", a.InFlight.Count()))
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
}
