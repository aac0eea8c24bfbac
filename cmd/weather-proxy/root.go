package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-proxy/internal/app"
	"github.com/kjstillabower/weather-proxy/internal/config"
	"github.com/kjstillabower/weather-proxy/internal/observability"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "weather-proxy",
		Short:         "Caching proxy for Open-Meteo current weather",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newLookupCmd())
	return root
}

// bootstrap loads configuration and builds the logger and application graph.
// The caller must Close the app and Sync the logger.
func bootstrap() (*app.App, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	a, err := app.New(cfg, logger)
	if err != nil {
		_ = observability.Flush(logger)
		return nil, nil, err
	}
	return a, logger, nil
}
