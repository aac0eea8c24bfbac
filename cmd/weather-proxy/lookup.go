package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kjstillabower/weather-proxy/internal/observability"
	"github.com/kjstillabower/weather-proxy/internal/validation"
)

func newLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <city>",
		Short: "Look up current weather for a city once and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			city, err := validation.ValidateCity(args[0])
			if err != nil {
				return err
			}

			a, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = observability.Flush(logger) }()
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), a.Config.RequestTimeout)
			defer cancel()

			result, err := a.Service.GetWeatherForCity(ctx, city)
			if err != nil {
				return fmt.Errorf("lookup %s: %w", city, err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}
