package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/homescan/listing-crawler/internal/app"
	"github.com/homescan/listing-crawler/internal/config"
)

// newServeCmd creates the serve command, which runs the HTTP API and the
// crawl dispatcher until interrupted.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the crawl API server and dispatcher.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			application, err := app.Build(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}

			return application.Run(cmd.Context())
		},
	}
}
