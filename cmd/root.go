package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listingcrawler",
		Short: "Crawl and ingest recent property listings.",
		Long: `listingcrawler is the ingestion service for the property listing
pipeline. It walks the portal's newest-first search results, extracts
listing records from embedded page data, normalizes them into a flat
relational shape and persists them in batches until it crosses the
recency cutoff.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); defaults and LISTINGS_* env vars apply otherwise")

	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() error {
	return newRootCmd().Execute()
}
