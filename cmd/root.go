// Package cmd wires the CLI entrypoints.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leadgen-engine",
		Short: "Lead generation scraping service.",
		Long: `leadgen-engine discovers local businesses for a city and category,
enriches each one with contact details scraped from its website, and
persists the results as leads. Work runs through a durable single-worker
queue so projects execute one at a time.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: environment only)")
	cmd.AddCommand(newServeCmd())
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
