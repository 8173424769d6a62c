package cmd

import (
	"github.com/spf13/cobra"

	"clip-orchestrator/config"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "clip-orchestrator",
		Short: "order fulfillment for AI clip orders",
	}
	rootCmd.AddCommand(server(config), dispatch(config), migrate(config))
	return rootCmd
}
