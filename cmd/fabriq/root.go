package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Fabriq daemon.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fabriq",
		Short: "Fabriq - a modular data platform runtime",
		Long: `Fabriq is a modular data platform whose capabilities (compute,
catalog, storage, and eight more) are provided by plugins managed by a
capability registry.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())

	return cmd
}
