package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the NovaLearn admin CLI. Subcommands
// (bootstrap, tenant, migrate) are attached here.
var rootCmd = &cobra.Command{
	Use:           "novalearn",
	Short:         "NovaLearn admin CLI",
	Long:          "Administrative utilities for NovaLearn (registry bootstrap, tenant provisioning, fleet migrations).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
