package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the Sukuu admin CLI. Subcommands
// (bootstrap, school, user) are attached here.
var rootCmd = &cobra.Command{
	Use:           "sukuu",
	Short:         "Sukuu admin CLI",
	Long:          "Administrative utilities for Sukuu (platform bootstrap, school registry, user management).",
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
