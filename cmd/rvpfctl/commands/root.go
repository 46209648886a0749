// Package commands implements the rvpfctl CLI command tree.
package commands

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "rvpfctl",
	Short:         "Diagnostic client for DNP3 and CIP point access",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: environment and built-in defaults)")

	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(assocCmd)
	rootCmd.AddCommand(serveCmd)
}
