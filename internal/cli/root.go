// Package cli wires the wadash command tree.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/wadash/wadash/internal/cli.version=1.2.3"
	version = "1.0.0"
	logo    = "\n" +
		" __        ___    ____    _    ____  _   _\n" +
		" \\ \\      / / \\  |  _ \\  / \\  / ___|| | | |\n" +
		"  \\ \\ /\\ / / _ \\ | | | |/ _ \\ \\___ \\| |_| |\n" +
		"   \\ V  V / ___ \\| |_| / ___ \\ ___) |  _  |\n" +
		"    \\_/\\_/_/   \\_\\____/_/   \\_\\____/|_| |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "wadash",
	Short: "wadash - multi-tenant WhatsApp bot platform",
	Long:  color.CyanString(logo) + "\nPer-tenant WhatsApp bot connections with a command engine, written in Go.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}
