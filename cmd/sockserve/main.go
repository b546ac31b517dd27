// Sockserve runs a set of small TCP, TLS and WebSocket servers on top of a
// bounded, multi-threaded connection engine.
//
// Each configured server pairs a service (echo, discard, zero, chargen,
// daytime) with a transport and a connection limit. Servers can be
// advertised over mDNS and found again with the scan command.
//
// Usage:
//
//	sockserve [command] [flags]
//
// See 'sockserve --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/sockserve/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "sockserve",
	Short: "Bounded multi-threaded socket servers",
	Long: `A small socket server toolkit built on a bounded connection engine.

Each server in the configuration file listens on its own address, accepts
connections up to its max_connections limit and hands them to a service.
When the limit is reached the server reports itself busy and stops
accepting until a slot frees up.

Run 'sockserve config init' to write a starting configuration.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the configuration file (default: OS config directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "sockserve %s (commit: %s)\n", info.Version, info.Commit)
		fmt.Fprintf(out, "  built:    %s\n", info.BuildTime)
		fmt.Fprintf(out, "  go:       %s\n", info.GoVersion)
		fmt.Fprintf(out, "  platform: %s\n", info.Platform)
	},
}
