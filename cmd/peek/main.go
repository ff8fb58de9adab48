// Package main is the entry point for the peek CLI.
//
// Peek can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	peek run -c peek.yaml           # Probe continuously
//	peek run -c peek.yaml --once    # One pass, for cron
//	peek validate -c peek.yaml      # Validate configuration
//	peek version                    # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "peek",
	Short: "Watch HTTP endpoints and report when they change",
	Long: `Peek probes HTTP(S) endpoints on a schedule, checks their status,
required content and certificate expiry, and notifies a webhook or mailbox
when an endpoint goes down, recovers or starts reporting a problem.

Quick start:
  1. Create a config file (peek.yaml)
  2. Run: peek validate -c peek.yaml
  3. Run: peek run -c peek.yaml

Example config:
  database: peek.db
  notifications:
    enabled: true
    webhook:
      url: ${SLACK_WEBHOOK_URL}
  checks:
    - url: https://example.com
      interval: 60
      search_string: Welcome`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "peek %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
