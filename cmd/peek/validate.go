package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/peek/config"
)

// validateCmd validates a config file without probing anything.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a Peek configuration file without probing anything.

This command parses the YAML, expands environment variables, validates all
fields and expands grids. Check entries that would be skipped at run time
are listed as warnings. It's useful for CI/CD pipelines or pre-deployment
checks.

Exit codes:
  0 - Config is valid (warnings may have been printed)
  1 - Config is invalid (error details printed to stderr)

Example:
  peek validate -c peek.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	checks, err := config.BuildChecks(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	problems := cfg.Problems()
	direct := len(cfg.Checks) - len(problems)
	fromGrids := len(checks) - direct

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Checks:        %d direct + %d from grids = %d total\n", direct, fromGrids, len(checks))
	fmt.Fprintf(out, "  Skipped:       %d\n", len(problems))
	fmt.Fprintf(out, "  Storage:       %s\n", storageLabel(cfg.Database))
	fmt.Fprintf(out, "  Notifications: %s\n", notificationsLabel(cfg.Notifications))
	for _, p := range problems {
		fmt.Fprintf(out, "warning: %s\n", p)
	}

	return nil
}

func storageLabel(path string) string {
	if path == "" {
		return "memory"
	}
	return path
}

func notificationsLabel(n config.NotificationsConfig) string {
	if !n.Enabled {
		return "disabled"
	}
	switch {
	case n.Webhook.URL != "" && n.Mail.Host != "":
		return "webhook, mail"
	case n.Webhook.URL != "":
		return "webhook"
	default:
		return "mail"
	}
}
