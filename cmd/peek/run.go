package main

import (
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/peek"
	"github.com/jpalmerr/peek/config"
)

// newLogger creates a JSON logger on w for CLI use.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// runCmd starts probing.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Probe the configured checks",
	Long: `Probe the configured checks and report state changes.

Run will:
  - Load configuration from the specified YAML file
  - Reconcile the checks into the store, deleting ones no longer configured
  - Probe each check whenever its interval has elapsed
  - Print one line per probe to stdout and send notifications

It runs until interrupted (Ctrl+C) or SIGTERM. With --once it performs a
single pass over the checks that are due and exits, which suits cron.

Example:
  peek run -c peek.yaml
  peek run -c /etc/peek/peek.yaml --once`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	runCmd.Flags().Bool("once", false, "run a single pass and exit (overrides run_once)")
	runCmd.Flags().BoolP("verbose", "v", false, "log every evaluation")
	_ = runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := newLogger(cmd.ErrOrStderr(), verbose)

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("once") {
		cfg.RunOnce, _ = cmd.Flags().GetBool("once")
	}

	for _, p := range cfg.Problems() {
		logger.Warn("skipping check", "index", p.Index, "url", p.URL, "error", p.Err.Error())
	}

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build checks: %w", err)
	}
	opts = append(opts,
		peek.WithLogger(logger),
		peek.WithConsole(cmd.OutOrStdout()),
	)

	m, err := peek.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	logger.Info("config loaded",
		"checks", len(m.Checks()),
		"skipped", len(cfg.Problems()),
		"database", cfg.Database,
		"run_once", cfg.RunOnce,
	)

	// cancel on SIGINT/SIGTERM; an in-flight pass still completes
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.Run(ctx); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
