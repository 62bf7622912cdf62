// Package commands holds the nix-installer CLI: planning, installing,
// uninstalling, describing plans, and browsing install history.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	settingsFile  string
	logLevel      string
	logFormat     string
	traceExporter string
	traceEndpoint string
	metricsListen string
	policyDir     string
	historyDB     string
	assumeYes     bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nix-installer",
		Short: "Plan, apply and revert multi-user Nix installations",
		Long: `nix-installer sets up a multi-user Nix installation and can cleanly
remove it again.

Every install is planned first: the planner probes the host read-only and
produces an ordered list of actions, which you can inspect before anything
is changed. The executed plan is written to a receipt, and uninstall
replays the receipt in reverse.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&settingsFile, "config", "c", "", "settings file (.cue, .yaml or .json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&traceExporter, "trace-exporter", "none", "span exporter (none, stdout, otlp)")
	rootCmd.PersistentFlags().StringVar(&traceEndpoint, "trace-endpoint", "", "OTLP gRPC endpoint when --trace-exporter=otlp")
	rootCmd.PersistentFlags().StringVar(&metricsListen, "metrics-listen", "", "expose Prometheus metrics on this address while running")
	rootCmd.PersistentFlags().StringVar(&policyDir, "policy-dir", "", "directory of additional policy rules (.rego, .json)")
	rootCmd.PersistentFlags().StringVar(&historyDB, "history-db", "", "path of the install history database (empty for the default)")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation prompts")

	// Add subcommands
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newUninstallCommand())
	rootCmd.AddCommand(newDescribeCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
