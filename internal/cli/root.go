// Package cli implements the bedbug command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"bedbug-detector/internal/app"
	"bedbug-detector/internal/config"
)

// NewRootCmd builds the bedbug command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bedbug",
		Short:         "Bedbug (Cimex) image classifier",
		Long:          "bedbug classifies photos as Cimex or not, serves the prediction API and inspects saved predictions.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides DATABASE_PATH env var)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newPredictCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newStatsCmd())
	return rootCmd
}

// Execute runs the command line.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig reads the environment and applies the global flags.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Load()
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DatabasePath = p
	}
	return cfg
}

// openOffline builds the application without the live feed.
func openOffline(cmd *cobra.Command) (*app.App, error) {
	a, err := app.NewOffline(loadConfig(cmd))
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return a, nil
}
