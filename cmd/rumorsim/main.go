package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/nvandessel/rumorsim/internal/config"
	"github.com/nvandessel/rumorsim/internal/logging"
	"github.com/nvandessel/rumorsim/internal/store"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rumorsim",
		Short: "Rumor spreading simulator",
		Long: `rumorsim simulates a rumor spreading through a closed population.

Agents are ignorant, spreaders or stiflers. A bully starts the rumor about a
victim; whether a listener accepts it depends on the relative reputation of
the two agents, and the victim's reputation decays as belief spreads.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.rumorsim/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newRunsCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}

// loadConfig loads the configuration named by --config (or the default
// location), applies --log-level and validates the result.
func loadConfig(cmd *cobra.Command) (*config.RumorConfig, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadWithPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the operational logger, writing to the command's stderr.
func newLogger(cmd *cobra.Command, cfg *config.RumorConfig) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// openStore opens the SQLite run store configured in cfg.
func openStore(cfg *config.RumorConfig) (*store.SQLiteRunStore, error) {
	path, err := cfg.StorePath()
	if err != nil {
		return nil, err
	}
	s, err := store.NewSQLiteRunStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return s, nil
}

// writeJSON encodes v to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
