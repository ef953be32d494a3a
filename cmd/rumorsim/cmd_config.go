package main

import (
	"fmt"
	"os"

	"github.com/nvandessel/rumorsim/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show rumorsim configuration",
		Long: `View rumorsim configuration settings.

Configuration is read from ~/.rumorsim/config.yaml (or --config), then
RUMORSIM_* environment variables.

Examples:
  rumorsim config list     # Show effective settings
  rumorsim config path     # Show the config file location
  rumorsim config init     # Write a config file with the defaults`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigPathCmd(),
		newConfigInitCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, cfg)
			}

			storePath, err := cfg.StorePath()
			if err != nil {
				return err
			}
			traceDir, err := cfg.TraceDir()
			if err != nil {
				return err
			}

			sim := cfg.Simulation
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Simulation Settings:")
			fmt.Fprintf(w, "  simulation.population_size:              %d\n", sim.PopulationSize)
			fmt.Fprintf(w, "  simulation.surprise_factor:              %g\n", sim.SurpriseFactor)
			fmt.Fprintf(w, "  simulation.confidence_factor:            %g\n", sim.ConfidenceFactor)
			fmt.Fprintf(w, "  simulation.randomize_interaction_counts: %v\n", sim.RandomizeInteractionCounts)
			fmt.Fprintf(w, "  simulation.stifle_probability:           %g\n", sim.StifleProbability)
			fmt.Fprintf(w, "  simulation.steps:                        %d\n", sim.Steps)
			fmt.Fprintf(w, "  simulation.seed:                         %s\n", seedOrDefault(sim.Seed))
			fmt.Fprintf(w, "  simulation.allow_repeat_pairs:           %v\n", sim.AllowRepeatPairs)
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Storage Settings:")
			fmt.Fprintf(w, "  storage.path:                            %s\n", storePath)
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Logging Settings:")
			fmt.Fprintf(w, "  logging.level:                           %s\n", valueOrDefault(cfg.Logging.Level, "info"))
			fmt.Fprintf(w, "  logging.trace_dir:                       %s\n", traceDir)
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(cmd, map[string]string{"path": path})
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")

			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
			}

			if err := config.Default().SaveToFile(path); err != nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(cmd, map[string]string{
					"status": "initialized",
					"path":   path,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing config file")
	return cmd
}

// configPath returns --config if set, else the default location.
func configPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	return config.DefaultPath()
}

func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func seedOrDefault(seed uint64) string {
	if seed == 0 {
		return "0 (time-based)"
	}
	return fmt.Sprintf("%d", seed)
}
