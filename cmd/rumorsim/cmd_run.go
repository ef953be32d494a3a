package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/nvandessel/rumorsim/internal/config"
	"github.com/nvandessel/rumorsim/internal/logging"
	"github.com/nvandessel/rumorsim/internal/models"
	"github.com/nvandessel/rumorsim/internal/spreading"
	"github.com/spf13/cobra"
)

// runOutput is the JSON shape of a finished run.
type runOutput struct {
	*models.RunRecord
	FinalBelievers        int     `json:"final_believers"`
	FinalVictimReputation float64 `json:"final_victim_reputation"`
	Saved                 bool    `json:"saved"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a rumor spreading simulation",
		Long: `Run one simulation and print its outcome.

Parameters default to the config file and RUMORSIM_* environment variables;
flags override both.

Examples:
  rumorsim run                                  # Defaults (1000 agents, 50 steps)
  rumorsim run --population 500 --sf 2 --steps 100
  rumorsim run --seed 42 --save                 # Reproducible, stored run
  rumorsim run --log-level debug --trace-dir .  # Write interactions.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			save, _ := cmd.Flags().GetBool("save")
			showSeries, _ := cmd.Flags().GetBool("series")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid parameters: %w", err)
			}

			logger := newLogger(cmd, cfg)

			opts := []spreading.Option{spreading.WithLogger(logger)}
			if traceDir, _ := cmd.Flags().GetString("trace-dir"); traceDir != "" {
				cfg.Logging.TraceDir = traceDir
			}
			dir, err := cfg.TraceDir()
			if err != nil {
				return err
			}
			tracer := logging.NewTraceLogger(dir, cfg.Logging.Level)
			defer tracer.Close()
			if tracer != nil {
				opts = append(opts, spreading.WithTraceLogger(tracer))
			}

			sim, err := spreading.New(cfg.Simulation.Spreading(), opts...)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			notifySignals(sigCh)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case <-sigCh:
					cancel()
				case <-ctx.Done():
				}
			}()

			if err := sim.Run(ctx, cfg.Simulation.Steps); err != nil {
				return fmt.Errorf("simulation failed: %w", err)
			}

			rec := sim.Record()
			if save {
				s, err := openStore(cfg)
				if err != nil {
					return err
				}
				defer s.Close()
				if _, err := s.SaveRun(ctx, rec); err != nil {
					return fmt.Errorf("failed to save run: %w", err)
				}
			}

			if jsonOut {
				out := runOutput{
					RunRecord:             rec,
					FinalBelievers:        rec.FinalBelievers(),
					FinalVictimReputation: rec.FinalVictimReputation(),
					Saved:                 save,
				}
				if !showSeries {
					trimmed := *rec
					trimmed.Series = models.Series{}
					out.RunRecord = &trimmed
				}
				return writeJSON(cmd, out)
			}

			printRun(cmd.OutOrStdout(), rec)
			if showSeries {
				printSeries(cmd.OutOrStdout(), rec.Series)
			}
			return nil
		},
	}

	cmd.Flags().Int("population", 0, "Number of agents (at least 2)")
	cmd.Flags().Float64("sf", 0, "Surprise factor (>= 0)")
	cmd.Flags().Float64("cf", 0, "Confidence factor (> 0)")
	cmd.Flags().Bool("randomize", false, "Draw per-agent interaction capacities from a normal law")
	cmd.Flags().Float64("stifle", 0, "Stifle probability in [0, 1]")
	cmd.Flags().Int("steps", 0, "Number of time steps")
	cmd.Flags().Uint64("seed", 0, "Random seed (0 picks a time-based seed)")
	cmd.Flags().Bool("repeat-pairs", false, "Allow a pair to interact more than once per step")
	cmd.Flags().Bool("save", false, "Save the run to the run store")
	cmd.Flags().Bool("series", false, "Print the per-step series")
	cmd.Flags().String("trace-dir", "", "Directory for interactions.jsonl at debug/trace level (default ~/.rumorsim)")

	return cmd
}

// applyRunFlags copies explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.RumorConfig) error {
	f := cmd.Flags()
	sim := &cfg.Simulation
	var err error

	if f.Changed("population") {
		if sim.PopulationSize, err = f.GetInt("population"); err != nil {
			return err
		}
	}
	if f.Changed("sf") {
		if sim.SurpriseFactor, err = f.GetFloat64("sf"); err != nil {
			return err
		}
	}
	if f.Changed("cf") {
		if sim.ConfidenceFactor, err = f.GetFloat64("cf"); err != nil {
			return err
		}
	}
	if f.Changed("randomize") {
		if sim.RandomizeInteractionCounts, err = f.GetBool("randomize"); err != nil {
			return err
		}
	}
	if f.Changed("stifle") {
		if sim.StifleProbability, err = f.GetFloat64("stifle"); err != nil {
			return err
		}
	}
	if f.Changed("steps") {
		if sim.Steps, err = f.GetInt("steps"); err != nil {
			return err
		}
	}
	if f.Changed("seed") {
		if sim.Seed, err = f.GetUint64("seed"); err != nil {
			return err
		}
	}
	if f.Changed("repeat-pairs") {
		if sim.AllowRepeatPairs, err = f.GetBool("repeat-pairs"); err != nil {
			return err
		}
	}
	return nil
}

// printRun writes the human-readable summary of a run.
func printRun(w io.Writer, rec *models.RunRecord) {
	p := rec.Parameters
	s := rec.Series
	last := s.Len() - 1

	fmt.Fprintf(w, "Run complete: %d steps over %d agents (seed %d)\n", rec.Steps, p.PopulationSize, p.Seed)
	if rec.ID != "" {
		fmt.Fprintf(w, "  id:                 %s\n", rec.ID)
	}
	fmt.Fprintf(w, "  parameters:         sf=%g cf=%g stifle=%g randomize=%v repeat-pairs=%v\n",
		p.SurpriseFactor, p.ConfidenceFactor, p.StifleProbability, p.RandomizeInteractionCounts, p.AllowRepeatPairs)
	fmt.Fprintf(w, "  bully / victim:     %d / %d\n", rec.BullyID, rec.VictimID)
	if last >= 0 {
		fmt.Fprintf(w, "  final believers:    %d\n", s.Believers[last])
		fmt.Fprintf(w, "  final ignorant:     %d\n", s.Ignorant[last])
		fmt.Fprintf(w, "  final stiflers:     %d\n", s.Stiflers[last])
		fmt.Fprintf(w, "  victim reputation:  %.6g -> %.6g\n", s.VictimReputation[0], s.VictimReputation[last])
	}
	if rec.VictimWasHit {
		fmt.Fprintf(w, "  victim heard it:    yes, with %.1f%% of agents believing\n", rec.VictimHearsFraction*100)
	} else {
		fmt.Fprintf(w, "  victim heard it:    no\n")
	}
}

// printSeries writes one line per recorded step.
func printSeries(w io.Writer, s models.Series) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%6s  %10s  %10s  %10s  %18s\n", "step", "believers", "ignorant", "stiflers", "victim_reputation")
	for i := range s.Len() {
		fmt.Fprintf(w, "%6d  %10d  %10d  %10d  %18.6g\n", i, s.Believers[i], s.Ignorant[i], s.Stiflers[i], s.VictimReputation[i])
	}
}
