package simulation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nvandessel/rumorsim/internal/models"
	"github.com/nvandessel/rumorsim/internal/spreading"
	"github.com/nvandessel/rumorsim/internal/store"
)

// Runner orchestrates multi-run simulation experiments against a real
// run store and simulation driver.
type Runner struct {
	t     *testing.T
	store *store.SQLiteRunStore
}

// NewRunner creates a simulation runner with an isolated SQLite store
// and sandboxed HOME directory.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	s, err := store.NewSQLiteRunStore(filepath.Join(tmpDir, "runs.db"))
	if err != nil {
		t.Fatalf("NewRunner: failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &Runner{t: t, store: s}
}

// Store returns the runner's store.
func (r *Runner) Store() *store.SQLiteRunStore {
	return r.store
}

// Run executes the scenario and returns the collected results.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()

	seeds := scenario.Seeds
	if len(seeds) == 0 {
		seeds = []uint64{scenario.Config.Seed}
	}

	runs := make([]RunResult, 0, len(seeds))
	for _, seed := range seeds {
		runs = append(runs, r.runOne(scenario, seed))
	}

	return SimulationResult{
		Name:  scenario.Name,
		Runs:  runs,
		Store: r.store,
	}
}

// runOne executes a single seeded run, saves it and reads it back.
func (r *Runner) runOne(scenario Scenario, seed uint64) RunResult {
	r.t.Helper()
	ctx := context.Background()

	cfg := scenario.Config
	cfg.Seed = seed

	var events []Event
	var opts []spreading.Option
	if scenario.KeepEvents {
		opts = append(opts, spreading.WithObserver(func(step int, a, b models.Agent, out spreading.Outcome) {
			events = append(events, Event{Step: step, A: a, B: b, Outcome: out})
		}))
	}

	sim, err := spreading.New(cfg, opts...)
	if err != nil {
		r.t.Fatalf("%s seed %d: New: %v", scenario.Name, seed, err)
	}
	if err := sim.Run(ctx, scenario.Steps); err != nil {
		r.t.Fatalf("%s seed %d: Run: %v", scenario.Name, seed, err)
	}

	id, err := r.store.SaveRun(ctx, sim.Record())
	if err != nil {
		r.t.Fatalf("%s seed %d: SaveRun: %v", scenario.Name, seed, err)
	}
	rec, err := r.store.GetRun(ctx, id)
	if err != nil {
		r.t.Fatalf("%s seed %d: GetRun(%s): %v", scenario.Name, seed, id, err)
	}

	return RunResult{
		Seed:   seed,
		Record: rec,
		Agents: sim.Agents(),
		Events: events,
	}
}
