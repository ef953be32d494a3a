package simulation

import (
	"github.com/nvandessel/rumorsim/internal/models"
	"github.com/nvandessel/rumorsim/internal/spreading"
	"github.com/nvandessel/rumorsim/internal/store"
)

// Scenario defines a complete simulation experiment.
type Scenario struct {
	Name   string
	Config spreading.Config
	Steps  int

	// Seeds lists the seeds to run, one run each. Empty means a single run
	// with Config.Seed.
	Seeds []uint64

	// KeepEvents records every accepted pairing. Leave it off for large
	// populations when only the series are asserted.
	KeepEvents bool
}

// Event is one accepted pairing as the observer saw it.
type Event struct {
	Step    int
	A, B    models.Agent
	Outcome spreading.Outcome
}

// RunResult captures one seeded run.
type RunResult struct {
	Seed uint64

	// Record is the run as read back from the store.
	Record *models.RunRecord

	// Agents is the final population.
	Agents []models.Agent

	Events []Event
}

// SimulationResult captures all runs and the store they were saved to.
type SimulationResult struct {
	Name  string
	Runs  []RunResult
	Store *store.SQLiteRunStore
}

// SeedRange returns n consecutive seeds starting at from.
func SeedRange(from uint64, n int) []uint64 {
	seeds := make([]uint64, n)
	for i := range seeds {
		seeds[i] = from + uint64(i)
	}
	return seeds
}
