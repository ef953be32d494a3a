// Package store defines the RunStore interface for persisting simulation
// runs, with SQLite and in-memory implementations.
package store

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/nvandessel/rumorsim/internal/models"
)

// ErrRunNotFound is returned when a run ID does not exist in the store.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is the list view of a stored run, without its series.
type RunSummary struct {
	ID                    string    `json:"id"`
	CreatedAt             time.Time `json:"created_at"`
	Steps                 int       `json:"steps"`
	PopulationSize        int       `json:"population_size"`
	Seed                  uint64    `json:"seed"`
	FinalBelievers        int       `json:"final_believers"`
	FinalVictimReputation float64   `json:"final_victim_reputation"`
	VictimWasHit          bool      `json:"victim_was_hit"`
}

// RunStore defines the interface for storing and querying simulation runs.
type RunStore interface {
	// SaveRun stores a run and returns its ID. An empty ID is replaced by a
	// fresh UUID and a zero CreatedAt by the current time.
	SaveRun(ctx context.Context, run *models.RunRecord) (string, error)

	// GetRun returns the full run, or an error wrapping ErrRunNotFound.
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)

	// ListRuns returns summaries newest first. limit <= 0 means no limit.
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)

	// DeleteRun removes a run and its series, or returns an error wrapping
	// ErrRunNotFound.
	DeleteRun(ctx context.Context, id string) error

	Close() error
}

// Summarize builds the list view of a run.
func Summarize(run *models.RunRecord) RunSummary {
	return RunSummary{
		ID:                    run.ID,
		CreatedAt:             run.CreatedAt,
		Steps:                 run.Steps,
		PopulationSize:        run.Parameters.PopulationSize,
		Seed:                  run.Parameters.Seed,
		FinalBelievers:        run.FinalBelievers(),
		FinalVictimReputation: run.FinalVictimReputation(),
		VictimWasHit:          run.VictimWasHit,
	}
}

// cloneRun deep-copies a run so callers cannot alias stored series.
func cloneRun(run *models.RunRecord) *models.RunRecord {
	c := *run
	c.Series = models.Series{
		VictimReputation: slices.Clone(run.Series.VictimReputation),
		Believers:        slices.Clone(run.Series.Believers),
		Ignorant:         slices.Clone(run.Series.Ignorant),
		Stiflers:         slices.Clone(run.Series.Stiflers),
	}
	return &c
}

// validateSeries checks that all four series have the same length.
func validateSeries(s models.Series) error {
	n := len(s.Believers)
	if len(s.VictimReputation) != n || len(s.Ignorant) != n || len(s.Stiflers) != n {
		return errors.New("run series have mismatched lengths")
	}
	return nil
}
