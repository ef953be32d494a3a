package simulation_test

import (
	"testing"

	"github.com/nvandessel/rumorsim/internal/models"
	"github.com/nvandessel/rumorsim/internal/simulation"
)

// TestThreeAgents runs a single step over three agents with stifling off.
func TestThreeAgents(t *testing.T) {
	r := simulation.NewRunner(t)

	cfg := baseConfig(3)
	cfg.StifleProbability = 0

	result := r.Run(simulation.Scenario{
		Name:       "three-agents",
		Config:     cfg,
		Steps:      1,
		Seeds:      simulation.SeedRange(1, 25),
		KeepEvents: true,
	})

	simulation.AssertSeriesLength(t, result, 1)
	simulation.AssertCapacityRespected(t, result)
	simulation.AssertVictimNeverStifler(t, result)

	for _, run := range result.Runs {
		bully, victim := run.Record.BullyID, run.Record.VictimID
		if bully == victim {
			t.Errorf("seed %d: bully and victim are both %d", run.Seed, bully)
		}

		third := 3 - bully - victim
		paired := false
		for _, ev := range run.Events {
			if ev.A.ID == third || ev.B.ID == third {
				paired = true
			}
		}
		final := run.Agents[third]
		if !paired && (final.Role != models.RoleIgnorant || final.Believes) {
			t.Errorf("seed %d: agent %d changed to %s/%v without being paired", run.Seed, third, final.Role, final.Believes)
		}
		if run.Record.Series.Stiflers[1] != 0 {
			t.Errorf("seed %d: %d stiflers with stifle probability 0", run.Seed, run.Record.Series.Stiflers[1])
		}
	}
}

// TestTwoAgents checks that the smallest legal population terminates,
// never self-pairs, and eventually informs the victim.
func TestTwoAgents(t *testing.T) {
	r := simulation.NewRunner(t)
	const steps = 20

	result := r.Run(simulation.Scenario{
		Name:       "two-agents",
		Config:     baseConfig(2),
		Steps:      steps,
		Seeds:      simulation.SeedRange(1, 10),
		KeepEvents: true,
	})

	simulation.AssertSeriesLength(t, result, steps)
	simulation.AssertCapacityRespected(t, result)
	simulation.AssertNoRepeatedPairs(t, result)

	for _, run := range result.Runs {
		for _, ev := range run.Events {
			if ev.A.ID == ev.B.ID {
				t.Errorf("seed %d step %d: agent %d paired with itself", run.Seed, ev.Step, ev.A.ID)
			}
		}
		if !run.Record.VictimWasHit {
			t.Errorf("seed %d: victim never heard the rumor in %d steps", run.Seed, steps)
		}
		// The bully is the only believer when the victim is first told.
		if run.Record.VictimWasHit && run.Record.VictimHearsFraction != 0.5 {
			t.Errorf("seed %d: VictimHearsFraction = %g, want 0.5", run.Seed, run.Record.VictimHearsFraction)
		}
	}
}

func TestDegenerateRun(t *testing.T) {
	r := simulation.NewRunner(t)

	result := r.Run(simulation.Scenario{
		Name:   "zero-steps",
		Config: baseConfig(20),
		Steps:  0,
	})

	simulation.AssertSeriesLength(t, result, 0)
	run := result.Runs[0]
	s := run.Record.Series
	if s.Believers[0] != 1 || s.Ignorant[0] != 19 || s.Stiflers[0] != 0 {
		t.Errorf("initial tallies = (%d, %d, %d), want (1, 19, 0)", s.Believers[0], s.Ignorant[0], s.Stiflers[0])
	}
	if run.Record.VictimWasHit {
		t.Error("victim cannot be hit without a step")
	}
}
