package simulation

import (
	"testing"

	"github.com/nvandessel/rumorsim/internal/models"
)

// AssertSeriesLength asserts that every run recorded exactly steps+1 entries
// in each of its four series.
func AssertSeriesLength(t *testing.T, result SimulationResult, steps int) {
	t.Helper()
	want := steps + 1
	for _, run := range result.Runs {
		s := run.Record.Series
		if len(s.VictimReputation) != want || len(s.Believers) != want ||
			len(s.Ignorant) != want || len(s.Stiflers) != want {
			t.Errorf("AssertSeriesLength: seed %d: lengths rep=%d bel=%d ign=%d sti=%d, want %d",
				run.Seed, len(s.VictimReputation), len(s.Believers), len(s.Ignorant), len(s.Stiflers), want)
		}
	}
}

// AssertConservation asserts that the tallies fit in the population at every
// step: ignorant plus stiflers never exceed N, and since ignorant agents never
// believe, neither do believers plus ignorant.
func AssertConservation(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, run := range result.Runs {
		n := run.Record.Parameters.PopulationSize
		s := run.Record.Series
		for i := range s.Len() {
			b, ig, st := s.Believers[i], s.Ignorant[i], s.Stiflers[i]
			if b < 0 || ig < 0 || st < 0 {
				t.Errorf("AssertConservation: seed %d step %d: negative tally (%d, %d, %d)", run.Seed, i, b, ig, st)
			}
			if ig+st > n {
				t.Errorf("AssertConservation: seed %d step %d: ignorant %d + stiflers %d > N %d", run.Seed, i, ig, st, n)
			}
			if b+ig > n {
				t.Errorf("AssertConservation: seed %d step %d: believers %d + ignorant %d > N %d", run.Seed, i, b, ig, n)
			}
		}
	}
}

// AssertIgnorantNonIncreasing asserts that no agent ever returns to the
// ignorant role.
func AssertIgnorantNonIncreasing(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, run := range result.Runs {
		ig := run.Record.Series.Ignorant
		for i := 1; i < len(ig); i++ {
			if ig[i] > ig[i-1] {
				t.Errorf("AssertIgnorantNonIncreasing: seed %d step %d: ignorant rose %d -> %d", run.Seed, i, ig[i-1], ig[i])
			}
		}
	}
}

// AssertReputationNonIncreasing asserts that the victim's reputation stays in
// (0, 1] and never rises.
func AssertReputationNonIncreasing(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, run := range result.Runs {
		rep := run.Record.Series.VictimReputation
		for i, r := range rep {
			if r <= 0 || r > 1 {
				t.Errorf("AssertReputationNonIncreasing: seed %d step %d: reputation %g outside (0, 1]", run.Seed, i, r)
			}
			if i > 0 && r > rep[i-1] {
				t.Errorf("AssertReputationNonIncreasing: seed %d step %d: reputation rose %g -> %g", run.Seed, i, rep[i-1], r)
			}
		}
	}
}

// AssertVictimNeverStifler asserts that the victim was never observed in the
// stifler role, neither after a pairing nor at the end of the run.
func AssertVictimNeverStifler(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, run := range result.Runs {
		victim := run.Record.VictimID
		for _, ev := range run.Events {
			for _, a := range []models.Agent{ev.A, ev.B} {
				if a.ID == victim && a.Role == models.RoleStifler {
					t.Errorf("AssertVictimNeverStifler: seed %d step %d: victim %d is a stifler", run.Seed, ev.Step, victim)
				}
			}
		}
		if victim >= 0 && victim < len(run.Agents) && run.Agents[victim].Role == models.RoleStifler {
			t.Errorf("AssertVictimNeverStifler: seed %d: victim %d ended as a stifler", run.Seed, victim)
		}
	}
}

// AssertCapacityRespected asserts that no agent took part in more pairings
// within a step than its capacity allows.
func AssertCapacityRespected(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, run := range result.Runs {
		for _, ev := range run.Events {
			for _, a := range []models.Agent{ev.A, ev.B} {
				if a.Used > a.Capacity {
					t.Errorf("AssertCapacityRespected: seed %d step %d: agent %d used %d of %d", run.Seed, ev.Step, a.ID, a.Used, a.Capacity)
				}
			}
		}
	}
}

// AssertNoRepeatedPairs asserts that no unordered pair met twice in a step.
func AssertNoRepeatedPairs(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, run := range result.Runs {
		seen := make(map[[3]int]bool)
		for _, ev := range run.Events {
			lo, hi := min(ev.A.ID, ev.B.ID), max(ev.A.ID, ev.B.ID)
			key := [3]int{ev.Step, lo, hi}
			if seen[key] {
				t.Errorf("AssertNoRepeatedPairs: seed %d step %d: pair (%d, %d) met twice", run.Seed, ev.Step, lo, hi)
			}
			seen[key] = true
		}
	}
}

// AssertVictimHearsFraction asserts that the recorded fraction is 0 for runs
// where the victim was never hit and lies in [0, 1] otherwise.
func AssertVictimHearsFraction(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, run := range result.Runs {
		f := run.Record.VictimHearsFraction
		if !run.Record.VictimWasHit && f != 0 {
			t.Errorf("AssertVictimHearsFraction: seed %d: victim never hit but fraction is %g", run.Seed, f)
		}
		if f < 0 || f > 1 {
			t.Errorf("AssertVictimHearsFraction: seed %d: fraction %g outside [0, 1]", run.Seed, f)
		}
	}
}

// FractionHit returns the share of runs in which the victim heard the rumor.
func FractionHit(result SimulationResult) float64 {
	if len(result.Runs) == 0 {
		return 0
	}
	hit := 0
	for _, run := range result.Runs {
		if run.Record.VictimWasHit {
			hit++
		}
	}
	return float64(hit) / float64(len(result.Runs))
}

// MeanFinalVictimReputation averages the victim's last reputation over runs.
func MeanFinalVictimReputation(result SimulationResult) float64 {
	if len(result.Runs) == 0 {
		return 0
	}
	var sum float64
	for _, run := range result.Runs {
		sum += run.Record.FinalVictimReputation()
	}
	return sum / float64(len(result.Runs))
}
