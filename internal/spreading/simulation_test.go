package spreading

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/nvandessel/rumorsim/internal/logging"
	"github.com/nvandessel/rumorsim/internal/models"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default is valid", func(c *Config) {}, false},
		{"population of two", func(c *Config) { c.PopulationSize = 2 }, false},
		{"population of one", func(c *Config) { c.PopulationSize = 1 }, true},
		{"negative surprise", func(c *Config) { c.SurpriseFactor = -0.1 }, true},
		{"zero surprise", func(c *Config) { c.SurpriseFactor = 0 }, false},
		{"zero confidence", func(c *Config) { c.ConfidenceFactor = 0 }, true},
		{"stifle above one", func(c *Config) { c.StifleProbability = 1.01 }, true},
		{"stifle below zero", func(c *Config) { c.StifleProbability = -0.01 }, true},
		{"stifle bounds", func(c *Config) { c.StifleProbability = 1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestNew_RejectsTinyPopulation(t *testing.T) {
	cfg := testConfig()
	cfg.PopulationSize = 1

	sim, err := New(cfg)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if sim != nil {
		t.Error("expected nil simulation on error")
	}
}

func TestNew_Population(t *testing.T) {
	cfg := testConfig()
	sim, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	agents := sim.Agents()
	if len(agents) != cfg.PopulationSize {
		t.Fatalf("population = %d, want %d", len(agents), cfg.PopulationSize)
	}
	for i, a := range agents {
		if a.ID != i {
			t.Errorf("agent %d has ID %d", i, a.ID)
		}
		if a.Reputation <= 0 || a.Reputation > 1 {
			t.Errorf("agent %d reputation %v outside (0, 1]", i, a.Reputation)
		}
		if a.Role != models.RoleIgnorant || a.Believes {
			t.Errorf("agent %d starts as %s/%v", i, a.Role, a.Believes)
		}
		if a.Capacity != 5 {
			t.Errorf("agent %d capacity = %d, want 5", i, a.Capacity)
		}
	}
	if sim.Bully() != -1 || sim.Victim() != -1 {
		t.Errorf("bully/victim assigned before Run: %d/%d", sim.Bully(), sim.Victim())
	}
}

func TestNew_RandomizedCapacityFloor(t *testing.T) {
	cfg := testConfig()
	cfg.PopulationSize = 20
	cfg.RandomizeInteractionCounts = true

	sim, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, a := range sim.Agents() {
		if a.Capacity < 1 {
			t.Errorf("agent %d capacity = %d, want >= 1", a.ID, a.Capacity)
		}
	}
}

func TestNew_RandomizedCapacityUsesNormalDraw(t *testing.T) {
	cfg := testConfig()
	cfg.PopulationSize = 1000
	cfg.RandomizeInteractionCounts = true

	// mean 10, sd 5: draws of -2, 0 and 1.2 sd give 1 (floored), 10 and 16.
	r := &scriptedRand{norms: []float64{-2, 0, 1.2}}
	sim, err := New(cfg, WithRand(r))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	agents := sim.Agents()
	want := []int{1, 10, 16}
	for i, w := range want {
		if agents[i].Capacity != w {
			t.Errorf("agent %d capacity = %d, want %d", i, agents[i].Capacity, w)
		}
	}
}

func TestBaseCapacity(t *testing.T) {
	tests := []struct {
		name       string
		population int
		randomized bool
		want       int
	}{
		{"fixed", 1000, false, 100},
		{"fixed rounds half up", 25, false, 3},
		{"fixed floor", 5, false, 1},
		{"randomized mean", 1000, true, 10},
		{"randomized floor", 60, true, 1},
		{"large fixed", 20_000, false, 2000},
		{"large randomized", 20_000, true, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BaseCapacity(tt.population, tt.randomized); got != tt.want {
				t.Errorf("BaseCapacity(%d, %v) = %d, want %d", tt.population, tt.randomized, got, tt.want)
			}
		})
	}
}

func TestNew_FixedCapacityMatchesBaseCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.PopulationSize = 37

	sim, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := BaseCapacity(cfg.PopulationSize, false)
	for _, a := range sim.Agents() {
		if a.Capacity != want {
			t.Errorf("agent %d capacity = %d, want %d", a.ID, a.Capacity, want)
		}
	}
}

func TestRun_InitialState(t *testing.T) {
	cfg := testConfig()
	sim := runSim(t, cfg, 0)

	bully, victim := sim.Bully(), sim.Victim()
	if bully < 0 || victim < 0 || bully == victim {
		t.Fatalf("bully=%d victim=%d, want distinct valid IDs", bully, victim)
	}

	for _, a := range sim.Agents() {
		switch a.ID {
		case bully:
			if a.Role != models.RoleSpreader || !a.Believes {
				t.Errorf("bully = %s/%v, want spreader/true", a.Role, a.Believes)
			}
			if a.Capacity != 5 {
				t.Errorf("bully capacity = %d, want 5", a.Capacity)
			}
		case victim:
			if a.Role != models.RoleIgnorant || a.Believes {
				t.Errorf("victim = %s/%v, want ignorant/false", a.Role, a.Believes)
			}
			if a.Capacity != 10 {
				t.Errorf("victim capacity = %d, want 10", a.Capacity)
			}
		default:
			if a.Role != models.RoleIgnorant || a.Believes {
				t.Errorf("agent %d = %s/%v, want ignorant/false", a.ID, a.Role, a.Believes)
			}
			if a.Capacity != 5 {
				t.Errorf("agent %d capacity = %d, want 5", a.ID, a.Capacity)
			}
		}
	}
}

func TestRun_ZeroSteps(t *testing.T) {
	cfg := testConfig()
	sim := runSim(t, cfg, 0)

	if got := sim.Believers(); !slices.Equal(got, []int{1}) {
		t.Errorf("Believers = %v, want [1]", got)
	}
	if got := sim.Ignorant(); !slices.Equal(got, []int{cfg.PopulationSize - 1}) {
		t.Errorf("Ignorant = %v, want [%d]", got, cfg.PopulationSize-1)
	}
	if got := sim.Stiflers(); !slices.Equal(got, []int{0}) {
		t.Errorf("Stiflers = %v, want [0]", got)
	}
	rep := sim.VictimReputation()
	if len(rep) != 1 || rep[0] != sim.Agents()[sim.Victim()].Reputation {
		t.Errorf("VictimReputation = %v, want the victim's starting reputation", rep)
	}
	if sim.VictimWasHit() || sim.VictimHearsFraction() != 0 {
		t.Error("victim cannot have been reached without a step")
	}
}

func TestRun_NegativeSteps(t *testing.T) {
	sim, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sim.Run(t.Context(), -1); !errors.Is(err, ErrInvalidSteps) {
		t.Errorf("expected ErrInvalidSteps, got %v", err)
	}
}

func TestRun_Twice(t *testing.T) {
	sim := runSim(t, testConfig(), 1)
	if err := sim.Run(t.Context(), 1); !errors.Is(err, ErrAlreadyRun) {
		t.Errorf("expected ErrAlreadyRun, got %v", err)
	}
}

func TestRun_CancelledBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	sim, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = sim.Run(ctx, 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if sim.StepsRun() != 0 {
		t.Errorf("StepsRun = %d, want 0", sim.StepsRun())
	}
	if len(sim.Believers()) != 1 {
		t.Errorf("expected only the initial entry, got %v", sim.Believers())
	}
}

func TestRun_SeriesLength(t *testing.T) {
	for _, steps := range []int{1, 7, 20} {
		sim := runSim(t, testConfig(), steps)
		for name, n := range map[string]int{
			"victim reputation": len(sim.VictimReputation()),
			"believers":         len(sim.Believers()),
			"ignorant":          len(sim.Ignorant()),
			"stiflers":          len(sim.Stiflers()),
		} {
			if n != steps+1 {
				t.Errorf("steps=%d: %s has %d entries, want %d", steps, name, n, steps+1)
			}
		}
	}
}

func TestRun_Invariants(t *testing.T) {
	for seed := uint64(1); seed <= 10; seed++ {
		cfg := testConfig()
		cfg.Seed = seed
		cfg.SurpriseFactor = 0.7
		cfg.StifleProbability = 0.3
		cfg.RandomizeInteractionCounts = seed%2 == 0

		var sim *Simulation
		sim, err := New(cfg, WithObserver(func(step int, a, b models.Agent, out Outcome) {
			for _, x := range []models.Agent{a, b} {
				if !x.Role.Valid() {
					t.Errorf("seed %d step %d: agent %d has invalid role %q", seed, step, x.ID, x.Role)
				}
				if x.Used > x.Capacity {
					t.Errorf("seed %d step %d: agent %d used %d of %d", seed, step, x.ID, x.Used, x.Capacity)
				}
				if x.ID == sim.Victim() && x.Role == models.RoleStifler {
					t.Errorf("seed %d step %d: victim observed as stifler", seed, step)
				}
			}
		}))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := sim.Run(t.Context(), 30); err != nil {
			t.Fatalf("Run: %v", err)
		}

		agents := sim.Agents()
		if agents[sim.Victim()].Role == models.RoleStifler {
			t.Errorf("seed %d: victim ended as stifler", seed)
		}
		for _, a := range agents {
			if a.Reputation <= 0 || a.Reputation > 1 {
				t.Errorf("seed %d: agent %d reputation %v outside (0, 1]", seed, a.ID, a.Reputation)
			}
			if a.Used != 0 {
				t.Errorf("seed %d: agent %d counter not reset: %d", seed, a.ID, a.Used)
			}
		}

		rep := sim.VictimReputation()
		for i := 1; i < len(rep); i++ {
			if rep[i] > rep[i-1] {
				t.Errorf("seed %d: victim reputation rose at step %d: %v -> %v", seed, i, rep[i-1], rep[i])
			}
		}

		ign, stif := sim.Ignorant(), sim.Stiflers()
		for i := range ign {
			if ign[i] < 0 || stif[i] < 0 || ign[i]+stif[i] > cfg.PopulationSize {
				t.Errorf("seed %d step %d: ignorant %d + stiflers %d exceed population", seed, i, ign[i], stif[i])
			}
		}
	}
}

func TestRun_VictimImmuneAfterEveryStep(t *testing.T) {
	cfg := testConfig()
	cfg.StifleProbability = 1
	cfg.SurpriseFactor = 0

	sim, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sim.Run(t.Context(), 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i := 0; i < 25; i++ {
		sim.step()
		if sim.agents[sim.victim].Role == models.RoleStifler {
			t.Fatalf("victim is a stifler after step %d", i+1)
		}
	}
}

func TestRun_Deterministic(t *testing.T) {
	cfg := testConfig()
	cfg.Seed = 7
	a := runSim(t, cfg, 15)
	b := runSim(t, cfg, 15)

	if !slices.Equal(a.Believers(), b.Believers()) {
		t.Errorf("believers differ: %v vs %v", a.Believers(), b.Believers())
	}
	if !slices.Equal(a.VictimReputation(), b.VictimReputation()) {
		t.Error("victim reputation differs for the same seed")
	}
	if a.Bully() != b.Bully() || a.Victim() != b.Victim() {
		t.Error("designations differ for the same seed")
	}
}

func TestRun_ThreeAgents(t *testing.T) {
	cfg := testConfig()
	cfg.PopulationSize = 3
	cfg.StifleProbability = 0

	used := make(map[int]int)
	paired := make(map[int]bool)
	sim, err := New(cfg, WithObserver(func(step int, a, b models.Agent, out Outcome) {
		used[a.ID]++
		used[b.ID]++
		paired[a.ID] = true
		paired[b.ID] = true
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sim.Run(t.Context(), 1); err != nil {
		t.Fatalf("Run: %v", err)
	}

	bully, victim := sim.Bully(), sim.Victim()
	if bully == victim {
		t.Fatal("bully and victim must differ")
	}

	agents := sim.Agents()
	for id, n := range used {
		if n > agents[id].Capacity {
			t.Errorf("agent %d used %d interactions, capacity %d", id, n, agents[id].Capacity)
		}
	}

	third := 3 - bully - victim
	if !paired[third] {
		if agents[third].Role != models.RoleIgnorant || agents[third].Believes {
			t.Errorf("unpaired agent %d changed to %s/%v", third, agents[third].Role, agents[third].Believes)
		}
	}
	if agents[victim].Role == models.RoleStifler {
		t.Error("victim became a stifler")
	}
}

func TestRun_TwoAgentsTerminates(t *testing.T) {
	cfg := testConfig()
	cfg.PopulationSize = 2

	pairings := 0
	sim, err := New(cfg, WithObserver(func(step int, a, b models.Agent, out Outcome) {
		pairings++
		if a.ID == b.ID {
			t.Errorf("step %d: agent %d paired with itself", step, a.ID)
		}
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sim.Run(t.Context(), 10); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Agent 0 may pair with agent 1 once per step; agent 1 can only draw itself.
	if pairings > 10 {
		t.Errorf("expected at most one pairing per step, got %d over 10 steps", pairings)
	}
	if sim.StepsRun() != 10 {
		t.Errorf("StepsRun = %d, want 10", sim.StepsRun())
	}
	if !sim.VictimWasHit() && pairings > 0 {
		// With two agents every pairing is bully meets victim.
		t.Error("expected the victim to be reached by the first pairing")
	}
}

func TestRun_PairsNotRepeatedWithinStep(t *testing.T) {
	cfg := testConfig()
	cfg.PopulationSize = 6
	cfg.Seed = 11

	seen := make(map[int]map[uint64]bool)
	sim, err := New(cfg, WithObserver(func(step int, a, b models.Agent, out Outcome) {
		if seen[step] == nil {
			seen[step] = make(map[uint64]bool)
		}
		key := pairKey(a.ID, b.ID)
		if seen[step][key] {
			t.Errorf("step %d: pair (%d, %d) interacted twice", step, a.ID, b.ID)
		}
		seen[step][key] = true
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sim.Run(t.Context(), 20); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRun_RepeatPairs(t *testing.T) {
	tests := []struct {
		name         string
		allowRepeats bool
		want         int
	}{
		{"deduplicated", false, 1},
		{"repeats allowed", true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.PopulationSize = 20 // capacity 2 each
			cfg.AllowRepeatPairs = tt.allowRepeats

			// Bully 0, victim 5; agent 0 then draws agent 1 twice. Once the
			// script runs dry every draw is the drawing agent itself, so the
			// rest of the population starves.
			r := &scriptedRand{ints: []int{0, 5, 1, 1}}

			pairs01 := 0
			sim, err := New(cfg, WithRand(r), WithObserver(func(step int, a, b models.Agent, out Outcome) {
				if pairKey(a.ID, b.ID) == pairKey(0, 1) {
					pairs01++
				}
			}))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if err := sim.Run(t.Context(), 1); err != nil {
				t.Fatalf("Run: %v", err)
			}

			if pairs01 != tt.want {
				t.Errorf("pair {0,1} interacted %d times, want %d", pairs01, tt.want)
			}
		})
	}
}

func TestRun_VictimHearsFractionUsesPreviousTally(t *testing.T) {
	cfg := testConfig()
	cfg.PopulationSize = 2

	sim := runSim(t, cfg, 1)
	if !sim.VictimWasHit() {
		t.Skip("victim was not reached with this seed")
	}
	// The only believer before the first step is the bully.
	if got := sim.VictimHearsFraction(); got != 0.5 {
		t.Errorf("VictimHearsFraction = %v, want 0.5", got)
	}
}

func TestRun_TraceLogger(t *testing.T) {
	dir := t.TempDir()
	tl := logging.NewTraceLogger(dir, "trace")
	if tl == nil {
		t.Fatal("expected trace logger")
	}

	cfg := testConfig()
	cfg.PopulationSize = 10
	runSim(t, cfg, 2, WithTraceLogger(tl))
	tl.Close()

	data, err := os.ReadFile(filepath.Join(dir, logging.TraceFileName))
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if !strings.Contains(string(data), `"event":"interaction"`) {
		t.Errorf("expected interaction events, got %q", string(data))
	}
}

func TestRecord(t *testing.T) {
	cfg := testConfig()
	cfg.Seed = 3
	sim := runSim(t, cfg, 4)

	rec := sim.Record()
	if rec.Steps != 4 {
		t.Errorf("Steps = %d, want 4", rec.Steps)
	}
	if rec.Parameters.Seed != 3 || rec.Parameters.PopulationSize != cfg.PopulationSize {
		t.Errorf("Parameters = %+v", rec.Parameters)
	}
	if rec.Series.Len() != 5 {
		t.Errorf("Series.Len() = %d, want 5", rec.Series.Len())
	}
	if rec.BullyID != sim.Bully() || rec.VictimID != sim.Victim() {
		t.Error("record designations do not match the simulation")
	}

	// The record must not alias simulation state.
	rec.Series.Believers[0] = -1
	if sim.Believers()[0] == -1 {
		t.Error("record aliases the believer series")
	}
}
