package spreading

import (
	"testing"

	"github.com/nvandessel/rumorsim/internal/models"
)

// scriptedRand replays fixed draws. When a queue runs dry it returns values
// that never pass a probability check, and counts the overrun.
type scriptedRand struct {
	floats  []float64
	ints    []int
	norms   []float64
	drawn   int
	overrun int
}

func (r *scriptedRand) Float64() float64 {
	r.drawn++
	if len(r.floats) == 0 {
		r.overrun++
		return 0.999999
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptedRand) IntN(n int) int {
	if len(r.ints) == 0 {
		r.overrun++
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

func (r *scriptedRand) NormFloat64() float64 {
	if len(r.norms) == 0 {
		return 0
	}
	v := r.norms[0]
	r.norms = r.norms[1:]
	return v
}

// agent builds a test agent.
func agent(id int, rep float64, role models.Role, believes bool) *models.Agent {
	return &models.Agent{ID: id, Reputation: rep, Role: role, Believes: believes, Capacity: 1}
}

// testConfig returns a small valid configuration.
func testConfig() Config {
	return Config{
		PopulationSize:    50,
		SurpriseFactor:    1.0,
		ConfidenceFactor:  1.0,
		StifleProbability: 0.1,
		Seed:              42,
	}
}

// newEngine builds an engine over a scripted source.
func newEngine(t *testing.T, cfg Config, victimID int, floats ...float64) (*Engine, *scriptedRand) {
	t.Helper()
	r := &scriptedRand{floats: floats}
	return NewEngine(cfg, victimID, r), r
}

// runSim builds and runs a simulation, failing the test on error.
func runSim(t *testing.T, cfg Config, steps int, opts ...Option) *Simulation {
	t.Helper()
	sim, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sim.Run(t.Context(), steps); err != nil {
		t.Fatalf("Run(%d): %v", steps, err)
	}
	return sim
}
