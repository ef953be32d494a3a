// Package spreading implements the rumor spreading engine: a closed
// population of ignorant, spreader and stifler agents whose pairwise
// interactions are shaped by reputation-weighted trust, plus the step
// scheduler and the driver that records per-step time series.
package spreading

import (
	"errors"
	"fmt"

	"github.com/nvandessel/rumorsim/internal/constants"
)

var (
	// ErrInvalidConfig is returned when a Config cannot drive a run.
	ErrInvalidConfig = errors.New("invalid simulation config")

	// ErrInvalidSteps is returned by Run for a negative step count.
	ErrInvalidSteps = errors.New("steps must be non-negative")

	// ErrAlreadyRun is returned when Run is called twice on one Simulation.
	ErrAlreadyRun = errors.New("simulation has already run")
)

// Config holds the parameters of one simulation.
type Config struct {
	// PopulationSize is the number of agents (N). Must be at least 2 so the
	// bully and the victim can be distinct. Default: 1000.
	PopulationSize int

	// SurpriseFactor (SF) controls how strongly an agent's belief state
	// weighs on acceptance, and how fast the victim's reputation decays.
	// Must be >= 0. Default: 1.0.
	SurpriseFactor float64

	// ConfidenceFactor (CF) is the reputation sensitivity exponent in Trust.
	// Values above 1 sharpen reputation gaps, values below 1 flatten them.
	// Must be > 0. Default: 1.0.
	ConfidenceFactor float64

	// RandomizeInteractionCounts draws each agent's daily capacity from
	// Normal(0.01N, 0.005N) instead of using the fixed 0.1N.
	RandomizeInteractionCounts bool

	// StifleProbability is the chance a stifle roll turns a spreader into
	// a stifler. Range: 0.0 to 1.0. Default: 0.1.
	StifleProbability float64

	// AllowRepeatPairs lets the same unordered pair interact more than once
	// in a step. Off by default.
	AllowRepeatPairs bool

	// Seed seeds the shared PCG source. Zero picks a time-based seed.
	Seed uint64
}

// DefaultConfig returns the default simulation configuration.
func DefaultConfig() Config {
	return Config{
		PopulationSize:    constants.DefaultPopulationSize,
		SurpriseFactor:    constants.DefaultSurpriseFactor,
		ConfidenceFactor:  constants.DefaultConfidenceFactor,
		StifleProbability: constants.DefaultStifleProbability,
	}
}

// Validate checks that the configuration can drive a run.
func (c Config) Validate() error {
	if c.PopulationSize < constants.MinPopulationSize {
		return fmt.Errorf("%w: population_size must be at least %d, got %d",
			ErrInvalidConfig, constants.MinPopulationSize, c.PopulationSize)
	}
	if c.SurpriseFactor < 0 {
		return fmt.Errorf("%w: surprise_factor must be non-negative, got %f", ErrInvalidConfig, c.SurpriseFactor)
	}
	if c.ConfidenceFactor <= 0 {
		return fmt.Errorf("%w: confidence_factor must be positive, got %f", ErrInvalidConfig, c.ConfidenceFactor)
	}
	if c.StifleProbability < 0 || c.StifleProbability > 1 {
		return fmt.Errorf("%w: stifle_probability must be between 0 and 1, got %f", ErrInvalidConfig, c.StifleProbability)
	}
	return nil
}
