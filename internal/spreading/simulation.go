package spreading

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/nvandessel/rumorsim/internal/constants"
	"github.com/nvandessel/rumorsim/internal/logging"
	"github.com/nvandessel/rumorsim/internal/models"
)

// Simulation owns the population and all run state. It is not safe for
// concurrent use; a run is a single synchronous sequence of steps.
type Simulation struct {
	config   Config
	seed     uint64
	rng      Rand
	logger   *slog.Logger
	tracer   *logging.TraceLogger
	observer Observer

	agents []*models.Agent

	// Weak references into agents; -1 until Run assigns them.
	bully  int
	victim int

	engine *Engine

	numBelievers int
	numIgnorant  int
	numStiflers  int

	series models.Series

	victimAwareNow      bool
	victimWasHit        bool
	victimHearsFraction float64

	stepsRun int
	ran      bool
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithRand replaces the seeded PCG source.
func WithRand(r Rand) Option {
	return func(s *Simulation) { s.rng = r }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulation) { s.logger = l }
}

// WithTraceLogger records interaction outcomes as JSONL.
func WithTraceLogger(t *logging.TraceLogger) Option {
	return func(s *Simulation) { s.tracer = t }
}

// Observer is called after every accepted pairing with copies of both
// agents as they stand after the interaction, before counters are reset.
type Observer func(step int, a, b models.Agent, out Outcome)

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(s *Simulation) { s.observer = o }
}

// New validates cfg and builds the population. Every agent starts
// ignorant and non-believing; bully and victim are chosen by Run.
func New(cfg Config, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Simulation{
		config: cfg,
		seed:   resolveSeed(cfg.Seed),
		bully:  -1,
		victim: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = NewRand(s.seed)
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}

	s.agents = make([]*models.Agent, cfg.PopulationSize)
	for i := range s.agents {
		capacity := s.sampleCapacity()
		s.agents[i] = models.NewAgent(i, models.SampleReputation(s.rng), capacity)
	}

	s.numBelievers = 1
	s.numIgnorant = cfg.PopulationSize - 1

	return s, nil
}

// sampleCapacity returns one agent's daily interaction budget.
func (s *Simulation) sampleCapacity() int {
	if !s.config.RandomizeInteractionCounts {
		return BaseCapacity(s.config.PopulationSize, false)
	}
	n := float64(s.config.PopulationSize)
	c := s.rng.NormFloat64()*n*constants.RandomCapacityStdDevFraction + n*constants.RandomCapacityMeanFraction
	return max(constants.MinCapacity, int(math.Round(c)))
}

// BaseCapacity is the per-agent interaction budget for a population of the
// given size: the fixed capacity, or the mean of the normal draw when counts
// are randomized. The victim's doubling is not included.
func BaseCapacity(populationSize int, randomized bool) int {
	fraction := constants.FixedCapacityFraction
	if randomized {
		fraction = constants.RandomCapacityMeanFraction
	}
	return max(constants.MinCapacity, int(math.Round(float64(populationSize)*fraction)))
}

// Run picks the bully and the victim, records the initial state and then
// advances exactly steps steps. The context is checked between steps only.
func (s *Simulation) Run(ctx context.Context, steps int) error {
	if steps < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidSteps, steps)
	}
	if s.ran {
		return ErrAlreadyRun
	}
	s.ran = true

	s.designate()
	s.record()

	s.logger.Info("simulation started",
		"population", len(s.agents),
		"steps", steps,
		"seed", s.seed,
		"bully", s.bully,
		"victim", s.victim)

	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("simulation stopped after %d of %d steps: %w", i, steps, err)
		}
		s.step()
	}

	s.logger.Info("simulation finished",
		"steps", s.stepsRun,
		"believers", s.numBelievers,
		"ignorant", s.numIgnorant,
		"stiflers", s.numStiflers,
		"victim_reputation", s.agents[s.victim].Reputation,
		"victim_was_hit", s.victimWasHit)

	return nil
}

// designate picks a uniformly random bully and a distinct victim, and
// doubles the victim's capacity.
func (s *Simulation) designate() {
	n := len(s.agents)

	s.bully = s.rng.IntN(n)
	bully := s.agents[s.bully]
	bully.Role = models.RoleSpreader
	bully.Believes = true

	s.victim = s.bully
	for s.victim == s.bully {
		s.victim = s.rng.IntN(n)
	}
	s.agents[s.victim].Capacity *= constants.VictimCapacityMultiplier

	s.engine = NewEngine(s.config, s.victim, s.rng)
}

// record appends the current aggregates to every series.
func (s *Simulation) record() {
	s.series.VictimReputation = append(s.series.VictimReputation, s.agents[s.victim].Reputation)
	s.series.Believers = append(s.series.Believers, s.numBelievers)
	s.series.Ignorant = append(s.series.Ignorant, s.numIgnorant)
	s.series.Stiflers = append(s.series.Stiflers, s.numStiflers)
}

// Seed returns the seed actually used for the run.
func (s *Simulation) Seed() uint64 { return s.seed }

// Config returns the configuration the simulation was built with.
func (s *Simulation) Config() Config { return s.config }

// StepsRun returns the number of completed steps.
func (s *Simulation) StepsRun() int { return s.stepsRun }

// Bully returns the bully's ID, or -1 before Run.
func (s *Simulation) Bully() int { return s.bully }

// Victim returns the victim's ID, or -1 before Run.
func (s *Simulation) Victim() int { return s.victim }

// Agents returns a snapshot of the population in population order.
func (s *Simulation) Agents() []models.Agent {
	out := make([]models.Agent, len(s.agents))
	for i, a := range s.agents {
		out[i] = *a
	}
	return out
}

// VictimReputation returns the victim's reputation history.
func (s *Simulation) VictimReputation() []float64 { return slices.Clone(s.series.VictimReputation) }

// Believers returns the believer-count history.
func (s *Simulation) Believers() []int { return slices.Clone(s.series.Believers) }

// Ignorant returns the ignorant-count history.
func (s *Simulation) Ignorant() []int { return slices.Clone(s.series.Ignorant) }

// Stiflers returns the stifler-count history.
func (s *Simulation) Stiflers() []int { return slices.Clone(s.series.Stiflers) }

// VictimWasHit reports whether the rumor ever reached the victim.
func (s *Simulation) VictimWasHit() bool { return s.victimWasHit }

// VictimHearsFraction returns the believer fraction at the moment the
// victim was informed, or 0 if that never happened.
func (s *Simulation) VictimHearsFraction() float64 { return s.victimHearsFraction }

// Record returns the run's outcome as a RunRecord without an ID.
func (s *Simulation) Record() *models.RunRecord {
	return &models.RunRecord{
		Steps: s.stepsRun,
		Parameters: models.RunParameters{
			PopulationSize:             s.config.PopulationSize,
			SurpriseFactor:             s.config.SurpriseFactor,
			ConfidenceFactor:           s.config.ConfidenceFactor,
			RandomizeInteractionCounts: s.config.RandomizeInteractionCounts,
			StifleProbability:          s.config.StifleProbability,
			AllowRepeatPairs:           s.config.AllowRepeatPairs,
			Seed:                       s.seed,
		},
		Series: models.Series{
			VictimReputation: s.VictimReputation(),
			Believers:        s.Believers(),
			Ignorant:         s.Ignorant(),
			Stiflers:         s.Stiflers(),
		},
		BullyID:             s.bully,
		VictimID:            s.victim,
		VictimWasHit:        s.victimWasHit,
		VictimHearsFraction: s.victimHearsFraction,
	}
}
