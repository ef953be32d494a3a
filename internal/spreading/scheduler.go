package spreading

import (
	"context"

	"github.com/nvandessel/rumorsim/internal/constants"
	"github.com/nvandessel/rumorsim/internal/logging"
	"github.com/nvandessel/rumorsim/internal/models"
)

// pairSet records which unordered pairs interacted in the current step.
// Keys pack both indices into one word; population sizes fit in 32 bits.
type pairSet map[uint64]struct{}

func pairKey(a, b int) uint64 {
	if a > b {
		a, b = b, a
	}
	return uint64(a)<<32 | uint64(b)
}

func (p pairSet) has(a, b int) bool {
	_, ok := p[pairKey(a, b)]
	return ok
}

func (p pairSet) add(a, b int) {
	p[pairKey(a, b)] = struct{}{}
}

// step advances the simulation by one time step.
//
// Agents are visited in population order. Each draws partners uniformly
// from its own position to the end of the population until its capacity
// is used up or it has been rejected 2N times in a row, in which case it
// ends the step under-filled.
func (s *Simulation) step() {
	n := len(s.agents)
	budget := constants.RetryBudgetMultiplier * n
	paired := make(pairSet)
	victim := s.agents[s.victim]

	for pos, a := range s.agents {
		rejections := 0
		for !a.Exhausted() {
			if rejections >= budget {
				s.logger.Debug("agent starved",
					"step", s.stepsRun+1,
					"agent", a.ID,
					"used", a.Used,
					"capacity", a.Capacity)
				break
			}

			j := pos + s.rng.IntN(n-pos)
			b := s.agents[j]
			if j == pos || b.Exhausted() || (!s.config.AllowRepeatPairs && paired.has(pos, j)) {
				rejections++
				continue
			}
			rejections = 0

			out := s.engine.Interact(a, b)

			if victim.Role == models.RoleStifler {
				victim.Role = models.RoleSpreader
			}
			if out.VictimReached {
				s.victimWasHit = true
				s.victimAwareNow = true
			}
			if s.victimAwareNow {
				// numBelievers still holds the previous step's tally here.
				s.victimHearsFraction = float64(s.numBelievers) / float64(n)
				s.victimAwareNow = false
			}

			paired.add(pos, j)
			a.Used++
			b.Used++

			s.trace(a, b, out)
		}
	}

	s.stepsRun++
	s.tally()
	for _, a := range s.agents {
		a.Used = 0
	}

	believerFraction := float64(s.numBelievers) / float64(n)
	victim.Reputation = DecayReputation(victim.Reputation, believerFraction, s.config.SurpriseFactor)
	s.record()

	s.logger.Debug("step complete",
		"step", s.stepsRun,
		"believers", s.numBelievers,
		"ignorant", s.numIgnorant,
		"stiflers", s.numStiflers,
		"victim_reputation", victim.Reputation)
}

// tally recomputes the aggregates by scanning the whole population.
func (s *Simulation) tally() {
	s.numBelievers, s.numIgnorant, s.numStiflers = 0, 0, 0
	for _, a := range s.agents {
		if a.Believes {
			s.numBelievers++
		}
		switch a.Role {
		case models.RoleIgnorant:
			s.numIgnorant++
		case models.RoleStifler:
			s.numStiflers++
		}
	}
}

// trace forwards an accepted pairing to the observer, the trace logger
// and the operational logger at trace level.
func (s *Simulation) trace(a, b *models.Agent, out Outcome) {
	if s.tracer != nil && (out.Changed() || s.tracer.Verbose()) {
		s.tracer.Record("interaction", map[string]any{
			"step":           s.stepsRun + 1,
			"p1":             a.ID,
			"p2":             b.ID,
			"case":           string(out.Case),
			"adopted":        out.Adopted,
			"stifled":        out.Stifled,
			"victim_reached": out.VictimReached,
		})
	}
	if s.observer != nil {
		s.observer(s.stepsRun+1, *a, *b, out)
	}
	ctx := context.Background()
	if s.logger.Enabled(ctx, logging.LevelTrace) {
		s.logger.Log(ctx, logging.LevelTrace, "interaction",
			"step", s.stepsRun+1,
			"p1", a.ID,
			"p2", b.ID,
			"case", out.Case)
	}
}
