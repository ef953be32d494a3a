package spreading

import "github.com/nvandessel/rumorsim/internal/models"

// neverSwitch is the switch probability forced for the victim. Uniform
// draws are never below it, so the victim's belief cannot be flipped by
// a disagreement.
const neverSwitch = -99.0

// Case names the branch of the transition table an interaction took.
type Case string

const (
	CaseInert         Case = "inert"          // Nothing can happen (ignorant pair, stifler pair, stifler-ignorant)
	CaseSpread        Case = "spread"         // A spreader told an ignorant
	CaseVictimReached Case = "victim_reached" // A spreader told the victim
	CaseAgreement     Case = "agreement"      // Two informed agents with the same belief
	CaseDisagreement  Case = "disagreement"   // Two informed agents with different beliefs
)

// Outcome describes the effect of one interaction.
type Outcome struct {
	Case Case

	// Adopted lists agents that took on another agent's belief, either by
	// accepting the rumor or by switching sides.
	Adopted []int

	// Stifled lists agents that became stiflers.
	Stifled []int

	// VictimReached is set when the rumor first reached the victim.
	VictimReached bool
}

// Changed reports whether the interaction altered any agent.
func (o Outcome) Changed() bool {
	return o.VictimReached || len(o.Adopted) > 0 || len(o.Stifled) > 0
}

// Engine applies the pairwise transition rules. It touches only the two
// agents it is given; awareness bookkeeping is reported through Outcome.
type Engine struct {
	surprise   float64
	confidence float64
	stifle     float64
	victimID   int
	rng        Rand
}

// NewEngine creates a transition engine for the given parameters. victimID
// identifies the agent that never stifles and never switches belief.
func NewEngine(cfg Config, victimID int, rng Rand) *Engine {
	return &Engine{
		surprise:   cfg.SurpriseFactor,
		confidence: cfg.ConfidenceFactor,
		stifle:     cfg.StifleProbability,
		victimID:   victimID,
		rng:        rng,
	}
}

// Interact applies one interaction between p1 and p2.
func (e *Engine) Interact(p1, p2 *models.Agent) Outcome {
	switch {
	case p1.Role == models.RoleIgnorant && p2.Role == models.RoleIgnorant,
		p1.Role == models.RoleStifler && p2.Role == models.RoleStifler:
		return Outcome{Case: CaseInert}
	case p1.Role == models.RoleSpreader && p2.Role == models.RoleIgnorant:
		return e.spread(p1, p2)
	case p1.Role == models.RoleIgnorant && p2.Role == models.RoleSpreader:
		return e.spread(p2, p1)
	case p1.Role != models.RoleIgnorant && p2.Role != models.RoleIgnorant:
		return e.confront(p1, p2)
	}
	// A stifler does not pass the rumor on to an ignorant.
	return Outcome{Case: CaseInert}
}

// spread handles a spreader meeting an ignorant listener.
func (e *Engine) spread(speaker, listener *models.Agent) Outcome {
	if listener.ID == e.victimID {
		// The victim becomes a relay without adopting the rumor about themself.
		listener.Role = models.RoleSpreader
		return Outcome{Case: CaseVictimReached, VictimReached: true}
	}

	out := Outcome{Case: CaseSpread}
	accept := Trust(speaker, listener, e.confidence) * BelieveFactor(speaker.Believes, e.surprise)
	if e.rng.Float64() <= accept {
		listener.Believes = speaker.Believes
		listener.Role = models.RoleSpreader
		out.Adopted = append(out.Adopted, listener.ID)
	}
	return out
}

// confront handles two agents that both know the rumor.
func (e *Engine) confront(p1, p2 *models.Agent) Outcome {
	if p1.Believes == p2.Believes {
		out := Outcome{Case: CaseAgreement}
		for _, a := range [2]*models.Agent{p1, p2} {
			if a.ID == e.victimID {
				continue
			}
			if e.rng.Float64() <= e.stifle {
				a.Role = models.RoleStifler
				out.Stifled = append(out.Stifled, a.ID)
			}
		}
		return out
	}

	out := Outcome{Case: CaseDisagreement}
	b1, b2 := p1.Believes, p2.Believes
	if p1.Role == models.RoleSpreader {
		e.persuade(p1, p2, b2, &out)
	}
	if p2.Role == models.RoleSpreader {
		e.persuade(p2, p1, b1, &out)
	}
	return out
}

// persuade gives spreader a the chance to adopt belief, held by b before
// the interaction started. Failing that, a may stop spreading.
func (e *Engine) persuade(a, b *models.Agent, belief bool, out *Outcome) {
	switchProb := Trust(a, b, e.confidence) * BelieveFactor(belief, e.surprise)
	if a.ID == e.victimID {
		switchProb = neverSwitch
	}

	if e.rng.Float64() <= switchProb {
		a.Believes = belief
		out.Adopted = append(out.Adopted, a.ID)
		return
	}

	if a.ID == e.victimID {
		return
	}
	if e.rng.Float64() <= e.stifle {
		a.Role = models.RoleStifler
		out.Stifled = append(out.Stifled, a.ID)
	}
}
