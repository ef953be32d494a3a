package models

import "time"

// RunParameters captures the knobs a run was started with.
type RunParameters struct {
	PopulationSize             int     `json:"population_size" yaml:"population_size"`
	SurpriseFactor             float64 `json:"surprise_factor" yaml:"surprise_factor"`
	ConfidenceFactor           float64 `json:"confidence_factor" yaml:"confidence_factor"`
	RandomizeInteractionCounts bool    `json:"randomize_interaction_counts" yaml:"randomize_interaction_counts"`
	StifleProbability          float64 `json:"stifle_probability" yaml:"stifle_probability"`
	AllowRepeatPairs           bool    `json:"allow_repeat_pairs" yaml:"allow_repeat_pairs"`
	Seed                       uint64  `json:"seed" yaml:"seed"`
}

// Series holds the per-step time series of a run. Every slice has
// steps+1 entries; index 0 is the state before the first step.
type Series struct {
	VictimReputation []float64 `json:"victim_reputation"`
	Believers        []int     `json:"believers"`
	Ignorant         []int     `json:"ignorant"`
	Stiflers         []int     `json:"stiflers"`
}

// Len returns the number of recorded entries.
func (s Series) Len() int {
	return len(s.Believers)
}

// RunRecord is the persisted outcome of one simulation run.
type RunRecord struct {
	ID         string        `json:"id"`
	CreatedAt  time.Time     `json:"created_at"`
	Steps      int           `json:"steps"`
	Parameters RunParameters `json:"parameters"`
	Series     Series        `json:"series"`

	BullyID  int `json:"bully_id"`
	VictimID int `json:"victim_id"`

	// VictimWasHit is true once the rumor reached the victim at any point.
	VictimWasHit bool `json:"victim_was_hit"`

	// VictimHearsFraction is the believer fraction when the victim was first
	// informed, or 0 if the victim never heard the rumor.
	VictimHearsFraction float64 `json:"victim_hears_fraction"`
}

// FinalBelievers returns the believer count after the last step.
func (r *RunRecord) FinalBelievers() int {
	if n := len(r.Series.Believers); n > 0 {
		return r.Series.Believers[n-1]
	}
	return 0
}

// FinalVictimReputation returns the victim's reputation after the last step.
func (r *RunRecord) FinalVictimReputation() float64 {
	if n := len(r.Series.VictimReputation); n > 0 {
		return r.Series.VictimReputation[n-1]
	}
	return 0
}
