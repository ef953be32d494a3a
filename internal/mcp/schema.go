package mcp

import (
	"github.com/nvandessel/rumorsim/internal/models"
	"github.com/nvandessel/rumorsim/internal/store"
)

// SimulateInput defines the input for the rumor_simulate tool. Unset
// parameters fall back to the server's configured defaults.
type SimulateInput struct {
	PopulationSize             *int     `json:"population_size,omitempty" jsonschema:"Number of agents, at least 2"`
	SurpriseFactor             *float64 `json:"surprise_factor,omitempty" jsonschema:"Surprise factor SF, at least 0; weighs belief state and drives victim reputation decay"`
	ConfidenceFactor           *float64 `json:"confidence_factor,omitempty" jsonschema:"Confidence factor CF, greater than 0; reputation sensitivity exponent"`
	RandomizeInteractionCounts *bool    `json:"randomize_interaction_counts,omitempty" jsonschema:"Draw per-agent interaction capacities from a normal law"`
	StifleProbability          *float64 `json:"stifle_probability,omitempty" jsonschema:"Probability in [0,1] that a stifle roll succeeds"`
	Steps                      *int     `json:"steps,omitempty" jsonschema:"Number of time steps to run"`
	Seed                       *uint64  `json:"seed,omitempty" jsonschema:"Random seed; 0 picks a time-based seed"`
	AllowRepeatPairs           *bool    `json:"allow_repeat_pairs,omitempty" jsonschema:"Allow the same pair to interact more than once per step"`
	Save                       bool     `json:"save,omitempty" jsonschema:"Persist the run to the run store"`
	IncludeSeries              bool     `json:"include_series,omitempty" jsonschema:"Include the full per-step series in the result"`
}

// SimulateOutput defines the output for the rumor_simulate tool.
type SimulateOutput struct {
	RunID                 string         `json:"run_id,omitempty" jsonschema:"ID of the saved run, empty unless save was set"`
	Seed                  uint64         `json:"seed" jsonschema:"Seed the run used"`
	Steps                 int            `json:"steps" jsonschema:"Steps executed"`
	PopulationSize        int            `json:"population_size" jsonschema:"Number of agents"`
	BullyID               int            `json:"bully_id" jsonschema:"Agent that originated the rumor"`
	VictimID              int            `json:"victim_id" jsonschema:"Agent the rumor is about"`
	FinalBelievers        int            `json:"final_believers" jsonschema:"Believers after the last step"`
	FinalIgnorant         int            `json:"final_ignorant" jsonschema:"Ignorant agents after the last step"`
	FinalStiflers         int            `json:"final_stiflers" jsonschema:"Stiflers after the last step"`
	FinalVictimReputation float64        `json:"final_victim_reputation" jsonschema:"Victim reputation after the last step"`
	VictimWasHit          bool           `json:"victim_was_hit" jsonschema:"Whether the rumor ever reached the victim"`
	VictimHearsFraction   float64        `json:"victim_hears_fraction" jsonschema:"Believer fraction when the victim first heard the rumor, 0 if never"`
	Series                *models.Series `json:"series,omitempty" jsonschema:"Per-step series, present when include_series was set"`
	Message               string         `json:"message" jsonschema:"Human-readable result message"`
}

// RunsInput defines the input for the rumor_runs tool.
type RunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of runs to return, newest first; 0 for all"`
}

// RunsOutput defines the output for the rumor_runs tool.
type RunsOutput struct {
	Runs  []store.RunSummary `json:"runs" jsonschema:"Stored runs, newest first"`
	Count int                `json:"count" jsonschema:"Number of runs returned"`
}

// RunInput defines the input for the rumor_run tool.
type RunInput struct {
	ID string `json:"id" jsonschema:"ID of the stored run"`
}

// RunOutput defines the output for the rumor_run tool.
type RunOutput struct {
	Run *models.RunRecord `json:"run" jsonschema:"The stored run with its full series"`
}

// ExportInput defines the input for the rumor_export tool.
type ExportInput struct {
	OutputPath string `json:"output_path,omitempty" jsonschema:"Archive file inside the archive directory; generated when empty"`
}

// ExportOutput defines the output for the rumor_export tool.
type ExportOutput struct {
	Path      string `json:"path" jsonschema:"Archive file written"`
	RunCount  int    `json:"run_count" jsonschema:"Number of runs archived"`
	Version   int    `json:"version" jsonschema:"Archive format version"`
	SizeBytes int64  `json:"size_bytes" jsonschema:"Archive size in bytes"`
	Message   string `json:"message" jsonschema:"Human-readable result message"`
}
