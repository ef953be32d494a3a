package models

import (
	"fmt"
	"math"

	"github.com/nvandessel/rumorsim/internal/constants"
)

// Role is an agent's position in the rumor life cycle.
type Role string

const (
	RoleIgnorant Role = "ignorant" // Has not heard the rumor
	RoleSpreader Role = "spreader" // Actively relays the rumor
	RoleStifler  Role = "stifler"  // Knows the rumor but stopped relaying it
)

// Valid returns true if the role is a recognized value.
func (r Role) Valid() bool {
	switch r {
	case RoleIgnorant, RoleSpreader, RoleStifler:
		return true
	}
	return false
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// ParseRole converts a string to a Role, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid role: %q (valid: ignorant, spreader, stifler)", s)
	}
	return r, nil
}

// Agent is one member of the simulated population.
type Agent struct {
	// ID is the agent's position in the population. It never changes.
	ID int `json:"id" yaml:"id"`

	// Reputation is the agent's social credibility in (0, 1].
	// Only the victim's reputation changes after creation.
	Reputation float64 `json:"reputation" yaml:"reputation"`

	Role     Role `json:"role" yaml:"role"`
	Believes bool `json:"believes" yaml:"believes"`

	// Capacity is the number of interactions the agent may take part in per step.
	Capacity int `json:"capacity" yaml:"capacity"`

	// Used counts interactions consumed in the current step.
	Used int `json:"used" yaml:"used"`
}

// NewAgent creates an ignorant, non-believing agent.
func NewAgent(id int, reputation float64, capacity int) *Agent {
	return &Agent{
		ID:         id,
		Reputation: reputation,
		Role:       RoleIgnorant,
		Capacity:   capacity,
	}
}

// Exhausted reports whether the agent has no interactions left this step.
func (a *Agent) Exhausted() bool {
	return a.Used >= a.Capacity
}

// Float64Source yields uniform draws in [0, 1).
type Float64Source interface {
	Float64() float64
}

// SampleReputation draws a reputation from the bounded Pareto-like law
// (u+1)^-1.16 with u ~ U(0, 3). The result lies in (0.2, 1].
func SampleReputation(r Float64Source) float64 {
	x := r.Float64()*constants.ReputationUniformSpan + constants.ReputationShift
	return math.Pow(x, -constants.ReputationExponent)
}
