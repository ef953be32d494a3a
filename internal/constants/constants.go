// Package constants provides named constants used throughout the rumorsim codebase.
// This centralizes the model's magic numbers for better maintainability and documentation.
package constants

// Reputation sampling constants
const (
	// ReputationUniformSpan is the width of the uniform draw u ~ U(0, span)
	// that feeds the bounded Pareto-like reputation law.
	ReputationUniformSpan = 3.0

	// ReputationShift is added to the uniform draw before exponentiation,
	// so the base lies in [1, 1+span) and reputation stays in (0, 1].
	ReputationShift = 1.0

	// ReputationExponent is the tail exponent of the reputation law:
	// reputation = (u + shift)^(-exponent).
	ReputationExponent = 1.16
)

// Interaction capacity constants
const (
	// FixedCapacityFraction sets every agent's daily capacity to this fraction
	// of the population when capacities are not randomized.
	FixedCapacityFraction = 0.1

	// RandomCapacityMeanFraction is the mean of the normal capacity draw,
	// as a fraction of the population.
	RandomCapacityMeanFraction = 0.01

	// RandomCapacityStdDevFraction is the standard deviation of the normal
	// capacity draw, as a fraction of the population.
	RandomCapacityStdDevFraction = 0.005

	// MinCapacity is the floor applied to every sampled capacity.
	MinCapacity = 1

	// VictimCapacityMultiplier scales the victim's capacity at run start.
	VictimCapacityMultiplier = 2
)

// Scheduling constants
const (
	// RetryBudgetMultiplier bounds consecutive partner rejections per agent
	// and step to RetryBudgetMultiplier * populationSize.
	RetryBudgetMultiplier = 2

	// MinPopulationSize is the smallest population that can hold a distinct
	// bully and victim.
	MinPopulationSize = 2
)

// Defaults for configuration values
const (
	// DefaultPopulationSize is the population used when none is configured.
	DefaultPopulationSize = 1000

	// DefaultSurpriseFactor is the default SF.
	DefaultSurpriseFactor = 1.0

	// DefaultConfidenceFactor is the default CF.
	DefaultConfidenceFactor = 1.0

	// DefaultStifleProbability is the default probability of becoming a stifler
	// on a stifle roll.
	DefaultStifleProbability = 0.1

	// DefaultSteps is the default run length for the CLI and MCP drivers.
	DefaultSteps = 50
)
