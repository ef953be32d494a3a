package spreading

import "math"

// DecayReputation returns rep * e^(-believerFraction * sf), the victim's
// reputation after a step in which believerFraction of the population
// believed the rumor. The result never increases and never reaches zero.
func DecayReputation(rep, believerFraction, sf float64) float64 {
	decayed := rep * math.Exp(-believerFraction*sf)
	if decayed < math.SmallestNonzeroFloat64 {
		return math.SmallestNonzeroFloat64
	}
	return decayed
}
