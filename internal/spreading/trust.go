package spreading

import (
	"math"

	"github.com/nvandessel/rumorsim/internal/models"
)

// Trust returns how much listener trusts speaker:
// min(1, (speaker.Reputation / listener.Reputation)^cf).
// The result is used directly as a probability factor, hence the clamp.
func Trust(speaker, listener *models.Agent, cf float64) float64 {
	return min(math.Pow(speaker.Reputation/listener.Reputation, cf), 1)
}

// BelieveFactor weighs an acceptance or switch roll by the belief being
// transmitted: 2^-sf for "the rumor is true", 1 - 2^-sf otherwise.
// At sf = 1 both factors equal 0.5; at sf = 0 only believers spread.
func BelieveFactor(believes bool, sf float64) float64 {
	p := math.Exp2(-sf)
	if believes {
		return p
	}
	return 1 - p
}
