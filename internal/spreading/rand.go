package spreading

import (
	"math/rand/v2"
	"time"
)

// Rand is the single pseudo-random stream a simulation draws from.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
	NormFloat64() float64
}

// NewRand returns a PCG-backed source for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// resolveSeed returns seed, or a time-based seed when seed is zero.
func resolveSeed(seed uint64) uint64 {
	if seed != 0 {
		return seed
	}
	return uint64(time.Now().UnixNano())
}
