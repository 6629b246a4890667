package sourcing

import (
	"fmt"
	"math/rand"
)

// RandomSource yields the pseudo-random values that drive region, page
// and shuffle selection for a round. In ranked modes every participant
// must be able to recompute the exact same sequence before one of them
// persists the result, so the deterministic implementation derives each
// value from a shared seed string plus a per-use label.
type RandomSource interface {
	Float(label string) float64
}

// DeterministicSeed derives values from a seed string with a 31-bit
// string hash, so any process holding "{matchID}_{round}" agrees on the
// sampled region, page, cluster center and shuffle order.
type DeterministicSeed struct {
	Seed string
}

// MatchSeed builds the canonical per-round seed for a shared match.
func MatchSeed(matchID string, round int) *DeterministicSeed {
	return &DeterministicSeed{Seed: fmt.Sprintf("%s_%d", matchID, round)}
}

func (s *DeterministicSeed) Float(label string) float64 {
	var hash int32
	for _, c := range s.Seed + label {
		hash = hash*31 + int32(c)
	}
	if hash < 0 {
		// math.MinInt32 negates to itself; treat it as the max
		if hash == -2147483648 {
			return 1.0
		}
		hash = -hash
	}
	return float64(hash) / 2147483647.0
}

// RandomSeed is the single-player source: plain randomness, labels
// ignored.
type RandomSeed struct{}

func (RandomSeed) Float(string) float64 { return rand.Float64() }
