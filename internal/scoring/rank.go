package scoring

import (
	"sort"

	"parcel-locator/internal/domain/locate"
)

const (
	// MinGlobalScore is exclusive: a candidate must score above it.
	MinGlobalScore = 30
	MaxResults     = 10
)

// Rank drops weak candidates and returns the best ones, highest global score
// first. Ties keep their input order.
func Rank(candidates []locate.RankedCandidate) []locate.RankedCandidate {
	out := make([]locate.RankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.MatchingScore.Global > MinGlobalScore {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MatchingScore.Global > out[j].MatchingScore.Global
	})
	if len(out) > MaxResults {
		out = out[:MaxResults]
	}
	return out
}
