package scoring

import (
	"fmt"
	"strings"

	"parcel-locator/internal/domain/locate"
)

// Thresholds above which a sub-score is cited as strong evidence.
const (
	StrongPool        = 80
	StrongVegetation  = 70
	StrongSurface     = 80
	StrongOrientation = 80
	StrongContext     = 70
)

// Explain renders a score as one sentence. The output depends only on its
// arguments.
func Explain(address string, s locate.MatchingScore) string {
	d := s.Details
	var clauses []string

	switch {
	case s.Global == 0 && d == (locate.ScoreDetails{}):
		return fmt.Sprintf("%s is ruled out: the photo shows a pool that the aerial view does not.", address)
	case d.PoolSimilarity == 0:
		clauses = append(clauses, "no pool where the photo shows one")
	case d.PoolSimilarity > StrongPool:
		clauses = append(clauses, "the pool seen from above matches the photo")
	}
	if d.VegetationMatch > StrongVegetation {
		clauses = append(clauses, "the vegetation density is consistent")
	}
	if d.SurfaceMatch > StrongSurface {
		clauses = append(clauses, "the parcel surface matches the listing")
	}
	if d.OrientationMatch > StrongOrientation {
		clauses = append(clauses, "the facade faces the same direction")
	}
	if d.ContextMatch > StrongContext {
		clauses = append(clauses, "recent sales nearby fit the listing")
	}

	if len(clauses) == 0 {
		return fmt.Sprintf("%s shows some similarity with the photo (score %d/100), but the evidence is not conclusive.", address, s.Global)
	}
	return fmt.Sprintf("%s matches with a score of %d/100: %s.", address, s.Global, joinClauses(clauses))
}

func joinClauses(c []string) string {
	if len(c) == 1 {
		return c[0]
	}
	return strings.Join(c[:len(c)-1], ", ") + " and " + c[len(c)-1]
}

// ExplainGPS describes a match taken from the position embedded in the photo.
func ExplainGPS(address string, distanceMeters float64, global int) string {
	return fmt.Sprintf("%s matches with a score of %d/100: the photo was taken %.0f m away according to its GPS metadata.", address, global, distanceMeters)
}
