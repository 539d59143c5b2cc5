package analysis

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// historyGen generates a price history of positive fares, most recent
// first. Empty slices are possible and exercise the neutral-score path.
func historyGen() gopter.Gen {
	return gen.SliceOf(gen.Float64Range(50.0, 5000.0))
}

func TestProperty_QualityScoreWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("score stays within [0, 100]", prop.ForAll(
		func(history []float64, current float64) bool {
			r := QualityScore(history, current)
			return r.Score >= 0 && r.Score <= 100
		},
		historyGen(),
		gen.Float64Range(50.0, 5000.0),
	))

	properties.Property("recommendation matches the score band", prop.ForAll(
		func(history []float64, current float64) bool {
			r := QualityScore(history, current)
			if len(history) == 0 {
				return r.Recommendation == "Not enough historical data"
			}
			want, _ := recommend(r.Score, 0)
			return r.Recommendation == want
		},
		historyGen(),
		gen.Float64Range(50.0, 5000.0),
	))

	properties.TestingRun(t)
}

func TestProperty_DetectDropThreshold(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("fires exactly when the fall is at least 15%", prop.ForAll(
		func(previous, current float64) bool {
			d := DetectDrop(previous, current)
			pct := (previous - current) / previous * 100
			if pct >= 15.0 {
				return d != nil && d.PercentageDrop == pct
			}
			return d == nil
		},
		gen.Float64Range(100.0, 5000.0),
		gen.Float64Range(100.0, 5000.0),
	))

	properties.TestingRun(t)
}
