// Package analysis turns a fare observation and its trailing price history
// into a quality score, a trend classification, and a buy decision.
// Everything here is pure computation — callers supply the history window.
package analysis

import (
	"fmt"
	"math"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// HistoryWindow is the trailing window the score is computed over.
	HistoryWindow = 30 * 24 * time.Hour

	neutralScore = 50

	avgFactorWeight   = 0.4 // weight of the above-average excess
	rangeFactorWeight = 0.3 // weight of the min-max range position

	trendSubWindow   = 3    // observations per trend sub-window
	trendThresholdPc = 5.0  // % change separating rising/falling from stable
	trendAdjustment  = 15.0 // score points added or removed by the trend

	dropThresholdPc = 15.0 // % drop considered significant

	buyScoreHigh     = 85 // score alone justifies buying
	buyScoreMedium   = 70 // score justifies buying when departure is close
	departureWindowD = 14 // days-until-departure considered "close"
)

// Trend classifies recent price movement.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// Urgency levels for buy decisions.
const (
	UrgencyHigh   = "high"
	UrgencyMedium = "medium"
)

// --------------------------------------------------------------------------
// Quality score
// --------------------------------------------------------------------------

// Stats summarizes the history window the score was computed from.
type Stats struct {
	CurrentPrice float64 `json:"current_price"`
	AvgPrice     float64 `json:"avg_price"`
	MinPrice     float64 `json:"min_price"`
	MaxPrice     float64 `json:"max_price"`
	StdDev       float64 `json:"std_dev"`
	Trend        Trend   `json:"trend"`
	DataPoints   int     `json:"data_points"`
}

// Result is the outcome of a quality score evaluation.
type Result struct {
	Score          int    `json:"score"`
	Recommendation string `json:"recommendation"`
	Analysis       string `json:"analysis"`
	Stats          Stats  `json:"stats"`
}

// QualityScore rates how favorable currentPrice is against the trailing
// history, most-recent-first. The score starts at 100 and is reduced by how
// far the price sits above the window average and by its position within the
// window's [min, max] range, then adjusted by the recent trend. An empty
// history yields the neutral score 50.
func QualityScore(history []float64, currentPrice float64) Result {
	if len(history) == 0 {
		return Result{
			Score:          neutralScore,
			Recommendation: "Not enough historical data",
			Analysis:       "First price reading",
			Stats: Stats{
				CurrentPrice: currentPrice,
				Trend:        TrendStable,
			},
		}
	}

	avg := mean(history)
	min, max := minMax(history)
	stdDev := stddev(history, avg)

	score := 100.0

	// Factor 1: excess over the window average. Only prices above average
	// count against the score.
	avgDiffPc := ((avg - currentPrice) / avg) * 100
	score -= math.Max(0, -avgDiffPc*avgFactorWeight)

	// Factor 2: normalized position within [min, max]. Midpoint when the
	// window is flat.
	rangePos := 50.0
	if max != min {
		rangePos = ((currentPrice - min) / (max - min)) * 100
	}
	score -= rangePos * rangeFactorWeight

	// Factor 3: recent trend. A rising market makes the current price less
	// attractive, a falling one more.
	trend := ClassifyTrend(history)
	switch trend {
	case TrendRising:
		score -= trendAdjustment
	case TrendFalling:
		score += trendAdjustment
	}

	score = math.Max(0, math.Min(100, score))
	rounded := int(math.Round(score))

	recommendation, explanation := recommend(rounded, avgDiffPc)

	return Result{
		Score:          rounded,
		Recommendation: recommendation,
		Analysis:       explanation,
		Stats: Stats{
			CurrentPrice: currentPrice,
			AvgPrice:     avg,
			MinPrice:     min,
			MaxPrice:     max,
			StdDev:       stdDev,
			Trend:        trend,
			DataPoints:   len(history),
		},
	}
}

func recommend(score int, avgDiffPc float64) (recommendation, analysis string) {
	switch {
	case score >= 90:
		return "Excellent moment to buy",
			fmt.Sprintf("Price %.1f%% below the 30-day average", math.Abs(avgDiffPc))
	case score >= 70:
		return "Good price, buy if the dates work",
			"Price in the low end of the range"
	case score >= 50:
		return "Average price, consider waiting",
			"Price close to the historical average"
	default:
		return "High price, wait for a drop",
			fmt.Sprintf("Price %.1f%% above the 30-day average", math.Abs(avgDiffPc))
	}
}

// ClassifyTrend compares the average of the 3 most recent observations to
// the average of the next 3 older ones. Fewer than 6 points is stable.
func ClassifyTrend(history []float64) Trend {
	if len(history) < 2*trendSubWindow {
		return TrendStable
	}

	recentAvg := mean(history[:trendSubWindow])
	olderAvg := mean(history[trendSubWindow : 2*trendSubWindow])

	changePc := ((recentAvg - olderAvg) / olderAvg) * 100
	switch {
	case changePc > trendThresholdPc:
		return TrendRising
	case changePc < -trendThresholdPc:
		return TrendFalling
	default:
		return TrendStable
	}
}

// --------------------------------------------------------------------------
// Price drop detection
// --------------------------------------------------------------------------

// Drop describes a significant fall from the previous observation.
type Drop struct {
	PreviousPrice  float64 `json:"previous_price"`
	CurrentPrice   float64 `json:"current_price"`
	Drop           float64 `json:"drop"`
	PercentageDrop float64 `json:"percentage_drop"`
}

// DetectDrop compares the current price against the single most recent prior
// observation. Returns nil unless the price fell by at least 15%.
func DetectDrop(previousPrice, currentPrice float64) *Drop {
	drop := previousPrice - currentPrice
	pct := (drop / previousPrice) * 100
	if pct < dropThresholdPc {
		return nil
	}
	return &Drop{
		PreviousPrice:  previousPrice,
		CurrentPrice:   currentPrice,
		Drop:           drop,
		PercentageDrop: pct,
	}
}

// --------------------------------------------------------------------------
// Buy decision
// --------------------------------------------------------------------------

// Policy is the destination-level purchase policy the decision composes with
// the quality score.
type Policy struct {
	MaxPrice      *float64
	DepartureDate time.Time
}

// Decision is a buy/no-buy recommendation.
type Decision struct {
	Buy                bool   `json:"buy"`
	Reason             string `json:"reason"`
	Urgency            string `json:"urgency,omitempty"`
	Score              int    `json:"score"`
	DaysUntilDeparture int    `json:"days_until_departure"`
}

// ShouldBuy composes the quality score with the destination policy.
// A price at or under the configured maximum always buys regardless of score.
func ShouldBuy(p Policy, score Result, currentPrice float64, now time.Time) Decision {
	days := int(p.DepartureDate.Sub(now).Hours() / 24)

	if p.MaxPrice != nil && currentPrice <= *p.MaxPrice {
		return Decision{
			Buy:                true,
			Reason:             "Target price reached",
			Urgency:            UrgencyHigh,
			Score:              score.Score,
			DaysUntilDeparture: days,
		}
	}

	if score.Score >= buyScoreHigh {
		return Decision{
			Buy:                true,
			Reason:             "Excellent historical price",
			Urgency:            UrgencyHigh,
			Score:              score.Score,
			DaysUntilDeparture: days,
		}
	}

	if days <= departureWindowD && score.Score >= buyScoreMedium {
		return Decision{
			Buy:                true,
			Reason:             "Good price and departure is close",
			Urgency:            UrgencyMedium,
			Score:              score.Score,
			DaysUntilDeparture: days,
		}
	}

	return Decision{
		Buy:                false,
		Reason:             score.Recommendation,
		Score:              score.Score,
		DaysUntilDeparture: days,
	}
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func minMax(xs []float64) (min, max float64) {
	min, max = xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	return min, max
}

func stddev(xs []float64, avg float64) float64 {
	variance := 0.0
	for _, x := range xs {
		variance += (x - avg) * (x - avg)
	}
	return math.Sqrt(variance / float64(len(xs)))
}
