package liquidity

import (
	"fmt"
	"math"

	"cryptolens/internal/mathx"
)

// Component is one 0-100 sub-score with its band and explanation.
type Component struct {
	Score   float64 `json:"score"`
	Rating  string  `json:"rating"`
	Details string  `json:"details"`
}

func newComponent(score float64, details string) Component {
	score = math.Round(mathx.Clamp(score, 0, 100))
	return Component{Score: score, Rating: band(score), Details: details}
}

func band(score float64) string {
	switch {
	case score >= 80:
		return "excellent"
	case score >= 60:
		return "good"
	case score >= 40:
		return "fair"
	default:
		return "poor"
	}
}

func SpreadScore(spreadPct float64) Component {
	var score float64
	switch {
	case spreadPct > 1:
		score = 0
	case spreadPct > 0.5:
		score = math.Max(0, 100-(spreadPct-0.5)*200)
	case spreadPct > 0.1:
		score = math.Max(20, 100-spreadPct*800)
	default:
		score = 100
	}

	var details string
	switch {
	case spreadPct < 0.05:
		details = "Extremely tight spread"
	case spreadPct < 0.1:
		details = "Very tight spread"
	case spreadPct < 0.5:
		details = "Good spread"
	case spreadPct < 1:
		details = "Wide spread"
	default:
		details = "Very wide spread"
	}
	return newComponent(score, fmt.Sprintf("%s (%.4f%%)", details, spreadPct))
}

// DepthScore scores the average of the bid and ask volume within 1% of mid.
func DepthScore(bidDepth1, askDepth1 float64) Component {
	avg := (bidDepth1 + askDepth1) / 2
	var score float64
	var details string
	switch {
	case avg > 1_000_000:
		score, details = 100, "Excellent depth"
	case avg > 100_000:
		score, details = 80+(avg-100_000)/900_000*20, "Good depth"
	case avg > 10_000:
		score, details = 40+(avg-10_000)/90_000*40, "Fair depth"
	case avg > 1_000:
		score, details = 20+(avg-1_000)/9_000*20, "Shallow depth"
	default:
		score, details = math.Min(20, avg/1_000*20), "Shallow depth"
	}
	return newComponent(score, fmt.Sprintf("%s (avg %.2f within 1%%)", details, avg))
}

func VolumeScore(totalVolume float64) Component {
	var score float64
	var details string
	switch {
	case totalVolume > 100_000:
		score, details = 100, "Excellent order book volume"
	case totalVolume > 10_000:
		score, details = 70+(totalVolume-10_000)/90_000*30, "Good order book volume"
	case totalVolume > 1_000:
		score, details = 40+(totalVolume-1_000)/9_000*30, "Fair order book volume"
	case totalVolume > 100:
		score, details = 20+(totalVolume-100)/900*20, "Low order book volume"
	default:
		score, details = totalVolume/100*20, "Low order book volume"
	}
	return newComponent(score, fmt.Sprintf("%s (%.2f)", details, totalVolume))
}

// StabilityScore rewards a bid/ask ratio close to 1.
func StabilityScore(ratio float64) Component {
	dev := math.Abs(ratio - 1)
	var details string
	switch {
	case dev < 0.1:
		details = "Balanced bid/ask"
	case dev < 0.3:
		details = "Good balance"
	case dev < 0.6:
		details = "Slight imbalance"
	default:
		details = "Large imbalance"
	}
	return newComponent(100-dev*50, fmt.Sprintf("%s (ratio %.2f)", details, ratio))
}

// ImbalanceScore is 100-|imbalance|, clamped to 0 for out-of-range input.
func ImbalanceScore(imbalancePct float64) Component {
	abs := math.Abs(imbalancePct)
	side := "Buy"
	if imbalancePct < 0 {
		side = "Sell"
	}
	var details string
	switch {
	case abs < 10:
		details = "Well balanced"
	case abs < 20:
		details = "Slightly biased"
	case abs < 40:
		details = "Moderate " + side + " pressure"
	default:
		details = "Strong " + side + " pressure"
	}
	return newComponent(100-abs, fmt.Sprintf("%s (%.2f%%)", details, imbalancePct))
}

// VolatilityScore maps the average absolute daily change (percent) to a
// score that reaches 0 at 20%.
func VolatilityScore(avgDailyChange float64) Component {
	v := math.Abs(avgDailyChange)
	var score float64
	switch {
	case v < 1:
		score = 100
	case v < 2:
		score = 80 + (2-v)*20
	case v < 5:
		score = 50 + (5-v)*10
	case v < 10:
		score = 20 + (10-v)*3
	default:
		score = math.Max(0, 20-(v-10)*2)
	}

	var details string
	switch {
	case v < 1:
		details = "Very stable"
	case v < 2:
		details = "Stable"
	case v < 5:
		details = "Moderate volatility"
	default:
		details = "High volatility"
	}
	return newComponent(score, fmt.Sprintf("%s (%.2f%% daily)", details, v))
}

// computeOverall weights the six components 25/25/20/10/10/10.
func computeOverall(c Components) float64 {
	return math.Round(c.Spread.Score*0.25 +
		c.Depth.Score*0.25 +
		c.Volume.Score*0.20 +
		c.Stability.Score*0.10 +
		c.Imbalance.Score*0.10 +
		c.Volatility.Score*0.10)
}
