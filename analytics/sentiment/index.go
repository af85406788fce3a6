package sentiment

import (
	"math"

	"cryptolens/internal/mathx"
)

// placeholderBreadth stands in for the share of gaining assets until a
// breadth feed exists.
const placeholderBreadth = 55.0

const (
	ExtremeFear  = "extreme_fear"
	Fear         = "fear"
	Neutral      = "neutral"
	Greed        = "greed"
	ExtremeGreed = "extreme_greed"
)

type Classification struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

var classes = []struct {
	max float64
	Classification
}{
	{25, Classification{ExtremeFear, "Extreme Fear", "Extreme Fear - Market at potential bottom", "#8b0000"}},
	{45, Classification{Fear, "Fear", "Fear - Bearish sentiment prevailing", "#ef4444"}},
	{55, Classification{Neutral, "Neutral", "Neutral - Market uncertainty", "#f59e0b"}},
	{75, Classification{Greed, "Greed", "Greed - Bullish sentiment emerging", "#84cc16"}},
	{math.Inf(1), Classification{ExtremeGreed, "Extreme Greed", "Extreme Greed - Possible market top", "#22c55e"}},
}

// Classify bands a 0-100 index value.
func Classify(value float64) Classification {
	for _, c := range classes {
		if value <= c.max {
			return c.Classification
		}
	}
	return classes[len(classes)-1].Classification
}

type Components struct {
	Volatility  float64 `json:"volatility"`
	Momentum    float64 `json:"momentum"`
	MarketTrend float64 `json:"marketTrend"`
	Dominance   float64 `json:"dominance"`
	Volume      float64 `json:"volume"`
}

// VolatilityScore falls linearly from 100 at no move to 0 at a 5% move.
func VolatilityScore(change24h float64) float64 {
	return mathx.Clamp(100-math.Abs(change24h)/5*100, 0, 100)
}

// MomentumScore maps the mean of the 24h and 7d change from [-20, 20].
func MomentumScore(change24h, change7d float64) float64 {
	avg := (change24h + change7d) / 2
	return mathx.Clamp((avg+20)/40*100, 0, 100)
}

// TrendScore maps the percent of gaining assets from [30, 70].
func TrendScore(gainersPct float64) float64 {
	return mathx.Clamp((gainersPct-30)/40*100, 0, 100)
}

// DominanceScore maps BTC dominance from [25, 55].
func DominanceScore(dominancePct float64) float64 {
	return mathx.Clamp((dominancePct-25)/30*100, 0, 100)
}

// VolumeScore rates volume against its trailing average.
func VolumeScore(volume, trailing float64) float64 {
	if trailing <= 0 {
		return 20
	}
	ratio := volume / trailing
	switch {
	case ratio <= 0.5:
		return 20
	case ratio >= 2:
		return 100
	default:
		return 20 + (ratio-0.5)/1.5*80
	}
}

// Combine weights the components 25/35/25/10/5.
func Combine(c Components) float64 {
	return math.Round(c.Volatility*0.25 +
		c.Momentum*0.35 +
		c.MarketTrend*0.25 +
		c.Dominance*0.10 +
		c.Volume*0.05)
}
