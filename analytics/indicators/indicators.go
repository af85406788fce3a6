// Package indicators computes technical indicators over close prices.
// Every function is pure; short inputs yield documented neutral values
// rather than errors, except CalculateAll.
package indicators

import "cryptolens/internal/mathx"

// SMA is the mean of the last period prices, or the latest price when
// fewer are available.
func SMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if period <= 0 || len(prices) < period {
		return prices[len(prices)-1]
	}
	return mathx.Mean(prices[len(prices)-period:])
}

// EMA is seeded with the SMA of the first period prices.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if period <= 0 || len(prices) < period {
		return prices[len(prices)-1]
	}
	k := 2 / float64(period+1)
	ema := mathx.Mean(prices[:period])
	for _, p := range prices[period:] {
		ema = p*k + ema*(1-k)
	}
	return ema
}

// RSI uses Wilder smoothing. It is 50 with fewer than period+1 prices.
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 50
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		gain, loss = accumulate(gain, loss, prices[i]-prices[i-1])
	}
	avgGain, avgLoss := gain/float64(period), loss/float64(period)
	for i := period + 1; i < len(prices); i++ {
		g, l := accumulate(0, 0, prices[i]-prices[i-1])
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return mathx.Round(100-100/(1+rs), 2)
}

func accumulate(gain, loss, change float64) (float64, float64) {
	if change > 0 {
		return gain + change, loss
	}
	return gain, loss - change
}

type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACD is EMA12-EMA26 with a 9-period SMA signal line. All zero with
// fewer than 26 prices.
func MACD(prices []float64) MACDResult {
	if len(prices) < 26 {
		return MACDResult{}
	}
	macd := EMA(prices, 12) - EMA(prices, 26)

	line := make([]float64, 0, len(prices)-25)
	for i := 25; i < len(prices); i++ {
		window := prices[:i+1]
		line = append(line, EMA(window, 12)-EMA(window, 26))
	}
	var signal float64
	switch {
	case len(line) >= 9:
		signal = SMA(line, 9)
	case len(line) > 0:
		signal = line[len(line)-1]
	}
	return MACDResult{
		MACD:      mathx.Round(macd, 4),
		Signal:    mathx.Round(signal, 4),
		Histogram: mathx.Round(macd-signal, 4),
	}
}

type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// BollingerBands uses the population standard deviation of the last
// period prices. All zero with fewer than period prices.
func BollingerBands(prices []float64, period int, k float64) Bands {
	if period <= 0 || len(prices) < period {
		return Bands{}
	}
	window := prices[len(prices)-period:]
	middle := mathx.Mean(window)
	band := k * mathx.StdDev(window)
	return Bands{
		Upper:  mathx.Round(middle+band, 2),
		Middle: mathx.Round(middle, 2),
		Lower:  mathx.Round(middle-band, 2),
	}
}

// BandWidth is the band span as a percent of the middle band.
func BandWidth(b Bands) float64 {
	if b.Middle == 0 {
		return 0
	}
	return mathx.Round((b.Upper-b.Lower)/b.Middle*100, 2)
}

const (
	TrendStrongUp   = "strong_uptrend"
	TrendUp         = "uptrend"
	TrendSideways   = "sideways"
	TrendDown       = "downtrend"
	TrendStrongDown = "strong_downtrend"
)

// TrendStrength classifies the ordering of price against its 20, 50 and
// 200 period averages.
func TrendStrength(prices []float64) string {
	if len(prices) == 0 {
		return TrendSideways
	}
	p := prices[len(prices)-1]
	s20, s50, s200 := SMA(prices, 20), SMA(prices, 50), longSMA(prices)
	switch {
	case p > s20 && s20 > s50 && s50 > s200:
		return TrendStrongUp
	case p > s20 && s20 > s50:
		return TrendUp
	case p < s20 && s20 < s50 && s50 < s200:
		return TrendStrongDown
	case p < s20 && s20 < s50:
		return TrendDown
	default:
		return TrendSideways
	}
}

// longSMA is the 200 period average, or the first price on shorter input.
func longSMA(prices []float64) float64 {
	if len(prices) < 200 {
		return prices[0]
	}
	return SMA(prices, 200)
}
