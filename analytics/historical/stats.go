package historical

import (
	"math"
	"time"

	"cryptolens/internal/mathx"
	"cryptolens/models"
)

const dateLayout = "2006-01-02"

const tradingDays = 252

type Point struct {
	Date          string  `json:"date"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	Volume        float64 `json:"volume"`
	ChangePercent float64 `json:"changePercent"`
}

type Stats struct {
	High               float64 `json:"high"`
	HighDate           string  `json:"highDate"`
	Low                float64 `json:"low"`
	LowDate            string  `json:"lowDate"`
	Open               float64 `json:"open"`
	Close              float64 `json:"close"`
	Change             float64 `json:"change"`
	ChangePercent      float64 `json:"changePercent"`
	Volatility         float64 `json:"volatility"`
	AverageVolume      float64 `json:"averageVolume"`
	SharpeRatio        float64 `json:"sharpeRatio"`
	MaxDrawdown        float64 `json:"maxDrawdown"`
	MaxDrawdownPercent float64 `json:"maxDrawdownPercent"`
	CumulativeReturn   float64 `json:"cumulativeReturn"`
	DaysUp             int     `json:"daysUp"`
	DaysDown           int     `json:"daysDown"`
	WinRate            float64 `json:"winRate"`
}

func formatDate(t time.Time) string { return t.UTC().Format(dateLayout) }

// Points converts candles to dated points with the percent change
// against the previous close. The first point has no change.
func Points(candles []models.Candle) []Point {
	out := make([]Point, len(candles))
	for i, c := range candles {
		p := Point{
			Date:   formatDate(c.Time),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		}
		if i > 0 && candles[i-1].Close != 0 {
			prev := candles[i-1].Close
			p.ChangePercent = mathx.Round((c.Close-prev)/prev*100, 2)
		}
		out[i] = p
	}
	return out
}

// ComputeStats derives the summary statistics of a candle series.
func ComputeStats(candles []models.Candle) Stats {
	if len(candles) == 0 {
		return Stats{}
	}
	points := Points(candles)
	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	s := Stats{High: candles[0].High, Low: candles[0].Low, HighDate: points[0].Date, LowDate: points[0].Date}
	for i, c := range candles {
		if c.High > s.High {
			s.High, s.HighDate = c.High, points[i].Date
		}
		if c.Low < s.Low {
			s.Low, s.LowDate = c.Low, points[i].Date
		}
	}

	open, last := candles[0].Open, candles[len(candles)-1].Close
	s.Open, s.Close = open, last
	s.Change = mathx.Round(last-open, 2)
	if open != 0 {
		s.ChangePercent = mathx.Round((last-open)/open*100, 2)
		s.CumulativeReturn = s.ChangePercent
	}
	s.Volatility = mathx.Round(volatility(closes), 2)
	s.AverageVolume = math.Round(mathx.Mean(volumes))
	s.SharpeRatio = mathx.Round(sharpe(closes), 2)
	dd, ddPct := MaxDrawdown(closes)
	s.MaxDrawdown, s.MaxDrawdownPercent = mathx.Round(dd, 2), mathx.Round(ddPct, 2)

	for _, p := range points[1:] {
		switch {
		case p.ChangePercent > 0:
			s.DaysUp++
		case p.ChangePercent < 0:
			s.DaysDown++
		}
	}
	if n := s.DaysUp + s.DaysDown; n > 0 {
		s.WinRate = mathx.Round(float64(s.DaysUp)/float64(n)*100, 2)
	}
	return s
}

// volatility is the population standard deviation of closes as a percent
// of their mean.
func volatility(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	mean := mathx.Mean(closes)
	if mean == 0 {
		return 0
	}
	return mathx.StdDev(closes) / mean * 100
}

func sharpe(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}
	if len(returns) < 2 {
		return 0
	}
	std := mathx.StdDev(returns)
	if std == 0 {
		return 0
	}
	return mathx.Mean(returns) * tradingDays / (std * math.Sqrt(tradingDays))
}

// MaxDrawdown returns the largest peak-to-trough decline and the largest
// decline relative to its peak.
func MaxDrawdown(closes []float64) (float64, float64) {
	var peak, maxDD, maxPct float64
	for i, c := range closes {
		if i == 0 || c > peak {
			peak = c
			continue
		}
		dd := peak - c
		if dd > maxDD {
			maxDD = dd
		}
		if peak > 0 {
			if pct := dd / peak * 100; pct > maxPct {
				maxPct = pct
			}
		}
	}
	return maxDD, maxPct
}
