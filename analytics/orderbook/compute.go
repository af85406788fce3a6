// Package orderbook derives depth, imbalance, walls and trading pressure
// from a raw order book.
package orderbook

import (
	"math"
	"sort"
	"time"

	"cryptolens/internal/mathx"
	"cryptolens/models"
)

const (
	PressureStrongBuy  = "strong_buy"
	PressureBuy        = "buy"
	PressureNeutral    = "neutral"
	PressureSell       = "sell"
	PressureStrongSell = "strong_sell"
)

const wallCount = 3

type Level struct {
	Price             float64 `json:"price"`
	Amount            float64 `json:"amount"`
	Cumulative        float64 `json:"cumulative"`
	CumulativePercent float64 `json:"cumulativePercent"`
}

type Analysis struct {
	TotalBidVolume  float64 `json:"totalBidVolume"`
	TotalAskVolume  float64 `json:"totalAskVolume"`
	VolumeImbalance float64 `json:"volumeImbalance"`
	BidAskRatio     float64 `json:"bidAskRatio"`
	LiquidityScore  float64 `json:"liquidityScore"`
	BidDepth1Pct    float64 `json:"bidDepth1pct"`
	AskDepth1Pct    float64 `json:"askDepth1pct"`
	BidDepth5Pct    float64 `json:"bidDepth5pct"`
	AskDepth5Pct    float64 `json:"askDepth5pct"`
	Pressure        string  `json:"pressure"`
}

type Metrics struct {
	Symbol        string              `json:"symbol"`
	Exchange      string              `json:"exchange"`
	Timestamp     time.Time           `json:"timestamp"`
	Mid           float64             `json:"mid"`
	Spread        float64             `json:"spread"`
	SpreadPercent float64             `json:"spreadPercent"`
	Bids          []Level             `json:"bids"`
	Asks          []Level             `json:"asks"`
	BidWalls      []models.PriceLevel `json:"bidWalls"`
	AskWalls      []models.PriceLevel `json:"askWalls"`
	Analysis      Analysis            `json:"analysis"`
}

// Compute analyzes a book whose ladders run outward from the mid. Only
// the first limit levels per side are considered when limit > 0.
func Compute(book *models.OrderBook, limit int) *Metrics {
	bids, asks := clip(book.Bids, limit), clip(book.Asks, limit)

	var bestBid, bestAsk float64
	if len(bids) > 0 {
		bestBid = bids[0].Price
	}
	if len(asks) > 0 {
		bestAsk = asks[0].Price
	}
	mid := (bestBid + bestAsk) / 2
	spread := bestAsk - bestBid
	spreadPct := 0.0
	if mid > 0 {
		spreadPct = spread / mid * 100
	}

	bidVol, askVol := totalAmount(bids), totalAmount(asks)
	imbalance := 0.0
	if total := bidVol + askVol; total > 0 {
		imbalance = (bidVol - askVol) / total * 100
	}
	ratio := 1.0
	if askVol > 0 {
		ratio = bidVol / askVol
	}

	bid1, ask1 := DepthWithin(bids, mid, 1), DepthWithin(asks, mid, 1)
	bid5, ask5 := DepthWithin(bids, mid, 5), DepthWithin(asks, mid, 5)

	ts := book.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &Metrics{
		Symbol:        book.Symbol,
		Exchange:      book.Exchange,
		Timestamp:     ts,
		Mid:           mid,
		Spread:        spread,
		SpreadPercent: mathx.Round(spreadPct, 4),
		Bids:          cumulative(bids, bidVol),
		Asks:          cumulative(asks, askVol),
		BidWalls:      Walls(bids, wallCount),
		AskWalls:      Walls(asks, wallCount),
		Analysis: Analysis{
			TotalBidVolume:  mathx.Round(bidVol, 2),
			TotalAskVolume:  mathx.Round(askVol, 2),
			VolumeImbalance: mathx.Round(imbalance, 2),
			BidAskRatio:     mathx.Round(ratio, 2),
			LiquidityScore:  mathx.Round(Score(spreadPct, bid1, ask1, imbalance), 2),
			BidDepth1Pct:    bid1,
			AskDepth1Pct:    ask1,
			BidDepth5Pct:    bid5,
			AskDepth5Pct:    ask5,
			Pressure:        Pressure(imbalance, bid1, ask1),
		},
	}
}

func clip(levels []models.PriceLevel, limit int) []models.PriceLevel {
	if limit > 0 && len(levels) > limit {
		return levels[:limit]
	}
	return levels
}

func totalAmount(levels []models.PriceLevel) float64 {
	var sum float64
	for _, l := range levels {
		sum += l.Amount
	}
	return sum
}

func cumulative(levels []models.PriceLevel, total float64) []Level {
	out := make([]Level, len(levels))
	var run float64
	for i, l := range levels {
		run += l.Amount
		pct := 0.0
		if total > 0 {
			pct = run / total * 100
		}
		out[i] = Level{Price: l.Price, Amount: l.Amount, Cumulative: run, CumulativePercent: pct}
	}
	return out
}

// DepthWithin sums consecutive levels within pct of mid, stopping at the
// first level outside the band. Rounded to 2dp.
func DepthWithin(levels []models.PriceLevel, mid, pct float64) float64 {
	band := mid * pct / 100
	var vol float64
	for _, l := range levels {
		if math.Abs(l.Price-mid) > band {
			break
		}
		vol += l.Amount
	}
	return mathx.Round(vol, 2)
}

// Walls returns the n largest levels by amount, largest first.
func Walls(levels []models.PriceLevel, n int) []models.PriceLevel {
	sorted := make([]models.PriceLevel, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Amount > sorted[j].Amount })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Score is 0.4 spread + 0.4 depth + 0.2 balance, each on a 0-100 scale.
func Score(spreadPct, bidDepth1, askDepth1, imbalancePct float64) float64 {
	spreadScore := math.Max(0, 100-spreadPct*100)
	depthScore := math.Min(100, (bidDepth1+askDepth1)/2)
	balanceScore := 100 - math.Abs(imbalancePct)
	return spreadScore*0.4 + depthScore*0.4 + balanceScore*0.2
}

func Pressure(imbalancePct, bidDepth1, askDepth1 float64) string {
	switch {
	case imbalancePct > 30 && bidDepth1 > askDepth1:
		return PressureStrongBuy
	case imbalancePct > 10:
		return PressureBuy
	case imbalancePct < -30 && askDepth1 > bidDepth1:
		return PressureStrongSell
	case imbalancePct < -10:
		return PressureSell
	default:
		return PressureNeutral
	}
}

// Rating bands a 0-100 score.
func Rating(score float64) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Fair"
	default:
		return "Poor"
	}
}
