package indicators

import (
	"cryptolens/internal/mathx"
	"cryptolens/models"
)

// MinCandles is the shortest series CalculateAll accepts.
const MinCandles = 26

const (
	Bullish = "bullish"
	Bearish = "bearish"
	Neutral = "neutral"
)

type RSIReading struct {
	Value  float64 `json:"value"`
	Signal string  `json:"signal"`
}

type MACDReading struct {
	MACDResult
	Position string `json:"position"`
}

type BollingerReading struct {
	Bands
	Position  string  `json:"position"`
	BandWidth float64 `json:"bandWidth"`
}

type MovingAverages struct {
	SMA20  float64 `json:"sma20"`
	SMA50  float64 `json:"sma50"`
	SMA200 float64 `json:"sma200"`
	EMA12  float64 `json:"ema12"`
	EMA26  float64 `json:"ema26"`
}

type Signals struct {
	Bullish int    `json:"bullish"`
	Bearish int    `json:"bearish"`
	Neutral int    `json:"neutral"`
	Overall string `json:"overall"`
}

type Result struct {
	Price          float64          `json:"price"`
	RSI            RSIReading       `json:"rsi"`
	MACD           MACDReading      `json:"macd"`
	Bollinger      BollingerReading `json:"bollingerBands"`
	MovingAverages MovingAverages   `json:"movingAverages"`
	Trend          string           `json:"trend"`
	Signals        Signals          `json:"signals"`
}

// Closes extracts the close prices of candles.
func Closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// CalculateAll bundles every indicator and tallies four votes: RSI
// extremes, MACD agreement, Bollinger position and moving average order.
func CalculateAll(candles []models.Candle) (*Result, error) {
	if len(candles) < MinCandles {
		return nil, &models.InsufficientDataError{Need: MinCandles, Have: len(candles)}
	}
	prices := Closes(candles)
	price := prices[len(prices)-1]

	rsi := RSI(prices, 14)
	macd := MACD(prices)
	bands := BollingerBands(prices, 20, 2)
	ma := MovingAverages{
		SMA20:  mathx.Round(SMA(prices, 20), 2),
		SMA50:  mathx.Round(SMA(prices, 50), 2),
		SMA200: mathx.Round(longSMA(prices), 2),
		EMA12:  mathx.Round(EMA(prices, 12), 2),
		EMA26:  mathx.Round(EMA(prices, 26), 2),
	}

	r := &Result{
		Price:          price,
		RSI:            RSIReading{Value: rsi, Signal: rsiSignal(rsi)},
		MACD:           MACDReading{MACDResult: macd, Position: macdPosition(macd)},
		Bollinger:      BollingerReading{Bands: bands, Position: bandPosition(price, bands), BandWidth: BandWidth(bands)},
		MovingAverages: ma,
		Trend:          TrendStrength(prices),
	}

	votes := []string{
		rsiVote(rsi),
		macdVote(macd),
		bandVote(r.Bollinger.Position),
		maVote(price, ma),
	}
	for _, v := range votes {
		switch v {
		case Bullish:
			r.Signals.Bullish++
		case Bearish:
			r.Signals.Bearish++
		default:
			r.Signals.Neutral++
		}
	}
	r.Signals.Overall = overall(r.Signals)
	return r, nil
}

func rsiSignal(rsi float64) string {
	switch {
	case rsi < 30:
		return "oversold"
	case rsi > 70:
		return "overbought"
	default:
		return "neutral"
	}
}

func rsiVote(rsi float64) string {
	switch {
	case rsi < 30:
		return Bullish
	case rsi > 70:
		return Bearish
	default:
		return Neutral
	}
}

func macdPosition(m MACDResult) string {
	switch {
	case m.Histogram > 0:
		return Bullish
	case m.Histogram < 0:
		return Bearish
	default:
		return Neutral
	}
}

func macdVote(m MACDResult) string {
	switch {
	case m.Histogram > 0 && m.MACD > m.Signal:
		return Bullish
	case m.Histogram < 0 && m.MACD < m.Signal:
		return Bearish
	default:
		return Neutral
	}
}

func bandPosition(price float64, b Bands) string {
	switch {
	case price > b.Upper:
		return "above"
	case price < b.Lower:
		return "below"
	default:
		return "inside"
	}
}

func bandVote(position string) string {
	switch position {
	case "below":
		return Bullish
	case "above":
		return Bearish
	default:
		return Neutral
	}
}

func maVote(price float64, ma MovingAverages) string {
	switch {
	case price > ma.SMA20 && ma.SMA20 > ma.SMA50 && ma.SMA50 > ma.SMA200:
		return Bullish
	case price < ma.SMA20 && ma.SMA20 < ma.SMA50 && ma.SMA50 < ma.SMA200:
		return Bearish
	default:
		return Neutral
	}
}

func overall(s Signals) string {
	switch {
	case s.Bullish > s.Bearish && s.Bullish > s.Neutral:
		return Bullish
	case s.Bearish > s.Bullish && s.Bearish > s.Neutral:
		return Bearish
	default:
		return Neutral
	}
}
