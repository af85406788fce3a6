package models

import (
	"fmt"
	"strings"
	"time"
)

// Ticker is the best bid/ask/last snapshot for one pair on one exchange.
// Volume is the 24h quote volume.
type Ticker struct {
	Symbol    string    `json:"symbol"`
	Exchange  string    `json:"exchange"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Last      float64   `json:"last"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// Candle is one OHLCV bar. Time is the bar open time.
type Candle struct {
	Time   time.Time `json:"timestamp"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Valid reports whether the bar is internally consistent.
func (c Candle) Valid() bool {
	return c.High >= c.Open && c.High >= c.Close && c.High >= c.Low &&
		c.Low <= c.Open && c.Low <= c.Close
}

// CandleSeries is a candle list tagged with the exchange that produced it.
// Source is "none" when no exchange returned data.
type CandleSeries struct {
	Data   []Candle `json:"data"`
	Source string   `json:"source"`
}

type PriceLevel struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}

// OrderBook holds bid and ask ladders sorted outward from the midpoint:
// bids descending, asks ascending.
type OrderBook struct {
	Symbol    string       `json:"symbol"`
	Exchange  string       `json:"exchange"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}

// MinMax is an inclusive range. Zero Max means unbounded.
type MinMax struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type Limits struct {
	Amount MinMax `json:"amount"`
	Price  MinMax `json:"price"`
	Cost   MinMax `json:"cost"`
}

// Market is the trading metadata of one pair. ID is the exchange-native
// symbol, Symbol the unified BASE/QUOTE form.
type Market struct {
	ID     string  `json:"id"`
	Symbol string  `json:"symbol"`
	Base   string  `json:"base"`
	Quote  string  `json:"quote"`
	Active bool    `json:"active"`
	Maker  float64 `json:"maker"`
	Taker  float64 `json:"taker"`
	Limits Limits  `json:"limits"`
}

// ValidationResult is returned by order validation. Errors holds one
// human-readable message per failed rule.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
	Market *Market  `json:"market,omitempty"`
}

// UnifiedSymbol joins base and quote as BASE/QUOTE.
func UnifiedSymbol(base, quote string) string {
	return strings.ToUpper(base) + "/" + strings.ToUpper(quote)
}

// SplitSymbol is the inverse of UnifiedSymbol.
func SplitSymbol(symbol string) (base, quote string, ok bool) {
	base, quote, ok = strings.Cut(symbol, "/")
	if !ok || base == "" || quote == "" {
		return "", "", false
	}
	return base, quote, true
}

var timeframes = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// TimeframeDuration returns the bar length for a unified timeframe token.
func TimeframeDuration(tf string) (time.Duration, error) {
	d, ok := timeframes[tf]
	if !ok {
		return 0, fmt.Errorf("unsupported timeframe %q", tf)
	}
	return d, nil
}
