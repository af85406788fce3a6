package cache

import (
	"sort"
	"sync"

	"cryptolens/config"
	"cryptolens/models"
)

// Cache names as reported by Stats.
const (
	TickerCache    = "ticker"
	OHLCVCache     = "ohlcv"
	MarketsCache   = "markets"
	LiquidityCache = "liquidity"
	ArbitrageCache = "arbitrage"
	SentimentCache = "sentiment"
)

// Flusher is any cache the layer can report on and clear.
type Flusher interface {
	Name() string
	Len() int
	Flush()
}

// Layer groups the three market-data caches and any derived caches the
// analytics packages register, so they can be listed and flushed together.
type Layer struct {
	Tickers *TTL[*models.Ticker]
	Candles *TTL[[]models.Candle]
	Markets *TTL[map[string]models.Market]

	mu      sync.Mutex
	derived []Flusher
}

func NewLayer(cfg config.CacheConfig) *Layer {
	return &Layer{
		Tickers: New[*models.Ticker](TickerCache, cfg.TickerTTL),
		Candles: New[[]models.Candle](OHLCVCache, cfg.OHLCVTTL),
		Markets: New[map[string]models.Market](MarketsCache, cfg.MarketsTTL),
	}
}

// Register adds a derived cache to Stats and Clear.
func (l *Layer) Register(f Flusher) {
	l.mu.Lock()
	l.derived = append(l.derived, f)
	l.mu.Unlock()
}

func (l *Layer) all() []Flusher {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []Flusher{l.Tickers, l.Candles, l.Markets}
	return append(out, l.derived...)
}

// Stats holds the entry count per cache name.
type Stats map[string]int

// Names returns the cache names in lexical order.
func (s Stats) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (l *Layer) Stats() Stats {
	stats := Stats{}
	for _, f := range l.all() {
		stats[f.Name()] = f.Len()
	}
	return stats
}

// Clear flushes every cache, derived ones included.
func (l *Layer) Clear() {
	for _, f := range l.all() {
		f.Flush()
	}
}
