package cache

import (
	"testing"
	"time"

	"cryptolens/config"
	"cryptolens/models"
)

func TestTTLGetSet(t *testing.T) {
	c := New[*models.Ticker]("ticker", time.Minute)
	if _, ok := c.Get("ticker:binance:BTC/USDT"); ok {
		t.Fatal("empty cache returned a hit")
	}
	q := &models.Ticker{Symbol: "BTC/USDT", Exchange: "binance", Bid: 1, Ask: 2}
	c.Set("ticker:binance:BTC/USDT", q)

	got, ok := c.Get("ticker:binance:BTC/USDT")
	if !ok || got != q {
		t.Fatalf("expected the stored snapshot back, got %v %v", got, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", c.Len())
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New[int]("short", 20*time.Millisecond)
	c.Set("k", 7)
	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should have expired")
	}
}

func TestTTLReplaceOnWrite(t *testing.T) {
	c := New[[]models.Candle]("ohlcv", time.Minute)
	c.Set("k", []models.Candle{{Close: 1}})
	c.Set("k", []models.Candle{{Close: 2}, {Close: 3}})
	got, _ := c.Get("k")
	if len(got) != 2 || got[0].Close != 2 {
		t.Fatalf("last write should win, got %v", got)
	}
}

func TestLayerStatsAndClear(t *testing.T) {
	l := NewLayer(config.Default().Cache)
	l.Tickers.Set("a", &models.Ticker{})
	l.Candles.Set("b", nil)
	l.Markets.Set("c", map[string]models.Market{})

	derived := New[float64](LiquidityCache, time.Minute)
	derived.Set("x", 1)
	derived.Set("y", 2)
	l.Register(derived)

	stats := l.Stats()
	want := Stats{TickerCache: 1, OHLCVCache: 1, MarketsCache: 1, LiquidityCache: 2}
	for name, n := range want {
		if stats[name] != n {
			t.Errorf("%s: expected %d entries, got %d", name, n, stats[name])
		}
	}
	if names := stats.Names(); len(names) != 4 || names[0] != LiquidityCache {
		t.Errorf("unexpected names %v", names)
	}

	l.Clear()
	for name, n := range l.Stats() {
		if n != 0 {
			t.Errorf("%s not flushed: %d", name, n)
		}
	}
}
