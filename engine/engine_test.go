package engine

import (
	"context"
	"testing"
	"time"

	"cryptolens/config"
	"cryptolens/internal/cache"
	"cryptolens/internal/fake"
	"cryptolens/models"
	"cryptolens/reader"
	"cryptolens/reader/coingecko"
)

type staticSentiment struct{}

func (staticSentiment) Global(context.Context) (*coingecko.Global, error) {
	return &coingecko.Global{TotalVolumeUSD: 1e9, BTCDominance: 50}, nil
}

func (staticSentiment) Coin(_ context.Context, id string) (*coingecko.CoinMarket, error) {
	return &coingecko.CoinMarket{ID: id, Price: 60000}, nil
}

func (staticSentiment) MarketCapChart(context.Context, int) ([]coingecko.Point, error) {
	return nil, nil
}

func levels(price float64) []models.PriceLevel {
	return []models.PriceLevel{{Price: price, Amount: 1000}}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	binance := fake.New("binance").
		WithTicker("XLM/USDT", 0.639, 0.640, 0.6395, 250_000).
		WithBook("XLM/USDT", levels(0.639), levels(0.640))
	kucoin := fake.New("kucoin").
		WithTicker("XLM/USDT", 0.655, 0.656, 0.6555, 50_000).
		WithBook("XLM/USDT", levels(0.655), levels(0.656))

	cfg := config.Default()
	cfg.Limits.Timeout = 2 * time.Second
	factories := map[string]reader.Factory{}
	for _, c := range []*fake.Connector{binance, kucoin} {
		cfg.Exchanges[c.Name] = config.ExchangeConfig{Enabled: true, APILimit: 6000}
		factories[c.Name] = fake.Factory(c)
	}
	e, err := New(cfg, WithFactories(factories), WithSentimentSource(staticSentiment{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestEngineWiring(t *testing.T) {
	e := newTestEngine(t)
	if got := e.Exchanges.AvailableExchanges(); len(got) != 2 {
		t.Fatalf("unexpected exchanges %v", got)
	}
	if e.Raw.Size() != 3 || e.Analytic.Size() != 5 {
		t.Fatalf("unexpected pool sizes %d/%d", e.Raw.Size(), e.Analytic.Size())
	}
	names := e.CacheStats().Names()
	want := []string{
		cache.ArbitrageCache, cache.LiquidityCache, cache.MarketsCache,
		cache.OHLCVCache, cache.SentimentCache, cache.TickerCache,
	}
	if len(names) != len(want) {
		t.Fatalf("cache names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("cache names = %v, want %v", names, want)
		}
	}
}

func TestEngineArbitrageAndClear(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	best, err := e.Arbitrage.FindBest(ctx, "XLM", nil)
	if err != nil || best == nil {
		t.Fatalf("FindBest: %+v %v", best, err)
	}
	if best.BuyExchange != "binance" || best.SellExchange != "kucoin" || best.NetProfitPercent != 2.14 {
		t.Fatalf("unexpected opportunity %+v", best)
	}

	ranking, err := e.Liquidity.RankAssetsByLiquidity(ctx, "XLM/USDT", nil)
	if err != nil || ranking.Rank != 2 {
		t.Fatalf("RankAssetsByLiquidity: %+v %v", ranking, err)
	}

	if _, err := e.Sentiment.FearGreedIndex(ctx); err != nil {
		t.Fatalf("FearGreedIndex: %v", err)
	}

	stats := e.CacheStats()
	for _, name := range []string{cache.TickerCache, cache.ArbitrageCache, cache.LiquidityCache, cache.SentimentCache} {
		if stats[name] == 0 {
			t.Fatalf("expected %s entries, stats %v", name, stats)
		}
	}
	e.ClearCaches()
	for name, n := range e.CacheStats() {
		if n != 0 {
			t.Fatalf("cache %s not cleared: %d", name, n)
		}
	}
	fields := e.ReportStats()
	if fields["cache_ticker"] != 0 {
		t.Fatalf("unexpected report fields %v", fields)
	}
	if misses, _ := fields["count_cache_miss"].(int64); misses == 0 {
		t.Fatalf("cache misses not counted: %v", fields)
	}
}
