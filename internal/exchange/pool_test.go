package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"cryptolens/config"
	"cryptolens/internal/cache"
	"cryptolens/internal/fake"
	"cryptolens/internal/limiter"
	"cryptolens/models"
	"cryptolens/reader"
)

func testConfig(ids ...string) *config.Config {
	cfg := config.Default()
	cfg.Limits.Timeout = time.Second
	for _, id := range ids {
		cfg.Exchanges[id] = config.ExchangeConfig{Enabled: true, APILimit: 6000, SupportedPairs: []string{"BTC/USDT"}}
	}
	return cfg
}

func newTestPool(cfg *config.Config, factories map[string]reader.Factory) *Pool {
	return NewPool(cfg, limiter.New("raw", cfg.Limits.RawConcurrency), cache.New[map[string]models.Market](cache.MarketsCache, time.Hour), factories)
}

func TestRateLimitDelay(t *testing.T) {
	cases := []struct {
		apiLimit int
		want     time.Duration
	}{
		{60, time.Second},
		{0, time.Second},
		{1200, 50 * time.Millisecond},
		{6000, 50 * time.Millisecond},
		{120, 500 * time.Millisecond},
	}
	for _, c := range cases {
		if got := RateLimitDelay(c.apiLimit); got != c.want {
			t.Errorf("RateLimitDelay(%d) = %v, want %v", c.apiLimit, got, c.want)
		}
	}
}

func TestNewPoolSkipsFailedExchanges(t *testing.T) {
	cfg := testConfig("binance", "bybit", "unknown")
	factories := map[string]reader.Factory{
		"binance": fake.Factory(fake.New("binance")),
		"bybit": func(reader.Options) (reader.Connector, error) {
			return nil, errors.New("boom")
		},
	}
	p := newTestPool(cfg, factories)
	ids := p.AvailableExchanges()
	if len(ids) != 1 || ids[0] != "binance" {
		t.Fatalf("expected only binance, got %v", ids)
	}
	if p.Delay("binance") != minDelay || p.Delay("missing") != fallbackDelay {
		t.Fatalf("unexpected delays %v %v", p.Delay("binance"), p.Delay("missing"))
	}
	st := p.ExchangeStatus()["binance"]
	if !st.Connected || st.HasCredentials || st.RateLimitDelayMS != 50 || len(st.SupportedPairs) != 1 {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestFormatSymbolForExchange(t *testing.T) {
	conn := fake.New("binance").
		WithTicker("CELO/USDT", 0.64, 0.641, 0.6405, 1000).
		WithTicker("ETH/USDC", 3000, 3001, 3000.5, 1000).
		WithTicker("ETH/USDT", 3000, 3001, 3000.5, 1000)
	p := newTestPool(testConfig("binance"), map[string]reader.Factory{"binance": fake.Factory(conn)})
	ctx := context.Background()

	cases := []struct {
		symbol string
		want   string
		ok     bool
	}{
		{"CELO", "CELO/USDT", true},
		{"ETH", "ETH/USDC", true},
		{"DOGE", "", false},
		{"ANY/PAIR", "ANY/PAIR", true},
	}
	for _, c := range cases {
		got, ok := p.FormatSymbolForExchange(ctx, "binance", c.symbol)
		if got != c.want || ok != c.ok {
			t.Errorf("FormatSymbolForExchange(%s) = %q,%v want %q,%v", c.symbol, got, ok, c.want, c.ok)
		}
	}
	if _, ok := p.FormatSymbolForExchange(ctx, "kraken", "BTC"); ok {
		t.Error("unknown exchange should not resolve")
	}
	if n := conn.Calls("LoadMarkets"); n != 1 {
		t.Errorf("expected markets loaded once, got %d", n)
	}
}

func TestCallUnknownExchange(t *testing.T) {
	p := newTestPool(testConfig(), nil)
	err := p.Call(context.Background(), "nope", "op", "", func(context.Context, reader.Connector) error { return nil })
	if !errors.Is(err, ErrExchangeNotFound) {
		t.Fatalf("expected ErrExchangeNotFound, got %v", err)
	}
}

func TestCallAppliesTimeout(t *testing.T) {
	cfg := testConfig("binance")
	cfg.Limits.Timeout = 20 * time.Millisecond
	slow := fake.New("binance").WithTicker("BTC/USDT", 1, 2, 1.5, 1)
	slow.Delay = time.Second
	p := newTestPool(cfg, map[string]reader.Factory{"binance": fake.Factory(slow)})

	_, err := Do(context.Background(), p, "binance", "fetch_ticker", "BTC/USDT", func(ctx context.Context, c reader.Connector) (*models.Ticker, error) {
		return c.FetchTicker(ctx, "BTC/USDT")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if p.Raw().InFlight() != 0 {
		t.Fatalf("raw slot leaked")
	}
}

func TestHealthCheck(t *testing.T) {
	ok := fake.New("binance").WithTicker("BTC/USDT", 1, 2, 1.5, 1)
	unlisted := fake.New("bybit")
	broken := fake.New("kucoin")
	broken.Err = errors.New("connection refused")
	p := newTestPool(testConfig("binance", "bybit", "kucoin"), map[string]reader.Factory{
		"binance": fake.Factory(ok),
		"bybit":   fake.Factory(unlisted),
		"kucoin":  fake.Factory(broken),
	})

	report := p.HealthCheck(context.Background())
	if report.Status != HealthDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if !report.Exchanges["bybit"].Healthy {
		t.Error("symbol-not-found should still count as responding")
	}
	if k := report.Exchanges["kucoin"]; k.Healthy || k.Error == "" {
		t.Errorf("expected kucoin unhealthy with error, got %+v", k)
	}
}

func TestHealthStatus(t *testing.T) {
	cases := []struct {
		healthy, total int
		want           string
	}{
		{4, 4, HealthHealthy},
		{3, 4, HealthHealthy},
		{2, 4, HealthDegraded},
		{0, 4, HealthUnhealthy},
		{0, 0, HealthUnhealthy},
	}
	for _, c := range cases {
		if got := healthStatus(c.healthy, c.total); got != c.want {
			t.Errorf("healthStatus(%d,%d) = %s, want %s", c.healthy, c.total, got, c.want)
		}
	}
}
