package liquidity

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"cryptolens/analytics/orderbook"
	"cryptolens/config"
	"cryptolens/internal/cache"
	"cryptolens/internal/limiter"
	"cryptolens/models"
)

func TestSubScores(t *testing.T) {
	cases := []struct {
		name string
		got  Component
		want float64
	}{
		{"spread tight", SpreadScore(0.04), 100},
		{"spread mid band", SpreadScore(0.2), 20},
		{"spread wide", SpreadScore(0.75), 50},
		{"spread very wide", SpreadScore(1.5), 0},
		{"depth excellent", DepthScore(2_000_000, 2_000_000), 100},
		{"depth good", DepthScore(550_000, 550_000), 90},
		{"depth fair", DepthScore(55_000, 55_000), 60},
		{"depth shallow", DepthScore(5_500, 5_500), 30},
		{"depth tiny", DepthScore(500, 500), 10},
		{"volume excellent", VolumeScore(200_000), 100},
		{"volume good", VolumeScore(55_000), 85},
		{"volume fair", VolumeScore(5_500), 55},
		{"volume low", VolumeScore(550), 30},
		{"volume tiny", VolumeScore(50), 10},
		{"stability balanced", StabilityScore(1), 100},
		{"stability half", StabilityScore(0.5), 75},
		{"stability clamp", StabilityScore(5), 0},
		{"imbalance clamp", ImbalanceScore(150), 0},
		{"imbalance sell", ImbalanceScore(-25), 75},
		{"volatility calm", VolatilityScore(0.5), 100},
		{"volatility stable", VolatilityScore(1.5), 90},
		{"volatility moderate", VolatilityScore(3), 70},
		{"volatility high", VolatilityScore(7), 29},
		{"volatility extreme", VolatilityScore(15), 10},
		{"volatility floor", VolatilityScore(25), 0},
	}
	for _, c := range cases {
		if c.got.Score != c.want {
			t.Errorf("%s: score %v, want %v", c.name, c.got.Score, c.want)
		}
	}
}

func TestComponentDetails(t *testing.T) {
	if d := SpreadScore(0.04).Details; !strings.HasPrefix(d, "Extremely tight spread") {
		t.Errorf("unexpected spread details %q", d)
	}
	if d := ImbalanceScore(-25).Details; !strings.HasPrefix(d, "Moderate Sell pressure") {
		t.Errorf("unexpected imbalance details %q", d)
	}
	if r := DepthScore(55_000, 55_000).Rating; r != "good" {
		t.Errorf("unexpected depth rating %q", r)
	}
}

func TestWarnings(t *testing.T) {
	m := &Metrics{
		Overall: Overall{Score: 42},
		Components: Components{
			Spread:     SpreadScore(1.5),
			Depth:      DepthScore(500, 500),
			Volume:     VolumeScore(200_000),
			Stability:  StabilityScore(1),
			Imbalance:  ImbalanceScore(90),
			Volatility: VolatilityScore(0.5),
		},
	}
	w := Warnings(m)
	if len(w) != 4 || w[0] != "Poor overall liquidity: 42/100" {
		t.Fatalf("unexpected warnings %v", w)
	}
	if !strings.HasPrefix(w[3], "Strong buy/sell pressure: Strong Buy pressure") {
		t.Fatalf("unexpected imbalance warning %q", w[3])
	}

	m.Overall.Score = 90
	m.Components = Components{
		Spread: SpreadScore(0.01), Depth: DepthScore(2e6, 2e6), Volume: VolumeScore(2e5),
		Stability: StabilityScore(1), Imbalance: ImbalanceScore(0), Volatility: VolatilityScore(0.5),
	}
	if w := Warnings(m); len(w) != 0 {
		t.Fatalf("expected no warnings, got %v", w)
	}
}

type countingBooks struct {
	books map[string]*models.OrderBook
	calls atomic.Int64
}

func (c *countingBooks) FetchOrderBook(_ context.Context, exchange, _ string, _ int) (*models.OrderBook, error) {
	c.calls.Add(1)
	b, ok := c.books[exchange]
	if !ok {
		return nil, errors.New("exchange unavailable")
	}
	return b, nil
}

func deepBook(bidAmount, askAmount float64) *models.OrderBook {
	return &models.OrderBook{
		Bids: []models.PriceLevel{{Price: 99.99, Amount: bidAmount}},
		Asks: []models.PriceLevel{{Price: 100.01, Amount: askAmount}},
	}
}

func newTestScorer(books *countingBooks, exchanges ...string) (*Scorer, *cache.Layer) {
	layer := cache.NewLayer(config.Default().Cache)
	analytic := limiter.New("analytic", 2)
	an := orderbook.NewAnalyzer(books, analytic, nil)
	s := NewScorer(an, analytic, layer, config.Default().Cache.LiquidityTTL, func() []string { return exchanges })
	return s, layer
}

func TestCalculateLiquidityMetricsAcceptsZeroChange(t *testing.T) {
	books := &countingBooks{books: map[string]*models.OrderBook{"binance": deepBook(2e6, 2e6)}}
	s, _ := newTestScorer(books, "binance")

	zero := 0.0
	m, err := s.CalculateLiquidityMetrics(context.Background(), "binance", "BTC/USDT", &zero)
	if err != nil {
		t.Fatalf("CalculateLiquidityMetrics: %v", err)
	}
	if m.Components.Volatility.Score != 100 {
		t.Fatalf("zero daily change should score 100, got %+v", m.Components.Volatility)
	}
}

func TestCalculateLiquidityMetricsCaches(t *testing.T) {
	books := &countingBooks{books: map[string]*models.OrderBook{"binance": deepBook(2e6, 2e6)}}
	s, layer := newTestScorer(books, "binance")

	m, err := s.CalculateLiquidityMetrics(context.Background(), "binance", "BTC/USDT", nil)
	if err != nil {
		t.Fatalf("CalculateLiquidityMetrics: %v", err)
	}
	if m.Components.Spread.Score != 100 || m.Components.Depth.Score != 100 || m.Components.Volatility.Score != 75 {
		t.Fatalf("unexpected components %+v", m.Components)
	}
	// 25 + 25 + 20 + 10 + 10 + 7.5
	if m.Overall.Score != 98 || m.Overall.Rating != "Excellent" {
		t.Fatalf("unexpected overall %+v", m.Overall)
	}
	if _, err := s.CalculateLiquidityMetrics(context.Background(), "binance", "BTC/USDT", nil); err != nil {
		t.Fatal(err)
	}
	if books.calls.Load() != 1 {
		t.Fatalf("expected one book fetch, got %d", books.calls.Load())
	}
	if layer.Stats()[cache.LiquidityCache] != 1 {
		t.Fatalf("liquidity cache not registered: %v", layer.Stats())
	}
	s.ClearCache()
	if layer.Stats()[cache.LiquidityCache] != 0 {
		t.Fatal("ClearCache did not flush")
	}
}

func TestRankAssetsByLiquidity(t *testing.T) {
	books := &countingBooks{books: map[string]*models.OrderBook{
		"binance": deepBook(2e6, 2e6),
		"okx":     deepBook(50, 50),
	}}
	s, _ := newTestScorer(books, "binance", "bybit", "okx")

	r, err := s.RankAssetsByLiquidity(context.Background(), "BTC/USDT", nil)
	if err != nil {
		t.Fatalf("RankAssetsByLiquidity: %v", err)
	}
	if r.BestExchange != "binance" || r.Rank != 2 || len(r.Exchanges) != 2 {
		t.Fatalf("unexpected ranking %+v", r)
	}
	if r.Exchanges[0].Overall.Score < r.Exchanges[1].Overall.Score {
		t.Fatal("ranking not sorted descending")
	}
}

func TestRankAssetsByLiquidityNoData(t *testing.T) {
	s, _ := newTestScorer(&countingBooks{books: map[string]*models.OrderBook{}}, "binance")
	if _, err := s.RankAssetsByLiquidity(context.Background(), "BTC/USDT", nil); !errors.Is(err, models.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}
