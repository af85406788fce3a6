package sentiment

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"cryptolens/config"
	"cryptolens/internal/cache"
	"cryptolens/reader/coingecko"
)

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

type fakeSource struct {
	globalErr   error
	chartErr    error
	chart       []coingecko.Point
	globalCalls atomic.Int64
}

func (f *fakeSource) Global(context.Context) (*coingecko.Global, error) {
	f.globalCalls.Add(1)
	if f.globalErr != nil {
		return nil, f.globalErr
	}
	return &coingecko.Global{TotalVolumeUSD: 100e9, BTCDominance: 52, TotalMarketCapUSD: 2.5e12}, nil
}

func (f *fakeSource) Coin(_ context.Context, id string) (*coingecko.CoinMarket, error) {
	return &coingecko.CoinMarket{ID: id, Price: 65000.123, MarketCap: 1.3e12, Change24hPct: 2, Change7dPct: 6}, nil
}

func (f *fakeSource) MarketCapChart(_ context.Context, days int) ([]coingecko.Point, error) {
	if f.chartErr != nil {
		return nil, f.chartErr
	}
	return f.chart, nil
}

func dailyChart(n int) []coingecko.Point {
	out := make([]coingecko.Point, n)
	for i := range out {
		out[i] = coingecko.Point{Time: now.AddDate(0, 0, i-n+1), Value: 1000 + float64(i)*10}
	}
	return out
}

func newTestBuilder(src Source) (*Builder, *cache.Layer) {
	layer := cache.NewLayer(config.Default().Cache)
	return NewBuilder(src, layer, config.Default().Cache.SentimentTTL), layer
}

func TestSubScores(t *testing.T) {
	cases := []struct {
		name      string
		got, want float64
	}{
		{"volatility flat", VolatilityScore(0), 100},
		{"volatility 2%", VolatilityScore(-2), 60},
		{"volatility floor", VolatilityScore(8), 0},
		{"momentum neutral", MomentumScore(0, 0), 50},
		{"momentum cap", MomentumScore(30, 30), 100},
		{"momentum floor", MomentumScore(-30, -20), 0},
		{"trend placeholder", TrendScore(placeholderBreadth), 62.5},
		{"trend floor", TrendScore(10), 0},
		{"dominance low", DominanceScore(20), 0},
		{"dominance high", DominanceScore(60), 100},
		{"volume no history", VolumeScore(10, 0), 20},
		{"volume half", VolumeScore(5, 10), 20},
		{"volume double", VolumeScore(20, 10), 100},
		{"volume between", VolumeScore(12.5, 10), 60},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := map[float64]string{
		0: ExtremeFear, 25: ExtremeFear, 25.5: Fear, 45: Fear, 50: Neutral,
		55: Neutral, 75: Greed, 76: ExtremeGreed, 100: ExtremeGreed,
	}
	for v, want := range cases {
		if got := Classify(v).Key; got != want {
			t.Errorf("Classify(%v) = %s, want %s", v, got, want)
		}
	}
	if c := Classify(10); c.Color != "#8b0000" || c.Description != "Extreme Fear - Market at potential bottom" {
		t.Errorf("unexpected classification %+v", c)
	}
}

func TestFearGreedIndex(t *testing.T) {
	src := &fakeSource{}
	b, layer := newTestBuilder(src)
	idx, err := b.FearGreedIndex(context.Background())
	if err != nil {
		t.Fatalf("FearGreedIndex: %v", err)
	}
	want := Components{Volatility: 60, Momentum: 60, MarketTrend: 62.5, Dominance: 90, Volume: 60}
	if idx.Components != want {
		t.Fatalf("components = %+v, want %+v", idx.Components, want)
	}
	if idx.Value != 64 || idx.Classification.Key != Greed {
		t.Fatalf("unexpected index %+v", idx)
	}

	if _, err := b.FearGreedIndex(context.Background()); err != nil {
		t.Fatal(err)
	}
	if src.globalCalls.Load() != 1 {
		t.Fatalf("expected cached index, got %d global calls", src.globalCalls.Load())
	}
	if layer.Stats()[cache.SentimentCache] != 1 {
		t.Fatalf("sentiment cache not registered: %v", layer.Stats())
	}

	b.ClearCache()
	idx, _ = b.FearGreedIndex(context.Background())
	// second sample: trailing mean equals the current volume
	if idx.Components.Volume != 46.67 {
		t.Fatalf("unexpected volume score after history %v", idx.Components.Volume)
	}
}

func TestWindows(t *testing.T) {
	w := Windows(dailyChart(181), 1000)
	if len(w) != 5 {
		t.Fatalf("expected five windows, got %+v", w)
	}
	if w[0].Period != "1d" || w[0].Change != 10 || w[0].ChangePercent != 0.36 {
		t.Fatalf("unexpected 1d window %+v", w[0])
	}
	last := w[4]
	if last.Period != "180d" || last.MarketCap != 2800 || last.Change != 1800 || last.ChangePercent != 180 || last.VolumeChange != 1800 {
		t.Fatalf("unexpected 180d window %+v", last)
	}

	sparse := []coingecko.Point{{Time: now.AddDate(0, 0, -10), Value: 100}, {Time: now, Value: 110}}
	if w := Windows(sparse, 0); len(w) != 0 {
		t.Fatalf("windows without enough points or history should be skipped: %+v", w)
	}
}

func TestWindowsNeedFullHistory(t *testing.T) {
	w := Windows(dailyChart(31), 0)
	if len(w) != 3 || w[2].Period != "30d" {
		t.Fatalf("only windows covered by 30 days of history expected, got %+v", w)
	}
	if w[2].ChangePercent != 30 {
		t.Fatalf("unexpected 30d change %+v", w[2])
	}
}

func TestBtcDominance(t *testing.T) {
	b, _ := newTestBuilder(&fakeSource{})
	d, err := b.BtcDominance(context.Background())
	if err != nil {
		t.Fatalf("BtcDominance: %v", err)
	}
	if d.DominancePercent != 52 || d.Price != 65000.12 || d.Change24h != 2 || d.Change7d != 6 || d.MarketCap != 1.3e12 {
		t.Fatalf("unexpected dominance %+v", d)
	}
}

func TestMarketSentiment(t *testing.T) {
	b, _ := newTestBuilder(&fakeSource{chartErr: errors.New("chart down")})
	s, err := b.MarketSentiment(context.Background())
	if err != nil {
		t.Fatalf("MarketSentiment: %v", err)
	}
	if s.FearGreed == nil || s.BtcDominance == nil || s.MarketChanges != nil {
		t.Fatalf("unexpected snapshot %+v", s)
	}

	b, _ = newTestBuilder(&fakeSource{globalErr: errors.New("global down")})
	if _, err := b.MarketSentiment(context.Background()); err == nil {
		t.Fatal("expected error when the index cannot be built")
	}
}

func TestMarketChanges(t *testing.T) {
	b, _ := newTestBuilder(&fakeSource{chart: dailyChart(181)})
	mc, err := b.MarketChanges(context.Background())
	if err != nil {
		t.Fatalf("MarketChanges: %v", err)
	}
	if len(mc.Windows) != 5 || mc.Windows[0].Volume24h != 100e9 {
		t.Fatalf("unexpected changes %+v", mc)
	}
}
