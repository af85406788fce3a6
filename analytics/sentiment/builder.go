// Package sentiment builds a fear/greed style index and market-wide
// change figures from global aggregates.
package sentiment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cryptolens/internal/cache"
	"cryptolens/internal/mathx"
	"cryptolens/logger"
	"cryptolens/models"
	"cryptolens/reader/coingecko"
)

const (
	keyFearGreed     = "fearGreedIndex"
	keyMarketChanges = "marketChanges"
	keyBtcDominance  = "btcDominance"

	bitcoinID      = "bitcoin"
	volumeSamples  = 30
	noHistoryRatio = 0.8
)

// Source is the global market feed. *coingecko.Client satisfies it.
type Source interface {
	Global(ctx context.Context) (*coingecko.Global, error)
	Coin(ctx context.Context, id string) (*coingecko.CoinMarket, error)
	MarketCapChart(ctx context.Context, days int) ([]coingecko.Point, error)
}

type Index struct {
	Value          float64        `json:"value"`
	Classification Classification `json:"classification"`
	Components     Components     `json:"components"`
	Timestamp      time.Time      `json:"timestamp"`
}

type ChangeWindow struct {
	Period              string  `json:"period"`
	Days                int     `json:"days"`
	MarketCap           float64 `json:"marketCap"`
	Change              float64 `json:"change"`
	ChangePercent       float64 `json:"changePercent"`
	Volume24h           float64 `json:"volume24h"`
	VolumeChange        float64 `json:"volumeChange"`
	VolumeChangePercent float64 `json:"volumeChangePercent"`
}

type MarketChanges struct {
	Windows   []ChangeWindow `json:"windows"`
	Timestamp time.Time      `json:"timestamp"`
}

type BtcDominance struct {
	DominancePercent float64   `json:"dominancePercent"`
	Change24h        float64   `json:"change24h"`
	Change7d         float64   `json:"change7d"`
	MarketCap        float64   `json:"marketCap"`
	Price            float64   `json:"price"`
	Timestamp        time.Time `json:"timestamp"`
}

type Snapshot struct {
	FearGreed     *Index         `json:"fearGreedIndex"`
	MarketChanges *MarketChanges `json:"marketChanges"`
	BtcDominance  *BtcDominance  `json:"btcDominance"`
	Timestamp     time.Time      `json:"timestamp"`
}

var changeWindows = []struct {
	period string
	days   int
}{
	{"1d", 1},
	{"7d", 7},
	{"30d", 30},
	{"90d", 90},
	{"180d", 180},
}

type Builder struct {
	source Source
	cache  *cache.TTL[any]
	log    *logger.Log

	mu      sync.Mutex
	volumes []float64
}

// NewBuilder registers its cache with layer when layer is not nil.
func NewBuilder(source Source, layer *cache.Layer, ttl time.Duration) *Builder {
	c := cache.New[any](cache.SentimentCache, ttl)
	if layer != nil {
		layer.Register(c)
	}
	return &Builder{source: source, cache: c, log: logger.GetLogger()}
}

func cached[T any](b *Builder, key string, build func() (*T, error)) (*T, error) {
	if v, ok := b.cache.Get(key); ok {
		if t, ok := v.(*T); ok {
			return t, nil
		}
	}
	t, err := build()
	if err != nil {
		return nil, err
	}
	b.cache.Set(key, t)
	return t, nil
}

// snapshot fetches the global aggregates and the bitcoin row together.
func (b *Builder) snapshot(ctx context.Context) (*coingecko.Global, *coingecko.CoinMarket, error) {
	var (
		global *coingecko.Global
		btc    *coingecko.CoinMarket
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		global, err = b.source.Global(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		btc, err = b.source.Coin(gctx, bitcoinID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("market snapshot: %w", err)
	}
	return global, btc, nil
}

// trailingVolume returns the mean of earlier samples and records volume.
// With no history the estimate is volume scaled by noHistoryRatio.
func (b *Builder) trailingVolume(volume float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	trailing := volume * noHistoryRatio
	if len(b.volumes) > 0 {
		trailing = mathx.Mean(b.volumes)
	}
	b.volumes = append(b.volumes, volume)
	if len(b.volumes) > volumeSamples {
		b.volumes = b.volumes[len(b.volumes)-volumeSamples:]
	}
	return trailing
}

func (b *Builder) FearGreedIndex(ctx context.Context) (*Index, error) {
	return cached(b, keyFearGreed, func() (*Index, error) {
		global, btc, err := b.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		c := Components{
			Volatility:  mathx.Round(VolatilityScore(btc.Change24hPct), 2),
			Momentum:    mathx.Round(MomentumScore(btc.Change24hPct, btc.Change7dPct), 2),
			MarketTrend: mathx.Round(TrendScore(placeholderBreadth), 2),
			Dominance:   mathx.Round(DominanceScore(global.BTCDominance), 2),
			Volume:      mathx.Round(VolumeScore(global.TotalVolumeUSD, b.trailingVolume(global.TotalVolumeUSD)), 2),
		}
		value := Combine(c)
		b.log.WithComponent("sentiment_builder").WithFields(logger.Fields{
			"value":          value,
			"classification": Classify(value).Key,
		}).Debug("fear and greed index computed")
		return &Index{Value: value, Classification: Classify(value), Components: c, Timestamp: time.Now()}, nil
	})
}

func (b *Builder) MarketChanges(ctx context.Context) (*MarketChanges, error) {
	return cached(b, keyMarketChanges, func() (*MarketChanges, error) {
		var (
			global *coingecko.Global
			chart  []coingecko.Point
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			global, err = b.source.Global(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			chart, err = b.source.MarketCapChart(gctx, changeWindows[len(changeWindows)-1].days)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("market changes: %w", err)
		}
		if len(chart) < 2 {
			return nil, models.NewNoDataError("no market cap history")
		}
		return &MarketChanges{Windows: Windows(chart, global.TotalVolumeUSD), Timestamp: time.Now()}, nil
	})
}

// Windows computes the change over each fixed window of chart, newest
// point last. A window is skipped when it holds fewer than two points or
// the chart does not reach back to its start (within 5% of its length).
func Windows(chart []coingecko.Point, volume24h float64) []ChangeWindow {
	out := []ChangeWindow{}
	if len(chart) == 0 {
		return out
	}
	newest := chart[len(chart)-1]
	for _, w := range changeWindows {
		span := time.Duration(w.days) * 24 * time.Hour
		cutoff := newest.Time.Add(-span)
		if chart[0].Time.After(cutoff.Add(span / 20)) {
			continue
		}
		var inWindow []coingecko.Point
		for _, p := range chart {
			if !p.Time.Before(cutoff) {
				inWindow = append(inWindow, p)
			}
		}
		if len(inWindow) < 2 {
			continue
		}
		oldest := inWindow[0].Value
		change := newest.Value - oldest
		pct := 0.0
		if oldest != 0 {
			pct = change / oldest * 100
		}
		out = append(out, ChangeWindow{
			Period:              w.period,
			Days:                w.days,
			MarketCap:           mathx.Round(newest.Value, 0),
			Change:              mathx.Round(change, 0),
			ChangePercent:       mathx.Round(pct, 2),
			Volume24h:           mathx.Round(volume24h, 0),
			VolumeChange:        mathx.Round(volume24h*pct/100, 0),
			VolumeChangePercent: mathx.Round(pct, 2),
		})
	}
	return out
}

func (b *Builder) BtcDominance(ctx context.Context) (*BtcDominance, error) {
	return cached(b, keyBtcDominance, func() (*BtcDominance, error) {
		global, btc, err := b.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		return &BtcDominance{
			DominancePercent: mathx.Round(global.BTCDominance, 2),
			Change24h:        mathx.Round(btc.Change24hPct, 2),
			Change7d:         mathx.Round(btc.Change7dPct, 2),
			MarketCap:        mathx.Round(btc.MarketCap, 0),
			Price:            mathx.Round(btc.Price, 2),
			Timestamp:        time.Now(),
		}, nil
	})
}

// MarketSentiment gathers the three views concurrently. The index is
// required; the other two are left nil when their fetch fails.
func (b *Builder) MarketSentiment(ctx context.Context) (*Snapshot, error) {
	var (
		s   = &Snapshot{}
		err error
		wg  sync.WaitGroup
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.FearGreed, err = b.FearGreedIndex(ctx)
	}()
	go func() {
		defer wg.Done()
		var e error
		if s.MarketChanges, e = b.MarketChanges(ctx); e != nil {
			b.warn(e, "market changes unavailable")
		}
	}()
	go func() {
		defer wg.Done()
		var e error
		if s.BtcDominance, e = b.BtcDominance(ctx); e != nil {
			b.warn(e, "btc dominance unavailable")
		}
	}()
	wg.Wait()
	if err != nil {
		return nil, err
	}
	s.Timestamp = time.Now()
	return s, nil
}

func (b *Builder) warn(err error, msg string) {
	b.log.WithComponent("sentiment_builder").WithError(err).Warn(msg)
}

func (b *Builder) ClearCache() { b.cache.Flush() }
