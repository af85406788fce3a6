// Package liquidity builds the six-factor liquidity score on top of the
// order book analyzer.
package liquidity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cryptolens/analytics/orderbook"
	"cryptolens/internal/cache"
	"cryptolens/internal/limiter"
	"cryptolens/internal/mathx"
	"cryptolens/logger"
	"cryptolens/models"
)

const (
	// BookLevels is the depth requested for every score.
	BookLevels = 50
	// DefaultAvgDailyChange is used when the caller has no volatility figure.
	DefaultAvgDailyChange = 2.5
)

type Components struct {
	Spread     Component `json:"spread"`
	Depth      Component `json:"depth"`
	Volume     Component `json:"volume"`
	Stability  Component `json:"stability"`
	Imbalance  Component `json:"imbalance"`
	Volatility Component `json:"volatility"`
}

type Overall struct {
	Score   float64 `json:"score"`
	Rating  string  `json:"rating"`
	Details string  `json:"details"`
}

type Metrics struct {
	Exchange   string     `json:"exchange"`
	Symbol     string     `json:"symbol"`
	Timestamp  time.Time  `json:"timestamp"`
	Overall    Overall    `json:"overall"`
	Components Components `json:"components"`
}

type Ranking struct {
	Symbol       string     `json:"symbol"`
	Exchanges    []*Metrics `json:"exchanges"`
	BestExchange string     `json:"bestExchange"`
	AverageScore float64    `json:"averageScore"`
	Rank         int        `json:"rank"`
}

type Scorer struct {
	books     *orderbook.Analyzer
	analytic  *limiter.Pool
	available func() []string
	cache     *cache.TTL[*Metrics]
	log       *logger.Log
}

// NewScorer builds a scorer whose cache is registered with layer when
// layer is not nil.
func NewScorer(books *orderbook.Analyzer, analytic *limiter.Pool, layer *cache.Layer, ttl time.Duration, available func() []string) *Scorer {
	c := cache.New[*Metrics](cache.LiquidityCache, ttl)
	if layer != nil {
		layer.Register(c)
	}
	return &Scorer{books: books, analytic: analytic, available: available, cache: c, log: logger.GetLogger()}
}

func cacheKey(exchange, symbol string) string { return "liquidity:" + exchange + ":" + symbol }

// Score turns order book metrics into the six-factor result.
func Score(m *orderbook.Metrics, avgDailyChange float64) *Metrics {
	a := m.Analysis
	c := Components{
		Spread:     SpreadScore(m.SpreadPercent),
		Depth:      DepthScore(a.BidDepth1Pct, a.AskDepth1Pct),
		Volume:     VolumeScore(a.TotalBidVolume + a.TotalAskVolume),
		Stability:  StabilityScore(a.BidAskRatio),
		Imbalance:  ImbalanceScore(a.VolumeImbalance),
		Volatility: VolatilityScore(avgDailyChange),
	}
	overall := computeOverall(c)
	return &Metrics{
		Exchange:  m.Exchange,
		Symbol:    m.Symbol,
		Timestamp: time.Now(),
		Overall: Overall{
			Score:   overall,
			Rating:  orderbook.Rating(overall),
			Details: "Overall liquidity assessment based on 6 metrics",
		},
		Components: c,
	}
}

// CalculateLiquidityMetrics scores symbol on exchange. A nil
// avgDailyChange uses DefaultAvgDailyChange. Results are cached per
// exchange and symbol.
func (s *Scorer) CalculateLiquidityMetrics(ctx context.Context, exchange, symbol string, avgDailyChange *float64) (*Metrics, error) {
	key := cacheKey(exchange, symbol)
	if m, ok := s.cache.Get(key); ok {
		return m, nil
	}
	change := DefaultAvgDailyChange
	if avgDailyChange != nil {
		change = *avgDailyChange
	}
	book, err := s.books.Analyze(ctx, exchange, symbol, BookLevels)
	if err != nil {
		return nil, fmt.Errorf("liquidity %s on %s: %w", symbol, exchange, err)
	}
	m := Score(book, change)
	s.cache.Set(key, m)
	return m, nil
}

// RankAssetsByLiquidity scores symbol on every exchange in parallel and
// ranks the successes by overall score.
func (s *Scorer) RankAssetsByLiquidity(ctx context.Context, symbol string, exchanges []string) (*Ranking, error) {
	if len(exchanges) == 0 && s.available != nil {
		exchanges = s.available()
	}
	var (
		mu      sync.Mutex
		results []*Metrics
		g       errgroup.Group
	)
	for _, ex := range exchanges {
		g.Go(func() error {
			var m *Metrics
			err := s.analytic.Do(ctx, func(ctx context.Context) error {
				var err error
				m, err = s.CalculateLiquidityMetrics(ctx, ex, symbol, nil)
				return err
			})
			if err != nil {
				s.log.WithComponent("liquidity_scorer").WithError(err).WithFields(logger.Fields{
					"exchange": ex,
					"symbol":   symbol,
				}).Warn("liquidity scoring failed")
				return nil
			}
			mu.Lock()
			results = append(results, m)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(results) == 0 {
		return nil, models.NewNoDataError("no liquidity data for %s", symbol)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Overall.Score != results[j].Overall.Score {
			return results[i].Overall.Score > results[j].Overall.Score
		}
		return results[i].Exchange < results[j].Exchange
	})
	scores := make([]float64, len(results))
	for i, m := range results {
		scores[i] = m.Overall.Score
	}
	return &Ranking{
		Symbol:       symbol,
		Exchanges:    results,
		BestExchange: results[0].Exchange,
		AverageScore: mathx.Round(mathx.Mean(scores), 0),
		Rank:         len(results),
	}, nil
}

// Warnings lists every weak area of m. Several may apply at once.
func Warnings(m *Metrics) []string {
	c := m.Components
	warnings := []string{}
	if m.Overall.Score < 50 {
		warnings = append(warnings, fmt.Sprintf("Poor overall liquidity: %g/100", m.Overall.Score))
	}
	if c.Spread.Score < 40 {
		warnings = append(warnings, "Wide spread: "+c.Spread.Details)
	}
	if c.Depth.Score < 40 {
		warnings = append(warnings, "Shallow depth: "+c.Depth.Details)
	}
	if c.Imbalance.Score < 30 {
		warnings = append(warnings, "Strong buy/sell pressure: "+c.Imbalance.Details)
	}
	if c.Volatility.Score < 30 {
		warnings = append(warnings, "High volatility: "+c.Volatility.Details)
	}
	return warnings
}

func (s *Scorer) ClearCache() { s.cache.Flush() }
