// Package engine wires the connector pool, caches, concurrency pools and
// analytics into one value a route layer or CLI can hold.
package engine

import (
	"fmt"

	"cryptolens/aggregator"
	"cryptolens/analytics/arbitrage"
	"cryptolens/analytics/historical"
	"cryptolens/analytics/liquidity"
	"cryptolens/analytics/orderbook"
	"cryptolens/analytics/sentiment"
	"cryptolens/config"
	"cryptolens/internal/cache"
	"cryptolens/internal/exchange"
	"cryptolens/internal/limiter"
	"cryptolens/internal/metrics"
	"cryptolens/logger"
	"cryptolens/reader"
	"cryptolens/reader/coingecko"
)

type Engine struct {
	Config     *config.Config
	Caches     *cache.Layer
	Raw        *limiter.Pool
	Analytic   *limiter.Pool
	Exchanges  *exchange.Pool
	Market     *aggregator.Aggregator
	OrderBook  *orderbook.Analyzer
	Liquidity  *liquidity.Scorer
	Arbitrage  *arbitrage.Detector
	Historical *historical.Analyzer
	Sentiment  *sentiment.Builder
	Counters   *metrics.Counters
}

type options struct {
	factories map[string]reader.Factory
	sentiment sentiment.Source
}

type Option func(*options)

// WithFactories replaces the connector constructors, keyed by exchange id.
func WithFactories(f map[string]reader.Factory) Option {
	return func(o *options) { o.factories = f }
}

// WithSentimentSource replaces the CoinGecko client.
func WithSentimentSource(s sentiment.Source) Option {
	return func(o *options) { o.sentiment = s }
}

// New builds an engine. Exchanges that fail to construct are skipped; the
// engine only fails when cfg is nil.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("engine: nil config")
	}
	o := options{factories: exchange.DefaultFactories()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sentiment == nil {
		o.sentiment = coingecko.New(cfg.Sentiment, reader.Options{
			ID:             "coingecko",
			Timeout:        cfg.Limits.Timeout,
			ConnectionPool: cfg.ConnectionPool,
		}, 0)
	}

	layer := cache.NewLayer(cfg.Cache)
	raw := limiter.New("raw", cfg.Limits.RawConcurrency)
	analytic := limiter.New("analytic", cfg.Limits.AnalyticConcurrency)
	pool := exchange.NewPool(cfg, raw, layer.Markets, o.factories)
	market := aggregator.New(pool, layer, cfg.Assets)
	books := orderbook.NewAnalyzer(market, analytic, pool.AvailableExchanges)

	e := &Engine{
		Config:     cfg,
		Caches:     layer,
		Raw:        raw,
		Analytic:   analytic,
		Exchanges:  pool,
		Market:     market,
		OrderBook:  books,
		Liquidity:  liquidity.NewScorer(books, analytic, layer, cfg.Cache.LiquidityTTL, pool.AvailableExchanges),
		Arbitrage:  arbitrage.NewDetector(market, analytic, layer, cfg.Cache.ArbitrageTTL, pool.AvailableExchanges),
		Historical: historical.NewAnalyzer(market),
		Sentiment:  sentiment.NewBuilder(o.sentiment, layer, cfg.Cache.SentimentTTL),
		Counters:   metrics.NewCounters(),
	}

	logger.GetLogger().WithComponent("engine").WithFields(logger.Fields{
		"exchanges":            pool.AvailableExchanges(),
		"raw_concurrency":      raw.Size(),
		"analytic_concurrency": analytic.Size(),
	}).Info("engine ready")
	return e, nil
}

// CacheStats reports the entry count of every cache.
func (e *Engine) CacheStats() cache.Stats { return e.Caches.Stats() }

// ClearCaches flushes every cache, derived ones included.
func (e *Engine) ClearCaches() {
	e.Caches.Clear()
	logger.GetLogger().WithComponent("engine").Info("all caches cleared")
}

// ReportStats feeds the periodic log report.
func (e *Engine) ReportStats() logger.Fields {
	out := logger.Fields{
		"raw_in_flight":      e.Raw.InFlight(),
		"analytic_in_flight": e.Analytic.InFlight(),
	}
	for name, n := range e.CacheStats() {
		out["cache_"+name] = n
	}
	for name, n := range e.Counters.Snapshot() {
		out["count_"+name] = n
	}
	return out
}

// Close detaches the engine's metric counters.
func (e *Engine) Close() { e.Counters.Close() }
