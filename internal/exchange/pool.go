// Package exchange owns the connector pool: one connector per enabled
// exchange, each paced by its own rate limiter and all sharing the
// process-wide raw call pool.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"cryptolens/config"
	"cryptolens/internal/cache"
	"cryptolens/internal/limiter"
	"cryptolens/internal/metrics"
	ratemetrics "cryptolens/internal/metrics/rate"
	"cryptolens/internal/symbols"
	"cryptolens/logger"
	"cryptolens/models"
	"cryptolens/reader"
	"cryptolens/reader/binance"
	"cryptolens/reader/bybit"
	"cryptolens/reader/kucoin"
	"cryptolens/reader/okx"
)

// ErrExchangeNotFound means the exchange is not configured or failed to
// construct.
var ErrExchangeNotFound = errors.New("exchange not initialized")

const (
	defaultAPILimit = 60
	minDelay        = 50 * time.Millisecond
	// used when an exchange has no configuration entry at all
	fallbackDelay = 100 * time.Millisecond
)

// DefaultFactories maps exchange ids to their connector constructors.
func DefaultFactories() map[string]reader.Factory {
	return map[string]reader.Factory{
		"binance": binance.New,
		"bybit":   bybit.New,
		"kucoin":  kucoin.New,
		"okx":     okx.New,
	}
}

// RateLimitDelay converts a requests-per-minute budget into the minimum
// spacing between calls: max(1000/(apiLimit/60), 50) ms.
func RateLimitDelay(apiLimit int) time.Duration {
	if apiLimit <= 0 {
		apiLimit = defaultAPILimit
	}
	perSecond := float64(apiLimit) / 60
	d := time.Duration(1000 / perSecond * float64(time.Millisecond))
	if d < minDelay {
		return minDelay
	}
	return d
}

type connection struct {
	id             string
	connector      reader.Connector
	delay          time.Duration
	pacer          *rate.Limiter
	supportedPairs []string
}

type Pool struct {
	conns       map[string]*connection
	raw         *limiter.Pool
	markets     *cache.TTL[map[string]models.Market]
	timeout     time.Duration
	probeSymbol string
	log         *logger.Log
}

// NewPool builds a connector for every enabled exchange that has a
// factory. Exchanges that fail to construct are logged and skipped.
func NewPool(cfg *config.Config, raw *limiter.Pool, markets *cache.TTL[map[string]models.Market], factories map[string]reader.Factory) *Pool {
	p := &Pool{
		conns:       map[string]*connection{},
		raw:         raw,
		markets:     markets,
		timeout:     cfg.Limits.Timeout,
		probeSymbol: cfg.Health.ProbeSymbol,
		log:         logger.GetLogger(),
	}
	if p.probeSymbol == "" {
		p.probeSymbol = "BTC/USDT"
	}
	log := p.log.WithComponent("exchange_pool")

	for _, id := range cfg.ExchangeIDs() {
		ex := cfg.Exchanges[id]
		factory, ok := factories[id]
		if !ok {
			log.WithFields(logger.Fields{"exchange": id}).Error("no connector available for exchange")
			continue
		}
		conn, err := factory(reader.OptionsFor(id, cfg))
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"exchange": id}).Error("failed to initialize exchange")
			continue
		}
		delay := RateLimitDelay(ex.APILimit)
		p.conns[id] = &connection{
			id:             id,
			connector:      conn,
			delay:          delay,
			pacer:          rate.NewLimiter(rate.Every(delay), 1),
			supportedPairs: ex.SupportedPairs,
		}
		log.WithFields(logger.Fields{"exchange": id, "delay_ms": delay.Milliseconds()}).Info("exchange initialized")
	}
	log.WithFields(logger.Fields{"exchanges": len(p.conns)}).Info("connector pool ready")
	return p
}

// Raw is the shared raw call pool.
func (p *Pool) Raw() *limiter.Pool { return p.raw }

// Has reports whether exchange is available.
func (p *Pool) Has(exchange string) bool {
	_, ok := p.conns[exchange]
	return ok
}

// Delay returns the call spacing used for exchange.
func (p *Pool) Delay(exchange string) time.Duration {
	if c, ok := p.conns[exchange]; ok {
		return c.delay
	}
	return fallbackDelay
}

// AvailableExchanges lists the exchanges that constructed successfully.
func (p *Pool) AvailableExchanges() []string {
	ids := make([]string, 0, len(p.conns))
	for id := range p.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type Status struct {
	Connected        bool     `json:"connected"`
	HasCredentials   bool     `json:"hasCredentials"`
	SupportedPairs   []string `json:"supportedPairs"`
	RateLimitDelayMS int64    `json:"rateLimitDelay"`
}

func (p *Pool) ExchangeStatus() map[string]Status {
	out := make(map[string]Status, len(p.conns))
	for id, c := range p.conns {
		out[id] = Status{
			Connected:        c.connector != nil,
			HasCredentials:   c.connector.HasCredentials(),
			SupportedPairs:   c.supportedPairs,
			RateLimitDelayMS: c.delay.Milliseconds(),
		}
	}
	return out
}

// Call runs fn against exchange's connector while holding a raw slot,
// after the exchange's pacing delay, under the per-call timeout.
func (p *Pool) Call(ctx context.Context, exchange, op, symbol string, fn func(ctx context.Context, c reader.Connector) error) error {
	conn, ok := p.conns[exchange]
	if !ok {
		return fmt.Errorf("%w: %s", ErrExchangeNotFound, exchange)
	}

	if err := p.raw.Acquire(ctx); err != nil {
		return err
	}
	defer p.raw.Release()

	if err := conn.pacer.Wait(ctx); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := fn(callCtx, conn.connector)
	elapsed := time.Since(start)

	metrics.RecordExchangeLatency(exchange, op, elapsed)
	logger.LogPerformanceEntry(p.log.WithComponent("exchange_pool"), "exchange_pool", op, elapsed, logger.Fields{
		"exchange": exchange,
		"symbol":   symbol,
	})

	if err != nil && !errors.Is(err, reader.ErrSymbolNotFound) {
		metrics.RecordExchangeError(exchange, op)
		ratemetrics.ReportLimitFromMessage(p.log, exchange, symbol, op, err.Error())
	}
	return err
}

// Do is Call for functions returning a value.
func Do[T any](ctx context.Context, p *Pool, exchange, op, symbol string, fn func(ctx context.Context, c reader.Connector) (T, error)) (T, error) {
	var out T
	err := p.Call(ctx, exchange, op, symbol, func(ctx context.Context, c reader.Connector) error {
		v, err := fn(ctx, c)
		out = v
		return err
	})
	return out, err
}

func marketsKey(exchange string) string { return "markets:" + exchange }

// Markets returns exchange's listing keyed by unified symbol, loading it
// through the raw pool on a cache miss.
func (p *Pool) Markets(ctx context.Context, exchange string) (map[string]models.Market, error) {
	key := marketsKey(exchange)
	if m, ok := p.markets.Get(key); ok {
		return m, nil
	}
	m, err := Do(ctx, p, exchange, "load_markets", "", func(ctx context.Context, c reader.Connector) (map[string]models.Market, error) {
		return c.LoadMarkets(ctx)
	})
	if err != nil {
		return nil, err
	}
	p.markets.Set(key, m)
	logger.LogDataFlowEntry(p.log.WithComponent("exchange_pool"), exchange, p.markets.Name(), len(m), "markets")
	return m, nil
}

// FormatSymbolForExchange maps symbol to a pair listed on exchange. A
// symbol that already names a pair is returned unchanged; a bare base
// asset is paired with the first listed quote in symbols.QuotePriority.
// ok is false when the exchange cannot serve it.
func (p *Pool) FormatSymbolForExchange(ctx context.Context, exchange, symbol string) (string, bool) {
	if !p.Has(exchange) {
		return "", false
	}
	if symbols.HasPairSeparator(symbol) {
		return symbol, true
	}
	markets, err := p.Markets(ctx, exchange)
	if err != nil {
		p.log.WithComponent("exchange_pool").WithError(err).WithFields(logger.Fields{
			"exchange": exchange,
			"symbol":   symbol,
		}).Warn("failed to load markets for symbol lookup")
		return "", false
	}
	return symbols.ResolvePair(strings.ToUpper(symbol), func(pair string) bool {
		_, listed := markets[pair]
		return listed
	})
}
