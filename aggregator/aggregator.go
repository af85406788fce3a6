// Package aggregator is the cache-through market-data layer. Every
// per-exchange failure is logged and turned into a nil result so that
// multi-exchange callers stay resilient.
package aggregator

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cryptolens/config"
	"cryptolens/internal/cache"
	"cryptolens/internal/exchange"
	"cryptolens/logger"
	"cryptolens/models"
	"cryptolens/reader"
)

const (
	DefaultTimeframe = "1h"
	DefaultLimit     = 24
)

type Aggregator struct {
	pool   *exchange.Pool
	caches *cache.Layer
	assets map[string]config.AssetOverride
	log    *logger.Log
}

func New(pool *exchange.Pool, caches *cache.Layer, assets map[string]config.AssetOverride) *Aggregator {
	if assets == nil {
		assets = map[string]config.AssetOverride{}
	}
	return &Aggregator{pool: pool, caches: caches, assets: assets, log: logger.GetLogger()}
}

// Pool exposes the connector pool for analytics that need exchange lists.
func (a *Aggregator) Pool() *exchange.Pool { return a.pool }

func tickerKey(ex, symbol string) string { return "ticker:" + ex + ":" + symbol }

func ohlcvKey(ex, symbol, timeframe string, limit int) string {
	return "ohlcv:" + ex + ":" + symbol + ":" + timeframe + ":" + itoa(limit)
}

// fetchFailed logs a per-exchange failure. Unsupported symbols are
// expected and stay at debug.
func (a *Aggregator) fetchFailed(err error, op, ex, symbol string) {
	entry := a.log.WithComponent("aggregator").WithFields(logger.Fields{
		"operation": op,
		"exchange":  ex,
		"symbol":    symbol,
	})
	if errors.Is(err, reader.ErrSymbolNotFound) {
		entry.Debug("symbol not supported on exchange")
		return
	}
	entry.WithError(err).Warn("exchange fetch failed")
}

// finite maps NaN, Inf and negative readings to 0.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// GetTickerFromExchange returns the cached quote or fetches it. Nil means
// the exchange could not answer.
func (a *Aggregator) GetTickerFromExchange(ctx context.Context, ex, symbol string) *models.Ticker {
	key := tickerKey(ex, symbol)
	if t, ok := a.caches.Tickers.Get(key); ok {
		return t
	}

	pair, ok := a.pool.FormatSymbolForExchange(ctx, ex, symbol)
	if !ok {
		a.fetchFailed(reader.ErrSymbolNotFound, "fetch_ticker", ex, symbol)
		return nil
	}
	raw, err := exchange.Do(ctx, a.pool, ex, "fetch_ticker", pair, func(ctx context.Context, c reader.Connector) (*models.Ticker, error) {
		return c.FetchTicker(ctx, pair)
	})
	if err != nil {
		a.fetchFailed(err, "fetch_ticker", ex, symbol)
		return nil
	}
	if raw == nil {
		return nil
	}

	t := &models.Ticker{
		Symbol:    pair,
		Exchange:  ex,
		Bid:       finite(raw.Bid),
		Ask:       finite(raw.Ask),
		Last:      finite(raw.Last),
		Volume:    finite(raw.Volume),
		Timestamp: raw.Timestamp,
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	a.caches.Tickers.Set(key, t)
	return t
}

func (a *Aggregator) exchangesOrAll(exchanges []string) []string {
	if len(exchanges) == 0 {
		return a.pool.AvailableExchanges()
	}
	return exchanges
}

// GetPricesFromMultipleExchanges fetches symbol from every exchange
// concurrently. Each requested exchange has an entry; failures are nil.
func (a *Aggregator) GetPricesFromMultipleExchanges(ctx context.Context, symbol string, exchanges []string) map[string]*models.Ticker {
	exchanges = a.exchangesOrAll(exchanges)
	out := make(map[string]*models.Ticker, len(exchanges))

	var mu sync.Mutex
	var g errgroup.Group
	for _, ex := range exchanges {
		g.Go(func() error {
			t := a.GetTickerFromExchange(ctx, ex, symbol)
			mu.Lock()
			out[ex] = t
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// GetOHLCVFromExchange returns an ascending candle series or nil.
func (a *Aggregator) GetOHLCVFromExchange(ctx context.Context, ex, symbol, timeframe string, limit int) []models.Candle {
	if timeframe == "" {
		timeframe = DefaultTimeframe
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	key := ohlcvKey(ex, symbol, timeframe, limit)
	if c, ok := a.caches.Candles.Get(key); ok {
		return c
	}

	pair, ok := a.pool.FormatSymbolForExchange(ctx, ex, symbol)
	if !ok {
		a.fetchFailed(reader.ErrSymbolNotFound, "fetch_ohlcv", ex, symbol)
		return nil
	}
	raw, err := exchange.Do(ctx, a.pool, ex, "fetch_ohlcv", pair, func(ctx context.Context, c reader.Connector) ([]models.Candle, error) {
		return c.FetchOHLCV(ctx, pair, timeframe, limit)
	})
	if err != nil {
		a.fetchFailed(err, "fetch_ohlcv", ex, symbol)
		return nil
	}

	candles := normalizeCandles(raw)
	if dropped := len(raw) - len(candles); dropped > 0 {
		a.log.WithComponent("aggregator").WithFields(logger.Fields{
			"exchange": ex,
			"symbol":   symbol,
			"dropped":  dropped,
		}).Debug("dropped inconsistent candles")
	}
	a.caches.Candles.Set(key, candles)
	return candles
}

// normalizeCandles sorts ascending, drops duplicate timestamps and bars
// whose high/low do not bound open and close.
func normalizeCandles(raw []models.Candle) []models.Candle {
	out := make([]models.Candle, 0, len(raw))
	for _, c := range raw {
		c.Open, c.High, c.Low, c.Close, c.Volume = finite(c.Open), finite(c.High), finite(c.Low), finite(c.Close), finite(c.Volume)
		if c.Valid() {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	dedup := out[:0]
	for i, c := range out {
		if i > 0 && c.Time.Equal(out[i-1].Time) {
			continue
		}
		dedup = append(dedup, c)
	}
	return dedup
}

// GetOHLCV tries exchanges in order and returns the first non-empty
// series tagged with its source, or Source "none".
func (a *Aggregator) GetOHLCV(ctx context.Context, symbol, timeframe string, limit int, preferred []string) models.CandleSeries {
	for _, ex := range a.exchangesOrAll(preferred) {
		if data := a.GetOHLCVFromExchange(ctx, ex, symbol, timeframe, limit); len(data) > 0 {
			return models.CandleSeries{Data: data, Source: ex}
		}
	}
	a.log.WithComponent("aggregator").WithFields(logger.Fields{"symbol": symbol}).Warn("no OHLCV data found on any exchange")
	return models.CandleSeries{Source: "none"}
}

// FetchOrderBook reads a fresh book, ladders sorted outward from the mid.
// Books are never cached.
func (a *Aggregator) FetchOrderBook(ctx context.Context, ex, symbol string, limit int) (*models.OrderBook, error) {
	if !a.pool.Has(ex) {
		return nil, exchange.ErrExchangeNotFound
	}
	pair, ok := a.pool.FormatSymbolForExchange(ctx, ex, symbol)
	if !ok {
		return nil, reader.ErrSymbolNotFound
	}
	book, err := exchange.Do(ctx, a.pool, ex, "fetch_order_book", pair, func(ctx context.Context, c reader.Connector) (*models.OrderBook, error) {
		return c.FetchOrderBook(ctx, pair, limit)
	})
	if err != nil {
		a.fetchFailed(err, "fetch_order_book", ex, symbol)
		return nil, err
	}
	if book == nil {
		return nil, models.NewNoDataError("no order book data for %s on %s", symbol, ex)
	}
	sort.SliceStable(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	sort.SliceStable(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })
	book.Symbol, book.Exchange = pair, ex
	return book, nil
}

// PrimeTicker stores a streamed best bid/ask. An existing cached quote
// keeps its last price and volume.
func (a *Aggregator) PrimeTicker(t models.Ticker) {
	if t.Bid <= 0 || t.Ask <= 0 {
		return
	}
	key := tickerKey(t.Exchange, t.Symbol)
	next := t
	if prev, ok := a.caches.Tickers.Get(key); ok && prev != nil {
		next.Last = prev.Last
		next.Volume = prev.Volume
	} else if next.Last == 0 {
		next.Last = (t.Bid + t.Ask) / 2
	}
	if next.Timestamp.IsZero() {
		next.Timestamp = time.Now()
	}
	a.caches.Tickers.Set(key, &next)
}
