// Package fake provides an in-memory reader.Connector for tests.
package fake

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"cryptolens/models"
	"cryptolens/reader"
)

// Connector serves canned market data and counts calls per operation.
// A non-nil Err fails every call.
type Connector struct {
	Name  string
	Creds bool
	Err   error
	Delay time.Duration

	mu      sync.Mutex
	tickers map[string]models.Ticker
	candles map[string][]models.Candle
	books   map[string]models.OrderBook
	markets map[string]models.Market
	calls   map[string]int
}

func New(id string) *Connector {
	return &Connector{
		Name:    id,
		tickers: map[string]models.Ticker{},
		candles: map[string][]models.Candle{},
		books:   map[string]models.OrderBook{},
		calls:   map[string]int{},
	}
}

// Factory returns a reader.Factory handing out c.
func Factory(c *Connector) reader.Factory {
	return func(reader.Options) (reader.Connector, error) { return c, nil }
}

func (c *Connector) WithTicker(symbol string, bid, ask, last, volume float64) *Connector {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tickers[strings.ToUpper(symbol)] = models.Ticker{
		Symbol: symbol, Exchange: c.Name, Bid: bid, Ask: ask, Last: last, Volume: volume, Timestamp: time.Unix(1700000000, 0),
	}
	return c
}

func (c *Connector) WithCandles(symbol string, candles []models.Candle) *Connector {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.candles[strings.ToUpper(symbol)] = candles
	return c
}

func (c *Connector) WithBook(symbol string, bids, asks []models.PriceLevel) *Connector {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.books[strings.ToUpper(symbol)] = models.OrderBook{Symbol: symbol, Exchange: c.Name, Bids: bids, Asks: asks}
	return c
}

// WithMarket registers a listing entry. Without any, LoadMarkets lists
// every symbol that has data.
func (c *Connector) WithMarket(m models.Market) *Connector {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.markets == nil {
		c.markets = map[string]models.Market{}
	}
	c.markets[strings.ToUpper(m.Symbol)] = m
	return c
}

// Calls returns how many times op ran; op is the method name.
func (c *Connector) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

func (c *Connector) begin(ctx context.Context, op string) error {
	c.mu.Lock()
	c.calls[op]++
	c.mu.Unlock()
	if c.Delay > 0 {
		select {
		case <-time.After(c.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.Err
}

func (c *Connector) ID() string { return c.Name }

func (c *Connector) HasCredentials() bool { return c.Creds }

func (c *Connector) FetchTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	if err := c.begin(ctx, "FetchTicker"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tickers[strings.ToUpper(symbol)]
	if !ok {
		return nil, reader.ErrSymbolNotFound
	}
	return &t, nil
}

func (c *Connector) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	if err := c.begin(ctx, "FetchOHLCV"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	series, ok := c.candles[strings.ToUpper(symbol)]
	if !ok {
		return nil, reader.ErrSymbolNotFound
	}
	if limit > 0 && len(series) > limit {
		series = series[len(series)-limit:]
	}
	out := make([]models.Candle, len(series))
	copy(out, series)
	return out, nil
}

func (c *Connector) FetchOrderBook(ctx context.Context, symbol string, limit int) (*models.OrderBook, error) {
	if err := c.begin(ctx, "FetchOrderBook"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	book, ok := c.books[strings.ToUpper(symbol)]
	if !ok {
		return nil, reader.ErrSymbolNotFound
	}
	if limit > 0 {
		if len(book.Bids) > limit {
			book.Bids = book.Bids[:limit]
		}
		if len(book.Asks) > limit {
			book.Asks = book.Asks[:limit]
		}
	}
	return &book, nil
}

func (c *Connector) LoadMarkets(ctx context.Context) (map[string]models.Market, error) {
	if err := c.begin(ctx, "LoadMarkets"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]models.Market{}
	if c.markets != nil {
		for k, m := range c.markets {
			out[k] = m
		}
		return out, nil
	}
	for _, sym := range c.symbolsLocked() {
		base, quote, _ := models.SplitSymbol(sym)
		out[sym] = models.Market{ID: base + quote, Symbol: sym, Base: base, Quote: quote, Active: true, Maker: 0.001, Taker: 0.001}
	}
	return out, nil
}

func (c *Connector) symbolsLocked() []string {
	seen := map[string]bool{}
	for s := range c.tickers {
		seen[s] = true
	}
	for s := range c.candles {
		seen[s] = true
	}
	for s := range c.books {
		seen[s] = true
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
