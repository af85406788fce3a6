// Package reader defines the exchange connector abstraction. Each
// subpackage implements Connector for one venue.
package reader

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cryptolens/config"
	"cryptolens/models"
)

// ErrSymbolNotFound means the exchange does not list the symbol.
var ErrSymbolNotFound = errors.New("symbol not found on exchange")

// Connector is the capability set every exchange client offers. Symbols
// are in unified BASE/QUOTE form; connectors translate to native ids.
type Connector interface {
	ID() string
	HasCredentials() bool
	FetchTicker(ctx context.Context, symbol string) (*models.Ticker, error)
	FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
	FetchOrderBook(ctx context.Context, symbol string, limit int) (*models.OrderBook, error)
	LoadMarkets(ctx context.Context) (map[string]models.Market, error)
}

// Options carry what a connector needs from configuration.
type Options struct {
	ID             string
	BaseURL        string
	APIKey         string
	APISecret      string
	Passphrase     string
	Timeout        time.Duration
	ConnectionPool config.ConnectionPoolConfig
}

// OptionsFor builds connector options for exchange id.
func OptionsFor(id string, cfg *config.Config) Options {
	ex := cfg.Exchanges[id]
	return Options{
		ID:             id,
		BaseURL:        strings.TrimRight(ex.BaseURL, "/"),
		APIKey:         ex.APIKey,
		APISecret:      ex.APISecret,
		Passphrase:     ex.Passphrase,
		Timeout:        cfg.Limits.Timeout,
		ConnectionPool: cfg.ConnectionPool,
	}
}

// Factory builds a connector from options.
type Factory func(opts Options) (Connector, error)

// NewHTTPClient returns a pooled client with the per-call timeout applied.
func NewHTTPClient(opts Options) *http.Client {
	pool := opts.ConnectionPool
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:        pool.MaxIdleConns,
		MaxIdleConnsPerHost: pool.MaxConnsPerHost,
		MaxConnsPerHost:     pool.MaxConnsPerHost,
		IdleConnTimeout:     pool.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// ParseFloat turns an exchange numeric string into a float; blanks and
// malformed values become 0.
func ParseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// ParseLevels converts [[price, amount, ...], ...] string ladders.
func ParseLevels(raw [][]string) []models.PriceLevel {
	levels := make([]models.PriceLevel, 0, len(raw))
	for _, l := range raw {
		if len(l) < 2 {
			continue
		}
		levels = append(levels, models.PriceLevel{Price: ParseFloat(l[0]), Amount: ParseFloat(l[1])})
	}
	return levels
}

// LookupMarket finds the market for a unified symbol in a listing.
func LookupMarket(markets map[string]models.Market, symbol string) (models.Market, error) {
	m, ok := markets[strings.ToUpper(symbol)]
	if !ok {
		return models.Market{}, ErrSymbolNotFound
	}
	return m, nil
}
