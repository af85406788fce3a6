package kucoin

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/api"
	spotmarket "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/generate/spot/market"
	sdktype "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/types"

	"cryptolens/internal/symbols"
	"cryptolens/logger"
	"cryptolens/models"
	"cryptolens/reader"
)

const (
	exchangeID      = "kucoin"
	defaultEndpoint = "https://api.kucoin.com"
	defaultFee      = 0.001
)

var intervals = map[string]string{
	"1m": "1min", "3m": "3min", "5m": "5min", "15m": "15min", "30m": "30min",
	"1h": "1hour", "2h": "2hour", "4h": "4hour", "6h": "6hour", "12h": "12hour",
	"1d": "1day", "1w": "1week",
}

// Connector reads KuCoin spot market data through the universal SDK.
type Connector struct {
	market   spotmarket.MarketAPI
	hasCreds bool
	log      *logger.Log
	now      func() time.Time

	mu      sync.RWMutex
	natives map[string]string
}

func New(opts reader.Options) (reader.Connector, error) {
	endpoint := opts.BaseURL
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	pool := opts.ConnectionPool

	transportOpt := sdktype.NewTransportOptionBuilder().
		SetMaxIdleConns(pool.MaxIdleConns).
		SetMaxIdleConnsPerHost(pool.MaxConnsPerHost).
		SetMaxConnsPerHost(pool.MaxConnsPerHost).
		SetIdleConnTimeout(pool.IdleConnTimeout).
		SetTimeout(opts.Timeout).
		Build()

	option := sdktype.NewClientOptionBuilder().
		WithKey(opts.APIKey).
		WithSecret(opts.APISecret).
		WithPassphrase(opts.Passphrase).
		WithSpotEndpoint(endpoint).
		WithTransportOption(transportOpt).
		Build()

	client := api.NewClient(option)
	return &Connector{
		market:   client.RestService().GetSpotService().GetMarketAPI(),
		hasCreds: opts.APIKey != "" && opts.APISecret != "",
		log:      logger.GetLogger(),
		now:      time.Now,
		natives:  map[string]string{},
	}, nil
}

func (c *Connector) ID() string { return exchangeID }

func (c *Connector) HasCredentials() bool { return c.hasCreds }

func (c *Connector) native(symbol string) string {
	c.mu.RLock()
	id, ok := c.natives[strings.ToUpper(symbol)]
	c.mu.RUnlock()
	if ok {
		return id
	}
	return symbols.ToNative(exchangeID, symbol)
}

func translateError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "symbol") && (strings.Contains(msg, "not exist") || strings.Contains(msg, "invalid") || strings.Contains(msg, "not found")) {
		return reader.ErrSymbolNotFound
	}
	return err
}

func (c *Connector) FetchTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	req := spotmarket.NewGet24hrStatsReqBuilder().SetSymbol(c.native(symbol)).Build()
	resp, err := c.market.Get24hrStats(req, ctx)
	if err != nil {
		return nil, translateError(err)
	}
	// unknown symbols come back as an all-empty payload
	if resp == nil || (resp.Last == "" && resp.Buy == "" && resp.Sell == "") {
		return nil, reader.ErrSymbolNotFound
	}
	return &models.Ticker{
		Symbol:    symbol,
		Exchange:  exchangeID,
		Bid:       reader.ParseFloat(resp.Buy),
		Ask:       reader.ParseFloat(resp.Sell),
		Last:      reader.ParseFloat(resp.Last),
		Volume:    reader.ParseFloat(resp.VolValue),
		Timestamp: time.UnixMilli(resp.Time),
	}, nil
}

func (c *Connector) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	kind, ok := intervals[timeframe]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}
	bar, _ := models.TimeframeDuration(timeframe)
	end := c.now()
	start := end.Add(-bar * time.Duration(limit))

	req := spotmarket.NewGetKlinesReqBuilder().
		SetSymbol(c.native(symbol)).
		SetType(kind).
		SetStartAt(start.Unix()).
		SetEndAt(end.Unix()).
		Build()
	resp, err := c.market.GetKlines(req, ctx)
	if err != nil {
		return nil, translateError(err)
	}
	if resp == nil {
		return nil, nil
	}
	return convertKlines(resp.Data, limit), nil
}

// convertKlines parses [time, open, close, high, low, volume, turnover]
// rows, newest first, into at most limit ascending candles.
func convertKlines(rows [][]string, limit int) []models.Candle {
	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		sec, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		candles = append(candles, models.Candle{
			Time:   time.Unix(sec, 0),
			Open:   reader.ParseFloat(row[1]),
			Close:  reader.ParseFloat(row[2]),
			High:   reader.ParseFloat(row[3]),
			Low:    reader.ParseFloat(row[4]),
			Volume: reader.ParseFloat(row[5]),
		})
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles
}

// bookSize picks the smallest KuCoin partial book covering limit levels.
func bookSize(limit int) string {
	if limit <= 20 {
		return "20"
	}
	return "100"
}

func (c *Connector) FetchOrderBook(ctx context.Context, symbol string, limit int) (*models.OrderBook, error) {
	req := spotmarket.NewGetPartOrderBookReqBuilder().SetSymbol(c.native(symbol)).SetSize(bookSize(limit)).Build()
	resp, err := c.market.GetPartOrderBook(req, ctx)
	if err != nil {
		return nil, translateError(err)
	}
	if resp == nil {
		return nil, reader.ErrSymbolNotFound
	}
	book := &models.OrderBook{
		Symbol:    symbol,
		Exchange:  exchangeID,
		Bids:      reader.ParseLevels(resp.Bids),
		Asks:      reader.ParseLevels(resp.Asks),
		Timestamp: time.UnixMilli(resp.Time),
	}
	if limit > 0 {
		if len(book.Bids) > limit {
			book.Bids = book.Bids[:limit]
		}
		if len(book.Asks) > limit {
			book.Asks = book.Asks[:limit]
		}
	}
	return book, nil
}

func (c *Connector) LoadMarkets(ctx context.Context) (map[string]models.Market, error) {
	resp, err := c.market.GetAllSymbols(spotmarket.NewGetAllSymbolsReqBuilder().Build(), ctx)
	if err != nil {
		return nil, translateError(err)
	}
	if resp == nil {
		return map[string]models.Market{}, nil
	}

	markets := make(map[string]models.Market, len(resp.Data))
	natives := make(map[string]string, len(resp.Data))
	for _, s := range resp.Data {
		if s.BaseCurrency == "" || s.QuoteCurrency == "" {
			continue
		}
		unified := models.UnifiedSymbol(s.BaseCurrency, s.QuoteCurrency)
		markets[unified] = models.Market{
			ID:     s.Symbol,
			Symbol: unified,
			Base:   strings.ToUpper(s.BaseCurrency),
			Quote:  strings.ToUpper(s.QuoteCurrency),
			Active: s.EnableTrading,
			Maker:  defaultFee,
			Taker:  defaultFee,
			Limits: models.Limits{
				Amount: models.MinMax{Min: reader.ParseFloat(s.BaseMinSize), Max: reader.ParseFloat(s.BaseMaxSize)},
				Price:  models.MinMax{Min: reader.ParseFloat(s.PriceIncrement)},
				Cost:   models.MinMax{Min: reader.ParseFloat(s.QuoteMinSize), Max: reader.ParseFloat(s.QuoteMaxSize)},
			},
		}
		natives[unified] = s.Symbol
	}

	c.mu.Lock()
	c.natives = natives
	c.mu.Unlock()

	c.log.WithComponent("kucoin_connector").WithFields(logger.Fields{"markets": len(markets)}).Debug("loaded markets")
	return markets, nil
}
