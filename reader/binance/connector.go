package binance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"

	"cryptolens/internal/symbols"
	"cryptolens/logger"
	"cryptolens/models"
	"cryptolens/reader"
)

const (
	exchangeID = "binance"
	// standard spot fee tier
	defaultFee = 0.001
	// Binance "Invalid symbol." error code.
	codeInvalidSymbol = -1121
)

// Connector reads Binance spot market data through go-binance.
type Connector struct {
	client   *gobinance.Client
	hasCreds bool
	log      *logger.Log

	mu      sync.RWMutex
	natives map[string]string // unified -> native, filled by LoadMarkets
}

// New builds a spot connector. opts.BaseURL overrides the API host.
func New(opts reader.Options) (reader.Connector, error) {
	client := gobinance.NewClient(opts.APIKey, opts.APISecret)
	client.HTTPClient = reader.NewHTTPClient(opts)
	if opts.BaseURL != "" {
		client.BaseURL = opts.BaseURL
	}

	return &Connector{
		client:   client,
		hasCreds: opts.APIKey != "" && opts.APISecret != "",
		log:      logger.GetLogger(),
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

func (c *Connector) FetchTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	stats, err := c.client.NewListPriceChangeStatsService().Symbol(c.native(symbol)).Do(ctx)
	if err != nil {
		return nil, translateError(err)
	}
	if len(stats) == 0 {
		return nil, reader.ErrSymbolNotFound
	}
	s := stats[0]
	return &models.Ticker{
		Symbol:    symbol,
		Exchange:  exchangeID,
		Bid:       reader.ParseFloat(s.BidPrice),
		Ask:       reader.ParseFloat(s.AskPrice),
		Last:      reader.ParseFloat(s.LastPrice),
		Volume:    reader.ParseFloat(s.QuoteVolume),
		Timestamp: time.UnixMilli(s.CloseTime),
	}, nil
}

func (c *Connector) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	if _, err := models.TimeframeDuration(timeframe); err != nil {
		return nil, err
	}
	klines, err := c.client.NewKlinesService().
		Symbol(c.native(symbol)).
		Interval(timeframe).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, translateError(err)
	}

	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, models.Candle{
			Time:   time.UnixMilli(k.OpenTime),
			Open:   reader.ParseFloat(k.Open),
			High:   reader.ParseFloat(k.High),
			Low:    reader.ParseFloat(k.Low),
			Close:  reader.ParseFloat(k.Close),
			Volume: reader.ParseFloat(k.Volume),
		})
	}
	return candles, nil
}

func (c *Connector) FetchOrderBook(ctx context.Context, symbol string, limit int) (*models.OrderBook, error) {
	res, err := c.client.NewDepthService().Symbol(c.native(symbol)).Limit(limit).Do(ctx)
	if err != nil {
		return nil, translateError(err)
	}

	book := &models.OrderBook{
		Symbol:    symbol,
		Exchange:  exchangeID,
		Bids:      make([]models.PriceLevel, 0, len(res.Bids)),
		Asks:      make([]models.PriceLevel, 0, len(res.Asks)),
		Timestamp: time.Now(),
	}
	for _, b := range res.Bids {
		book.Bids = append(book.Bids, models.PriceLevel{Price: reader.ParseFloat(b.Price), Amount: reader.ParseFloat(b.Quantity)})
	}
	for _, a := range res.Asks {
		book.Asks = append(book.Asks, models.PriceLevel{Price: reader.ParseFloat(a.Price), Amount: reader.ParseFloat(a.Quantity)})
	}
	return book, nil
}

func (c *Connector) LoadMarkets(ctx context.Context) (map[string]models.Market, error) {
	info, err := c.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, translateError(err)
	}

	markets := make(map[string]models.Market, len(info.Symbols))
	natives := make(map[string]string, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.BaseAsset == "" || s.QuoteAsset == "" {
			continue
		}
		unified := models.UnifiedSymbol(s.BaseAsset, s.QuoteAsset)
		markets[unified] = models.Market{
			ID:     s.Symbol,
			Symbol: unified,
			Base:   strings.ToUpper(s.BaseAsset),
			Quote:  strings.ToUpper(s.QuoteAsset),
			Active: s.Status == "TRADING",
			Maker:  defaultFee,
			Taker:  defaultFee,
			Limits: limitsFromFilters(s.Filters),
		}
		natives[unified] = s.Symbol
	}

	c.mu.Lock()
	c.natives = natives
	c.mu.Unlock()

	c.log.WithComponent("binance_connector").WithFields(logger.Fields{"markets": len(markets)}).Debug("loaded markets")
	return markets, nil
}

// limitsFromFilters reads LOT_SIZE, PRICE_FILTER and (MIN_)NOTIONAL.
func limitsFromFilters(filters []map[string]interface{}) models.Limits {
	var l models.Limits
	for _, f := range filters {
		switch f["filterType"] {
		case "LOT_SIZE":
			l.Amount = models.MinMax{Min: floatField(f, "minQty"), Max: floatField(f, "maxQty")}
		case "PRICE_FILTER":
			l.Price = models.MinMax{Min: floatField(f, "minPrice"), Max: floatField(f, "maxPrice")}
		case "NOTIONAL":
			l.Cost = models.MinMax{Min: floatField(f, "minNotional"), Max: floatField(f, "maxNotional")}
		case "MIN_NOTIONAL":
			l.Cost.Min = floatField(f, "minNotional")
		}
	}
	return l
}

func floatField(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case string:
		return reader.ParseFloat(v)
	case float64:
		return v
	default:
		return 0
	}
}

func translateError(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == codeInvalidSymbol {
			return reader.ErrSymbolNotFound
		}
		return fmt.Errorf("binance api error %d: %s", apiErr.Code, apiErr.Message)
	}
	return err
}
