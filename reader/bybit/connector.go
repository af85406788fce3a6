package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	bybit "github.com/bybit-exchange/bybit.go.api"

	"cryptolens/internal/symbols"
	"cryptolens/logger"
	"cryptolens/models"
	"cryptolens/reader"
)

const (
	exchangeID = "bybit"
	category   = "spot"
	defaultFee = 0.001
	maxDepth   = 200
)

var intervals = map[string]string{
	"1m": "1", "3m": "3", "5m": "5", "15m": "15", "30m": "30",
	"1h": "60", "2h": "120", "4h": "240", "6h": "360", "12h": "720",
	"1d": "D", "1w": "W",
}

// Connector reads Bybit V5 spot market data through bybit.go.api.
type Connector struct {
	client   *bybit.Client
	hasCreds bool
	log      *logger.Log

	mu      sync.RWMutex
	natives map[string]string
}

func New(opts reader.Options) (reader.Connector, error) {
	clientOpts := []bybit.ClientOption{}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, bybit.WithBaseURL(opts.BaseURL))
	}
	client := bybit.NewBybitHttpClient(opts.APIKey, opts.APISecret, clientOpts...)
	client.HTTPClient = reader.NewHTTPClient(opts)

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

// decode checks the V5 envelope and unmarshals Result into out.
func decode(resp *bybit.ServerResponse, out interface{}) error {
	if resp == nil {
		return fmt.Errorf("bybit: empty response")
	}
	if resp.RetCode != 0 {
		if resp.RetCode == 10001 && strings.Contains(strings.ToLower(resp.RetMsg), "symbol") {
			return reader.ErrSymbolNotFound
		}
		return fmt.Errorf("bybit api error %d: %s", resp.RetCode, resp.RetMsg)
	}
	payload, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("bybit: marshal result: %w", err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("bybit: decode result: %w", err)
	}
	return nil
}

type tickersResult struct {
	List []struct {
		Symbol      string `json:"symbol"`
		Bid1Price   string `json:"bid1Price"`
		Ask1Price   string `json:"ask1Price"`
		LastPrice   string `json:"lastPrice"`
		Turnover24h string `json:"turnover24h"`
	} `json:"list"`
}

func (c *Connector) FetchTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	resp, err := c.client.NewUtaBybitServiceWithParams(map[string]interface{}{
		"category": category,
		"symbol":   c.native(symbol),
	}).GetMarketTickers(ctx)
	if err != nil {
		return nil, err
	}
	var res tickersResult
	if err := decode(resp, &res); err != nil {
		return nil, err
	}
	if len(res.List) == 0 {
		return nil, reader.ErrSymbolNotFound
	}
	t := res.List[0]
	ts := time.Now()
	if resp.Time > 0 {
		ts = time.UnixMilli(resp.Time)
	}
	return &models.Ticker{
		Symbol:    symbol,
		Exchange:  exchangeID,
		Bid:       reader.ParseFloat(t.Bid1Price),
		Ask:       reader.ParseFloat(t.Ask1Price),
		Last:      reader.ParseFloat(t.LastPrice),
		Volume:    reader.ParseFloat(t.Turnover24h),
		Timestamp: ts,
	}, nil
}

type klineResult struct {
	List [][]string `json:"list"`
}

func (c *Connector) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	interval, ok := intervals[timeframe]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}
	resp, err := c.client.NewUtaBybitServiceWithParams(map[string]interface{}{
		"category": category,
		"symbol":   c.native(symbol),
		"interval": interval,
		"limit":    limit,
	}).GetMarketKline(ctx)
	if err != nil {
		return nil, err
	}
	var res klineResult
	if err := decode(resp, &res); err != nil {
		return nil, err
	}

	candles := make([]models.Candle, 0, len(res.List))
	for _, row := range res.List {
		if len(row) < 6 {
			continue
		}
		start, _ := strconv.ParseInt(row[0], 10, 64)
		candles = append(candles, models.Candle{
			Time:   time.UnixMilli(start),
			Open:   reader.ParseFloat(row[1]),
			High:   reader.ParseFloat(row[2]),
			Low:    reader.ParseFloat(row[3]),
			Close:  reader.ParseFloat(row[4]),
			Volume: reader.ParseFloat(row[5]),
		})
	}
	// bybit lists newest first
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	return candles, nil
}

type orderBookResult struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
	TS     int64      `json:"ts"`
}

func (c *Connector) FetchOrderBook(ctx context.Context, symbol string, limit int) (*models.OrderBook, error) {
	if limit <= 0 || limit > maxDepth {
		limit = maxDepth
	}
	resp, err := c.client.NewUtaBybitServiceWithParams(map[string]interface{}{
		"category": category,
		"symbol":   c.native(symbol),
		"limit":    limit,
	}).GetOrderBookInfo(ctx)
	if err != nil {
		return nil, err
	}
	var res orderBookResult
	if err := decode(resp, &res); err != nil {
		return nil, err
	}
	if res.Symbol == "" && len(res.Bids) == 0 && len(res.Asks) == 0 {
		return nil, reader.ErrSymbolNotFound
	}
	return &models.OrderBook{
		Symbol:    symbol,
		Exchange:  exchangeID,
		Bids:      reader.ParseLevels(res.Bids),
		Asks:      reader.ParseLevels(res.Asks),
		Timestamp: time.UnixMilli(res.TS),
	}, nil
}

type instrumentsResult struct {
	List []struct {
		Symbol        string `json:"symbol"`
		BaseCoin      string `json:"baseCoin"`
		QuoteCoin     string `json:"quoteCoin"`
		Status        string `json:"status"`
		LotSizeFilter struct {
			MinOrderQty string `json:"minOrderQty"`
			MaxOrderQty string `json:"maxOrderQty"`
			MinOrderAmt string `json:"minOrderAmt"`
			MaxOrderAmt string `json:"maxOrderAmt"`
		} `json:"lotSizeFilter"`
		PriceFilter struct {
			TickSize string `json:"tickSize"`
		} `json:"priceFilter"`
	} `json:"list"`
}

func (c *Connector) LoadMarkets(ctx context.Context) (map[string]models.Market, error) {
	resp, err := c.client.NewUtaBybitServiceWithParams(map[string]interface{}{
		"category": category,
	}).GetInstrumentInfo(ctx)
	if err != nil {
		return nil, err
	}
	var res instrumentsResult
	if err := decode(resp, &res); err != nil {
		return nil, err
	}

	markets := make(map[string]models.Market, len(res.List))
	natives := make(map[string]string, len(res.List))
	for _, in := range res.List {
		if in.BaseCoin == "" || in.QuoteCoin == "" {
			continue
		}
		unified := models.UnifiedSymbol(in.BaseCoin, in.QuoteCoin)
		markets[unified] = models.Market{
			ID:     in.Symbol,
			Symbol: unified,
			Base:   strings.ToUpper(in.BaseCoin),
			Quote:  strings.ToUpper(in.QuoteCoin),
			Active: in.Status == "Trading",
			Maker:  defaultFee,
			Taker:  defaultFee,
			Limits: models.Limits{
				Amount: models.MinMax{
					Min: reader.ParseFloat(in.LotSizeFilter.MinOrderQty),
					Max: reader.ParseFloat(in.LotSizeFilter.MaxOrderQty),
				},
				Price: models.MinMax{Min: reader.ParseFloat(in.PriceFilter.TickSize)},
				Cost: models.MinMax{
					Min: reader.ParseFloat(in.LotSizeFilter.MinOrderAmt),
					Max: reader.ParseFloat(in.LotSizeFilter.MaxOrderAmt),
				},
			},
		}
		natives[unified] = in.Symbol
	}

	c.mu.Lock()
	c.natives = natives
	c.mu.Unlock()

	c.log.WithComponent("bybit_connector").WithFields(logger.Fields{"markets": len(markets)}).Debug("loaded markets")
	return markets, nil
}
