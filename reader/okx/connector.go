package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"cryptolens/internal/symbols"
	"cryptolens/logger"
	"cryptolens/models"
	"cryptolens/reader"
)

const (
	exchangeID      = "okx"
	defaultEndpoint = "https://www.okx.com"
	maxDepth        = 400
	maxCandles      = 300
	// public market endpoints allow 20 requests per 2 seconds
	requestsPerSecond = 10
)

var bars = map[string]string{
	"1m": "1m", "3m": "3m", "5m": "5m", "15m": "15m", "30m": "30m",
	"1h": "1H", "2h": "2H", "4h": "4H", "6h": "6Hutc", "12h": "12Hutc",
	"1d": "1Dutc", "1w": "1Wutc",
}

// Connector reads OKX v5 spot market data over the public REST API.
type Connector struct {
	baseURL  string
	client   *http.Client
	limiter  *rate.Limiter
	hasCreds bool
	log      *logger.Log

	mu      sync.RWMutex
	natives map[string]string
}

func New(opts reader.Options) (reader.Connector, error) {
	base := opts.BaseURL
	if base == "" {
		base = defaultEndpoint
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("okx base url: %w", err)
	}
	return &Connector{
		baseURL:  strings.TrimRight(base, "/"),
		client:   withUserAgent(reader.NewHTTPClient(opts)),
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		hasCreds: opts.APIKey != "" && opts.APISecret != "" && opts.Passphrase != "",
		log:      logger.GetLogger(),
		natives:  map[string]string{},
	}, nil
}

func (c *Connector) ID() string { return exchangeID }

func (c *Connector) HasCredentials() bool { return c.hasCreds }

type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// okx error codes meaning the instrument does not exist
var unknownInstrument = map[string]bool{"51001": true, "51000": true}

func (c *Connector) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("okx %s: status %d: %w", path, res.StatusCode, err)
	}
	if env.Code != "0" {
		if unknownInstrument[env.Code] {
			return reader.ErrSymbolNotFound
		}
		return fmt.Errorf("okx %s: code %s: %s", path, env.Code, env.Msg)
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("okx %s: status %d", path, res.StatusCode)
	}
	return json.Unmarshal(env.Data, out)
}

func (c *Connector) native(symbol string) string {
	c.mu.RLock()
	id, ok := c.natives[strings.ToUpper(symbol)]
	c.mu.RUnlock()
	if ok {
		return id
	}
	return symbols.ToNative(exchangeID, symbol)
}

type tickerData struct {
	InstID    string `json:"instId"`
	Last      string `json:"last"`
	BidPx     string `json:"bidPx"`
	AskPx     string `json:"askPx"`
	VolCcy24h string `json:"volCcy24h"`
	Ts        string `json:"ts"`
}

func (c *Connector) FetchTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	var data []tickerData
	if err := c.get(ctx, "/api/v5/market/ticker", url.Values{"instId": {c.native(symbol)}}, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, reader.ErrSymbolNotFound
	}
	t := data[0]
	return &models.Ticker{
		Symbol:    symbol,
		Exchange:  exchangeID,
		Bid:       reader.ParseFloat(t.BidPx),
		Ask:       reader.ParseFloat(t.AskPx),
		Last:      reader.ParseFloat(t.Last),
		Volume:    reader.ParseFloat(t.VolCcy24h),
		Timestamp: parseMillis(t.Ts),
	}, nil
}

func (c *Connector) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	bar, ok := bars[timeframe]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}
	if limit <= 0 || limit > maxCandles {
		limit = maxCandles
	}
	params := url.Values{
		"instId": {c.native(symbol)},
		"bar":    {bar},
		"limit":  {strconv.Itoa(limit)},
	}
	var rows [][]string
	if err := c.get(ctx, "/api/v5/market/candles", params, &rows); err != nil {
		return nil, err
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		candles = append(candles, models.Candle{
			Time:   parseMillis(row[0]),
			Open:   reader.ParseFloat(row[1]),
			High:   reader.ParseFloat(row[2]),
			Low:    reader.ParseFloat(row[3]),
			Close:  reader.ParseFloat(row[4]),
			Volume: reader.ParseFloat(row[5]),
		})
	}
	// okx returns newest first
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	return candles, nil
}

type bookData struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
	Ts   string     `json:"ts"`
}

func (c *Connector) FetchOrderBook(ctx context.Context, symbol string, limit int) (*models.OrderBook, error) {
	if limit <= 0 || limit > maxDepth {
		limit = maxDepth
	}
	params := url.Values{"instId": {c.native(symbol)}, "sz": {strconv.Itoa(limit)}}
	var data []bookData
	if err := c.get(ctx, "/api/v5/market/books", params, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, reader.ErrSymbolNotFound
	}
	return &models.OrderBook{
		Symbol:    symbol,
		Exchange:  exchangeID,
		Bids:      reader.ParseLevels(data[0].Bids),
		Asks:      reader.ParseLevels(data[0].Asks),
		Timestamp: parseMillis(data[0].Ts),
	}, nil
}

type instrumentData struct {
	InstID   string `json:"instId"`
	BaseCcy  string `json:"baseCcy"`
	QuoteCcy string `json:"quoteCcy"`
	MinSz    string `json:"minSz"`
	MaxMktSz string `json:"maxMktSz"`
	TickSz   string `json:"tickSz"`
	State    string `json:"state"`
}

func (c *Connector) LoadMarkets(ctx context.Context) (map[string]models.Market, error) {
	var data []instrumentData
	if err := c.get(ctx, "/api/v5/public/instruments", url.Values{"instType": {"SPOT"}}, &data); err != nil {
		return nil, err
	}

	markets := make(map[string]models.Market, len(data))
	natives := make(map[string]string, len(data))
	for _, inst := range data {
		if inst.BaseCcy == "" || inst.QuoteCcy == "" {
			continue
		}
		unified := models.UnifiedSymbol(inst.BaseCcy, inst.QuoteCcy)
		markets[unified] = models.Market{
			ID:     inst.InstID,
			Symbol: unified,
			Base:   strings.ToUpper(inst.BaseCcy),
			Quote:  strings.ToUpper(inst.QuoteCcy),
			Active: inst.State == "live",
			Maker:  0.0008,
			Taker:  0.001,
			Limits: models.Limits{
				Amount: models.MinMax{Min: reader.ParseFloat(inst.MinSz), Max: reader.ParseFloat(inst.MaxMktSz)},
				Price:  models.MinMax{Min: reader.ParseFloat(inst.TickSz)},
			},
		}
		natives[unified] = inst.InstID
	}

	c.mu.Lock()
	c.natives = natives
	c.mu.Unlock()

	c.log.WithComponent("okx_connector").WithFields(logger.Fields{"markets": len(markets)}).Debug("loaded markets")
	return markets, nil
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
