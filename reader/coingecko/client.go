// Package coingecko reads global market aggregates from the CoinGecko
// public API.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"cryptolens/config"
	"cryptolens/reader"
)

// free tier tolerates roughly 30 calls per minute
const defaultPerMinute = 30

// Global is the /global snapshot.
type Global struct {
	TotalMarketCapUSD     float64
	TotalVolumeUSD        float64
	BTCDominance          float64
	MarketCapChange24hPct float64
	UpdatedAt             time.Time
}

// CoinMarket is one row of /coins/markets.
type CoinMarket struct {
	ID           string
	Price        float64
	MarketCap    float64
	TotalVolume  float64
	Change24hPct float64
	Change7dPct  float64
	LastUpdated  time.Time
}

// Point is a timestamped aggregate value.
type Point struct {
	Time  time.Time
	Value float64
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// New builds a client from the sentiment section. perMinute <= 0 uses
// the free-tier pace.
func New(cfg config.SentimentConfig, opts reader.Options, perMinute int) *Client {
	if perMinute <= 0 {
		perMinute = defaultPerMinute
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.coingecko.com/api/v3"
	}
	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    reader.NewHTTPClient(opts),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
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
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("coingecko %s: 429 rate limit", path)
	}
	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("coingecko %s: status %d: %s", path, res.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("coingecko %s: decode: %w", path, err)
	}
	return nil
}

type globalResponse struct {
	Data struct {
		TotalMarketCap                  map[string]float64 `json:"total_market_cap"`
		TotalVolume                     map[string]float64 `json:"total_volume"`
		MarketCapPercentage             map[string]float64 `json:"market_cap_percentage"`
		MarketCapChangePercentage24hUSD float64            `json:"market_cap_change_percentage_24h_usd"`
		UpdatedAt                       int64              `json:"updated_at"`
	} `json:"data"`
}

func (c *Client) Global(ctx context.Context) (*Global, error) {
	var resp globalResponse
	if err := c.get(ctx, "/global", url.Values{"localization": {"false"}}, &resp); err != nil {
		return nil, err
	}
	d := resp.Data
	return &Global{
		TotalMarketCapUSD:     d.TotalMarketCap["usd"],
		TotalVolumeUSD:        d.TotalVolume["usd"],
		BTCDominance:          d.MarketCapPercentage["btc"],
		MarketCapChange24hPct: d.MarketCapChangePercentage24hUSD,
		UpdatedAt:             time.Unix(d.UpdatedAt, 0),
	}, nil
}

type coinMarketRow struct {
	ID                       string   `json:"id"`
	CurrentPrice             float64  `json:"current_price"`
	MarketCap                float64  `json:"market_cap"`
	TotalVolume              float64  `json:"total_volume"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	PriceChange7dInCurrency  *float64 `json:"price_change_percentage_7d_in_currency"`
	LastUpdated              string   `json:"last_updated"`
}

// Coin returns the USD market row for a CoinGecko coin id with its 24h and
// 7d price changes.
func (c *Client) Coin(ctx context.Context, id string) (*CoinMarket, error) {
	params := url.Values{
		"vs_currency":             {"usd"},
		"ids":                     {id},
		"price_change_percentage": {"7d"},
	}
	var rows []coinMarketRow
	if err := c.get(ctx, "/coins/markets", params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("coingecko: coin %s not found", id)
	}
	r := rows[0]
	coin := &CoinMarket{
		ID:          r.ID,
		Price:       r.CurrentPrice,
		MarketCap:   r.MarketCap,
		TotalVolume: r.TotalVolume,
	}
	if r.PriceChangePercentage24h != nil {
		coin.Change24hPct = *r.PriceChangePercentage24h
	}
	if r.PriceChange7dInCurrency != nil {
		coin.Change7dPct = *r.PriceChange7dInCurrency
	}
	if ts, err := time.Parse(time.RFC3339, r.LastUpdated); err == nil {
		coin.LastUpdated = ts
	}
	return coin, nil
}

type chartResponse struct {
	MarketCaps [][]float64 `json:"market_caps"`
	Chart      struct {
		MarketCaps [][]float64 `json:"market_cap"`
	} `json:"market_cap_chart"`
}

// MarketCapChart returns total market cap samples over the trailing days,
// oldest first.
func (c *Client) MarketCapChart(ctx context.Context, days int) ([]Point, error) {
	params := url.Values{"vs_currency": {"usd"}, "days": {strconv.Itoa(days)}}
	var resp chartResponse
	if err := c.get(ctx, "/global/market_cap_chart", params, &resp); err != nil {
		return nil, err
	}
	raw := resp.MarketCaps
	if len(raw) == 0 {
		raw = resp.Chart.MarketCaps
	}
	points := make([]Point, 0, len(raw))
	for _, p := range raw {
		if len(p) < 2 {
			continue
		}
		points = append(points, Point{Time: time.UnixMilli(int64(p[0])), Value: p[1]})
	}
	return points, nil
}
