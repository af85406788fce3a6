package coingecko

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cryptolens/config"
	"cryptolens/reader"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.SentimentConfig{BaseURL: srv.URL, APIKey: "demo"}
	return New(cfg, reader.Options{Timeout: time.Second, ConnectionPool: config.Default().ConnectionPool}, 6000)
}

func TestGlobal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/global", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-cg-demo-api-key") != "demo" {
			t.Errorf("api key header missing")
		}
		fmt.Fprint(w, `{"data":{"total_market_cap":{"usd":2500000000000},"total_volume":{"usd":90000000000},
			"market_cap_percentage":{"btc":52.4,"eth":17.1},"market_cap_change_percentage_24h_usd":-1.5,"updated_at":1700000000}}`)
	})
	c := newTestClient(t, mux)
	g, err := c.Global(context.Background())
	if err != nil {
		t.Fatalf("Global: %v", err)
	}
	if g.BTCDominance != 52.4 || g.TotalVolumeUSD != 9e10 || g.MarketCapChange24hPct != -1.5 {
		t.Fatalf("unexpected global %+v", g)
	}
}

func TestCoin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/coins/markets", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") != "bitcoin" || r.URL.Query().Get("price_change_percentage") != "7d" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `[{"id":"bitcoin","current_price":64000,"market_cap":1260000000000,"total_volume":30000000000,
			"price_change_percentage_24h":2.5,"price_change_percentage_7d_in_currency":-4.25,"last_updated":"2024-01-01T00:00:00.000Z"}]`)
	})
	c := newTestClient(t, mux)
	coin, err := c.Coin(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("Coin: %v", err)
	}
	if coin.Price != 64000 || coin.Change24hPct != 2.5 || coin.Change7dPct != -4.25 || coin.MarketCap != 1.26e12 {
		t.Fatalf("unexpected coin %+v", coin)
	}
}

func TestMarketCapChart(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/global/market_cap_chart", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("days") != "7" {
			t.Errorf("unexpected days %s", r.URL.Query().Get("days"))
		}
		fmt.Fprint(w, `{"market_caps":[[1700000000000,100],[1700086400000,110]]}`)
	})
	c := newTestClient(t, mux)
	points, err := c.MarketCapChart(context.Background(), 7)
	if err != nil {
		t.Fatalf("MarketCapChart: %v", err)
	}
	if len(points) != 2 || points[1].Value != 110 || points[0].Time.UnixMilli() != 1700000000000 {
		t.Fatalf("unexpected points %+v", points)
	}
}

func TestRateLimitedResponse(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	_, err := c.Global(context.Background())
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected 429 error, got %v", err)
	}
}
