package okx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cryptolens/config"
	"cryptolens/reader"
)

func newTestConnector(t *testing.T) reader.Connector {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v5/market/ticker", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != userAgent {
			t.Errorf("missing user agent")
		}
		if r.URL.Query().Get("instId") != "BTC-USDT" {
			fmt.Fprint(w, `{"code":"51001","msg":"Instrument ID does not exist","data":[]}`)
			return
		}
		fmt.Fprint(w, `{"code":"0","msg":"","data":[{"instId":"BTC-USDT","last":"64000.2","bidPx":"64000.1",
			"askPx":"64000.3","volCcy24h":"123456.7","ts":"1700000000000"}]}`)
	})
	mux.HandleFunc("/api/v5/market/candles", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("bar") != "1H" {
			t.Errorf("unexpected bar %s", r.URL.Query().Get("bar"))
		}
		fmt.Fprint(w, `{"code":"0","msg":"","data":[
			["1700003600000","101","103","100","102","5","510","510","1"],
			["1700000000000","100","102","99","101","4","404","404","1"]]}`)
	})
	mux.HandleFunc("/api/v5/market/books", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"0","msg":"","data":[{"bids":[["64000.1","1.5","0","2"]],
			"asks":[["64000.3","2","0","1"],["64001","3","0","1"]],"ts":"1700000000000"}]}`)
	})
	mux.HandleFunc("/api/v5/public/instruments", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("instType") != "SPOT" {
			t.Errorf("unexpected instType %s", r.URL.Query().Get("instType"))
		}
		fmt.Fprint(w, `{"code":"0","msg":"","data":[
			{"instId":"BTC-USDT","baseCcy":"BTC","quoteCcy":"USDT","minSz":"0.00001","maxMktSz":"1000000","tickSz":"0.1","state":"live"},
			{"instId":"OLD-USDT","baseCcy":"OLD","quoteCcy":"USDT","minSz":"1","tickSz":"0.01","state":"suspend"}]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	conn, err := New(reader.Options{ID: "okx", BaseURL: srv.URL, Timeout: time.Second, ConnectionPool: config.Default().ConnectionPool})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return conn
}

func TestFetchTicker(t *testing.T) {
	conn := newTestConnector(t)
	q, err := conn.FetchTicker(context.Background(), "BTC/USDT")
	if err != nil {
		t.Fatalf("FetchTicker: %v", err)
	}
	if q.Bid != 64000.1 || q.Ask != 64000.3 || q.Last != 64000.2 || q.Volume != 123456.7 {
		t.Fatalf("unexpected ticker %+v", q)
	}
	if q.Exchange != "okx" || q.Timestamp.UnixMilli() != 1700000000000 {
		t.Fatalf("unexpected identity %+v", q)
	}
}

func TestFetchTickerUnknownSymbol(t *testing.T) {
	conn := newTestConnector(t)
	if _, err := conn.FetchTicker(context.Background(), "NOPE/USDT"); !errors.Is(err, reader.ErrSymbolNotFound) {
		t.Fatalf("expected ErrSymbolNotFound, got %v", err)
	}
}

func TestFetchOHLCVAscending(t *testing.T) {
	conn := newTestConnector(t)
	candles, err := conn.FetchOHLCV(context.Background(), "BTC/USDT", "1h", 2)
	if err != nil {
		t.Fatalf("FetchOHLCV: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if !candles[0].Time.Before(candles[1].Time) || candles[0].Open != 100 || candles[1].Close != 102 {
		t.Fatalf("unexpected candles %+v", candles)
	}
	if _, err := conn.FetchOHLCV(context.Background(), "BTC/USDT", "7m", 2); err == nil {
		t.Fatal("expected unsupported timeframe error")
	}
}

func TestFetchOrderBook(t *testing.T) {
	conn := newTestConnector(t)
	book, err := conn.FetchOrderBook(context.Background(), "BTC/USDT", 20)
	if err != nil {
		t.Fatalf("FetchOrderBook: %v", err)
	}
	if len(book.Bids) != 1 || len(book.Asks) != 2 || book.Asks[1].Price != 64001 {
		t.Fatalf("unexpected book %+v", book)
	}
}

func TestLoadMarkets(t *testing.T) {
	conn := newTestConnector(t)
	markets, err := conn.LoadMarkets(context.Background())
	if err != nil {
		t.Fatalf("LoadMarkets: %v", err)
	}
	btc, ok := markets["BTC/USDT"]
	if !ok || !btc.Active || btc.Limits.Amount.Min != 0.00001 || btc.Limits.Price.Min != 0.1 {
		t.Fatalf("unexpected market %+v", btc)
	}
	if markets["OLD/USDT"].Active {
		t.Fatal("suspended instrument should be inactive")
	}
}
