package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"cryptolens/models"
)

func TestBookTickerStreamDeliversQuotes(t *testing.T) {
	upgrader := websocket.Upgrader{}
	gotQuery := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case gotQuery <- r.URL.Query().Get("streams"):
		default:
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		msgs := []string{
			`not json`,
			`{"stream":"celousdt@bookTicker","data":{"u":1,"s":"CELOUSDT","b":"0.6400","B":"10","a":"0.6405","A":"12"}}`,
			`{"stream":"celousdt@bookTicker","data":{"u":2,"s":"CELOUSDT","b":"0","B":"10","a":"0.6405","A":"12"}}`,
		}
		for _, m := range msgs {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	quotes := make(chan models.Ticker, 4)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	stream := NewBookTickerStream(wsURL, []string{"CELO/USDT"}, func(q models.Ticker) {
		select {
		case quotes <- q:
		default:
		}
	})
	stream.retryDelay = 500 * time.Millisecond

	if err := stream.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer stream.Stop()

	if err := stream.Start(context.Background()); err == nil {
		t.Fatalf("second Start should fail")
	}

	select {
	case q := <-gotQuery:
		if q != "celousdt@bookTicker" {
			t.Fatalf("unexpected streams param %q", q)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never contacted")
	}

	select {
	case q := <-quotes:
		if q.Symbol != "CELO/USDT" || q.Bid != 0.64 || q.Ask != 0.6405 {
			t.Fatalf("unexpected quote %+v", q)
		}
		if q.Last != (0.64+0.6405)/2 {
			t.Fatalf("last should be the mid, got %v", q.Last)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no quote delivered")
	}

	select {
	case q := <-quotes:
		t.Fatalf("zero-bid update should be dropped, got %+v", q)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBookTickerStreamRequiresSymbols(t *testing.T) {
	stream := NewBookTickerStream("wss://example.com/stream", nil, func(models.Ticker) {})
	if err := stream.Start(context.Background()); err == nil {
		t.Fatal("expected error without symbols")
	}
	stream.Stop()
}
