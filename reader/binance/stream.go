package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cryptolens/internal/symbols"
	"cryptolens/logger"
	"cryptolens/models"
	"cryptolens/reader"
)

// TickerHandler receives each quote pushed by a stream.
type TickerHandler func(models.Ticker)

// BookTickerStream subscribes to Binance <symbol>@bookTicker streams and
// hands every best bid/ask update to a handler. It reconnects until Stop.
type BookTickerStream struct {
	url        string
	natives    map[string]string // lower-case native -> unified
	handler    TickerHandler
	dialer     *websocket.Dialer
	retryDelay time.Duration
	log        *logger.Log

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewBookTickerStream builds a stream for unified symbols against a
// combined-stream endpoint such as wss://stream.binance.com:9443/stream.
func NewBookTickerStream(endpoint string, unified []string, handler TickerHandler) *BookTickerStream {
	natives := make(map[string]string, len(unified))
	for _, u := range unified {
		natives[strings.ToLower(symbols.ToNative(exchangeID, u))] = strings.ToUpper(u)
	}
	return &BookTickerStream{
		url:        strings.TrimRight(endpoint, "/"),
		natives:    natives,
		handler:    handler,
		dialer:     websocket.DefaultDialer,
		retryDelay: 5 * time.Second,
		log:        logger.GetLogger(),
	}
}

func (s *BookTickerStream) streamURL() (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("invalid stream url: %w", err)
	}
	names := make([]string, 0, len(s.natives))
	for n := range s.natives {
		names = append(names, n+"@bookTicker")
	}
	q := u.Query()
	q.Set("streams", strings.Join(names, "/"))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Start launches the read loop. It fails if the stream is already running.
func (s *BookTickerStream) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("stream already running")
	}
	if len(s.natives) == 0 {
		return fmt.Errorf("no symbols to stream")
	}
	target, err := s.streamURL()
	if err != nil {
		return err
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.wg.Add(1)
	go s.run(ctx, target)

	s.log.WithComponent("binance_stream").WithFields(logger.Fields{"symbols": len(s.natives)}).Info("book ticker stream started")
	return nil
}

// Stop cancels the read loop and waits for it to exit.
func (s *BookTickerStream) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.log.WithComponent("binance_stream").Info("book ticker stream stopped")
}

func (s *BookTickerStream) run(ctx context.Context, target string) {
	defer s.wg.Done()
	log := s.log.WithComponent("binance_stream")

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := s.dialer.DialContext(ctx, target, nil)
		if err != nil {
			log.WithError(err).Warn("failed to connect to binance stream, retrying")
			if !s.pause(ctx) {
				return
			}
			continue
		}

		s.readLoop(ctx, conn, log)
		_ = conn.Close()
		if !s.pause(ctx) {
			return
		}
	}
}

func (s *BookTickerStream) pause(ctx context.Context) bool {
	select {
	case <-time.After(s.retryDelay):
		return true
	case <-ctx.Done():
		return false
	}
}

type combinedMessage struct {
	Stream string          `json:"stream"`
	Data   bookTickerEvent `json:"data"`
}

type bookTickerEvent struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

func (s *BookTickerStream) readLoop(ctx context.Context, conn *websocket.Conn, log *logger.Entry) {
	const readWindow = 60 * time.Second

	_ = conn.SetReadDeadline(time.Now().Add(readWindow))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readWindow))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	// unblock ReadMessage on shutdown
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Warn("binance stream error, reconnecting")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWindow))

		var m combinedMessage
		if err := json.Unmarshal(msg, &m); err != nil {
			log.WithError(err).Debug("failed to decode stream message, skipping")
			continue
		}
		ticker, ok := s.toTicker(m.Data)
		if !ok {
			continue
		}
		s.handler(ticker)
	}
}

func (s *BookTickerStream) toTicker(ev bookTickerEvent) (models.Ticker, bool) {
	unified, ok := s.natives[strings.ToLower(ev.Symbol)]
	if !ok {
		if unified = symbols.FromNative(exchangeID, ev.Symbol); unified == "" {
			return models.Ticker{}, false
		}
	}
	bid, ask := reader.ParseFloat(ev.BidPrice), reader.ParseFloat(ev.AskPrice)
	if bid <= 0 || ask <= 0 {
		return models.Ticker{}, false
	}
	return models.Ticker{
		Symbol:    unified,
		Exchange:  exchangeID,
		Bid:       bid,
		Ask:       ask,
		Last:      (bid + ask) / 2,
		Timestamp: time.Now(),
	}, true
}
