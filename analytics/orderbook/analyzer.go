package orderbook

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"cryptolens/internal/limiter"
	"cryptolens/logger"
	"cryptolens/models"
)

const DefaultLimit = 20

// BookSource fetches a raw order book for one exchange.
type BookSource interface {
	FetchOrderBook(ctx context.Context, exchange, symbol string, limit int) (*models.OrderBook, error)
}

type Analyzer struct {
	books     BookSource
	analytic  *limiter.Pool
	available func() []string
	log       *logger.Log
}

// NewAnalyzer builds an analyzer. available lists the exchanges used
// when a caller names none.
func NewAnalyzer(books BookSource, analytic *limiter.Pool, available func() []string) *Analyzer {
	return &Analyzer{books: books, analytic: analytic, available: available, log: logger.GetLogger()}
}

// Analyze fetches a fresh book and computes its metrics. limit <= 0
// uses DefaultLimit.
func (a *Analyzer) Analyze(ctx context.Context, exchange, symbol string, limit int) (*Metrics, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	book, err := a.books.FetchOrderBook(ctx, exchange, symbol, limit)
	if err != nil {
		return nil, err
	}
	if book == nil || (len(book.Bids) == 0 && len(book.Asks) == 0) {
		return nil, models.NewNoDataError("no order book data for %s on %s", symbol, exchange)
	}
	m := Compute(book, limit)
	m.Symbol, m.Exchange = symbol, exchange
	return m, nil
}

// Thresholds for CheckLiquidityAlerts. Zero fields take the defaults.
type Thresholds struct {
	SpreadPercent    float64
	ImbalancePercent float64
	LiquidityScore   float64
}

var DefaultThresholds = Thresholds{SpreadPercent: 1.0, ImbalancePercent: 40, LiquidityScore: 30}

func (t Thresholds) withDefaults() Thresholds {
	if t.SpreadPercent == 0 {
		t.SpreadPercent = DefaultThresholds.SpreadPercent
	}
	if t.ImbalancePercent == 0 {
		t.ImbalancePercent = DefaultThresholds.ImbalancePercent
	}
	if t.LiquidityScore == 0 {
		t.LiquidityScore = DefaultThresholds.LiquidityScore
	}
	return t
}

type AlertReport struct {
	Alerts  []string `json:"alerts"`
	Metrics *Metrics `json:"metrics"`
}

func (a *Analyzer) CheckLiquidityAlerts(ctx context.Context, exchange, symbol string, th Thresholds) (*AlertReport, error) {
	m, err := a.Analyze(ctx, exchange, symbol, DefaultLimit)
	if err != nil {
		return nil, err
	}
	return &AlertReport{Alerts: Alerts(m, th), Metrics: m}, nil
}

// Alerts lists every threshold m crosses.
func Alerts(m *Metrics, th Thresholds) []string {
	th = th.withDefaults()
	alerts := []string{}
	if m.SpreadPercent > th.SpreadPercent {
		alerts = append(alerts, fmt.Sprintf("High spread: %.4f%% (threshold: %g%%)", m.SpreadPercent, th.SpreadPercent))
	}
	if imb := m.Analysis.VolumeImbalance; math.Abs(imb) > th.ImbalancePercent {
		side := "buy"
		if imb < 0 {
			side = "sell"
		}
		alerts = append(alerts, fmt.Sprintf("Strong %s pressure: %.2f%% imbalance (threshold: %g%%)", side, math.Abs(imb), th.ImbalancePercent))
	}
	if m.Analysis.LiquidityScore < th.LiquidityScore {
		alerts = append(alerts, fmt.Sprintf("Poor liquidity: score %.2f (threshold: %g)", m.Analysis.LiquidityScore, th.LiquidityScore))
	}
	return alerts
}

type ProfileEntry struct {
	Exchange string   `json:"exchange"`
	Metrics  *Metrics `json:"metrics"`
	Rating   string   `json:"rating"`
}

// GetLiquidityProfile analyzes symbol on each exchange in parallel.
// Exchanges that fail are left out; the result is sorted by exchange.
func (a *Analyzer) GetLiquidityProfile(ctx context.Context, symbol string, exchanges []string) []ProfileEntry {
	if len(exchanges) == 0 && a.available != nil {
		exchanges = a.available()
	}
	var (
		mu  sync.Mutex
		out []ProfileEntry
		g   errgroup.Group
	)
	for _, ex := range exchanges {
		g.Go(func() error {
			var m *Metrics
			err := a.analytic.Do(ctx, func(ctx context.Context) error {
				var err error
				m, err = a.Analyze(ctx, ex, symbol, DefaultLimit)
				return err
			})
			if err != nil {
				a.log.WithComponent("orderbook_analyzer").WithError(err).WithFields(logger.Fields{
					"exchange": ex,
					"symbol":   symbol,
				}).Warn("failed to get liquidity profile")
				return nil
			}
			mu.Lock()
			out = append(out, ProfileEntry{Exchange: ex, Metrics: m, Rating: Rating(m.Analysis.LiquidityScore)})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(out, func(i, j int) bool { return out[i].Exchange < out[j].Exchange })
	return out
}
