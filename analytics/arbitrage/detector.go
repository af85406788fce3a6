// Package arbitrage scans exchange pairs for buy-low/sell-high spreads
// that survive taker fees.
package arbitrage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"cryptolens/analytics/orderbook"
	"cryptolens/internal/cache"
	"cryptolens/internal/limiter"
	"cryptolens/internal/mathx"
	"cryptolens/logger"
	"cryptolens/models"
)

const (
	DefaultMinProfitPercent       = 0.5
	BestMinProfitPercent          = 0.1
	ProfitableSymbolsMinProfitPct = 1.0
	bookLevels                    = 10
	fallbackLiquidity             = 70.0
)

const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskVeryHigh = "very_high"
)

// MarketSource supplies quotes and books. *aggregator.Aggregator
// satisfies it.
type MarketSource interface {
	GetPricesFromMultipleExchanges(ctx context.Context, symbol string, exchanges []string) map[string]*models.Ticker
	FetchOrderBook(ctx context.Context, exchange, symbol string, limit int) (*models.OrderBook, error)
}

type Opportunity struct {
	ScanID           string    `json:"scanId"`
	Symbol           string    `json:"symbol"`
	BuyExchange      string    `json:"buyExchange"`
	SellExchange     string    `json:"sellExchange"`
	BuyPrice         float64   `json:"buyPrice"`
	SellPrice        float64   `json:"sellPrice"`
	Spread           float64   `json:"spread"`
	SpreadPercent    float64   `json:"spreadPercent"`
	ProfitPerUnit    float64   `json:"profitPerUnit"`
	ProfitPercent    float64   `json:"profitPercent"`
	BuyFee           float64   `json:"buyFee"`
	SellFee          float64   `json:"sellFee"`
	NetProfit        float64   `json:"netProfit"`
	NetProfitPercent float64   `json:"netProfitPercent"`
	Volume           float64   `json:"volume"`
	VolumeScore      string    `json:"volumeScore"`
	Liquidity        float64   `json:"liquidity"`
	Risk             string    `json:"risk"`
	Timestamp        time.Time `json:"timestamp"`
}

type Detector struct {
	market    MarketSource
	analytic  *limiter.Pool
	available func() []string
	fees      FeeTable
	cache     *cache.TTL[[]Opportunity]
	log       *logger.Log
}

// NewDetector builds a detector using DefaultFeeTable. Its cache is
// registered with layer when layer is not nil.
func NewDetector(market MarketSource, analytic *limiter.Pool, layer *cache.Layer, ttl time.Duration, available func() []string) *Detector {
	c := cache.New[[]Opportunity](cache.ArbitrageCache, ttl)
	if layer != nil {
		layer.Register(c)
	}
	return &Detector{
		market:    market,
		analytic:  analytic,
		available: available,
		fees:      DefaultFeeTable(),
		cache:     c,
		log:       logger.GetLogger(),
	}
}

func (d *Detector) Fees() FeeTable { return d.fees }

func cacheKey(symbol string, exchanges []string) string {
	return "arbitrage:" + symbol + ":" + strings.Join(exchanges, ",")
}

// quote is the executable price pair on one exchange.
type quote struct {
	ask, bid  float64
	volume    float64
	liquidity float64
	hasBook   bool
}

// FindOpportunities returns every ordered exchange pair whose net profit
// percent is at least minProfitPercent, best first.
func (d *Detector) FindOpportunities(ctx context.Context, symbol string, exchanges []string, minProfitPercent float64) ([]Opportunity, error) {
	if len(exchanges) == 0 && d.available != nil {
		exchanges = d.available()
	}
	exchanges = sortedUnique(exchanges)

	key := cacheKey(symbol, exchanges)
	all, ok := d.cache.Get(key)
	if !ok {
		var priced bool
		all, priced = d.scan(ctx, symbol, exchanges)
		// an outage leaves fewer than two quotes; retry on the next call
		if priced {
			d.cache.Set(key, all)
		}
	}

	out := make([]Opportunity, 0, len(all))
	for _, o := range all {
		if o.NetProfitPercent >= minProfitPercent {
			out = append(out, o)
		}
	}
	return out, nil
}

// FindBest returns the most profitable opportunity above
// BestMinProfitPercent, or nil.
func (d *Detector) FindBest(ctx context.Context, symbol string, exchanges []string) (*Opportunity, error) {
	opps, err := d.FindOpportunities(ctx, symbol, exchanges, BestMinProfitPercent)
	if err != nil || len(opps) == 0 {
		return nil, err
	}
	best := opps[0]
	return &best, nil
}

// scan compares every priced pair. priced is false when fewer than two
// exchanges returned a quote.
func (d *Detector) scan(ctx context.Context, symbol string, exchanges []string) (opps []Opportunity, priced bool) {
	scanID := uuid.New().String()
	log := d.log.WithComponent("arbitrage_detector").WithFields(logger.Fields{
		"scan_id": scanID,
		"symbol":  symbol,
	})

	quotes := d.quotes(ctx, symbol, exchanges)
	if len(quotes) < 2 {
		log.WithFields(logger.Fields{"priced_exchanges": len(quotes)}).Debug("not enough priced exchanges for arbitrage")
		return []Opportunity{}, false
	}

	now := time.Now()
	opps = []Opportunity{}
	for _, buyEx := range exchanges {
		buy, ok := quotes[buyEx]
		if !ok {
			continue
		}
		for _, sellEx := range exchanges {
			sell, ok := quotes[sellEx]
			if !ok || sellEx == buyEx {
				continue
			}
			o := d.evaluate(buyEx, sellEx, buy, sell)
			o.ScanID, o.Symbol, o.Timestamp = scanID, symbol, now
			opps = append(opps, o)
		}
	}
	sort.SliceStable(opps, func(i, j int) bool { return opps[i].NetProfitPercent > opps[j].NetProfitPercent })
	log.WithFields(logger.Fields{"pairs": len(opps), "exchanges": len(quotes)}).Info("arbitrage scan complete")
	return opps, true
}

// quotes fetches a ticker and a shallow book per exchange. Book prices
// win; the last trade is the fallback.
func (d *Detector) quotes(ctx context.Context, symbol string, exchanges []string) map[string]quote {
	tickers := d.market.GetPricesFromMultipleExchanges(ctx, symbol, exchanges)

	var (
		mu  sync.Mutex
		out = map[string]quote{}
		g   errgroup.Group
	)
	for _, ex := range exchanges {
		g.Go(func() error {
			q := quote{}
			if t := tickers[ex]; t != nil {
				q.ask, q.bid, q.volume = t.Last, t.Last, t.Volume
			}
			if book, err := d.market.FetchOrderBook(ctx, ex, symbol, bookLevels); err == nil && book != nil &&
				len(book.Bids) > 0 && len(book.Asks) > 0 {
				q.ask, q.bid = book.Asks[0].Price, book.Bids[0].Price
				q.liquidity = orderbook.Compute(book, bookLevels).Analysis.LiquidityScore
				q.hasBook = true
			}
			if q.ask <= 0 || q.bid <= 0 {
				return nil
			}
			mu.Lock()
			out[ex] = q
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (d *Detector) evaluate(buyEx, sellEx string, buy, sell quote) Opportunity {
	buyPrice := decimal.NewFromFloat(buy.ask)
	sellPrice := decimal.NewFromFloat(sell.bid)
	spread := sellPrice.Sub(buyPrice)
	buyFee := buyPrice.Mul(decimal.NewFromFloat(d.fees.For(buyEx).Taker))
	sellFee := sellPrice.Mul(decimal.NewFromFloat(d.fees.For(sellEx).Taker))
	net := spread.Sub(buyFee).Sub(sellFee)
	hundred := decimal.NewFromInt(100)
	spreadPct := spread.Div(buyPrice).Mul(hundred)
	netPct := net.Div(buyPrice).Mul(hundred)

	liquidity := fallbackLiquidity
	if buy.hasBook && sell.hasBook {
		liquidity = mathx.Round((buy.liquidity+sell.liquidity)/2, 2)
	}
	volume := buy.volume
	if sell.volume < volume {
		volume = sell.volume
	}
	vs := VolumeScore(volume)
	spreadPctF := spreadPct.InexactFloat64()

	return Opportunity{
		BuyExchange:      buyEx,
		SellExchange:     sellEx,
		BuyPrice:         buyPrice.Round(4).InexactFloat64(),
		SellPrice:        sellPrice.Round(4).InexactFloat64(),
		Spread:           spread.Round(4).InexactFloat64(),
		SpreadPercent:    spreadPct.Round(4).InexactFloat64(),
		ProfitPerUnit:    spread.Round(4).InexactFloat64(),
		ProfitPercent:    spreadPct.Round(2).InexactFloat64(),
		BuyFee:           buyFee.Round(4).InexactFloat64(),
		SellFee:          sellFee.Round(4).InexactFloat64(),
		NetProfit:        net.Round(4).InexactFloat64(),
		NetProfitPercent: netPct.Round(2).InexactFloat64(),
		Volume:           decimal.NewFromFloat(volume).Floor().InexactFloat64(),
		VolumeScore:      vs,
		Liquidity:        liquidity,
		Risk:             Risk(spreadPctF, liquidity, vs),
	}
}

func VolumeScore(volume float64) string {
	switch {
	case volume > 100_000:
		return "excellent"
	case volume > 10_000:
		return "good"
	case volume > 1_000:
		return "fair"
	default:
		return "poor"
	}
}

// Risk classifies an opportunity by spread, liquidity and volume band.
func Risk(spreadPct, liquidity float64, volumeScore string) string {
	switch {
	case spreadPct > 2 || liquidity < 30:
		return RiskVeryHigh
	case spreadPct > 1 || liquidity < 50 || volumeScore == "poor":
		return RiskHigh
	case spreadPct > 0.5 || liquidity < 65 || volumeScore == "fair":
		return RiskMedium
	default:
		return RiskLow
	}
}

type SymbolOpportunities struct {
	Symbol          string        `json:"symbol"`
	Opportunities   []Opportunity `json:"opportunities"`
	BestOpportunity Opportunity   `json:"bestOpportunity"`
}

// FindProfitableSymbols scans each symbol through the analytic pool and
// keeps those whose best opportunity clears minProfitPercent.
func (d *Detector) FindProfitableSymbols(ctx context.Context, symbols, exchanges []string, minProfitPercent float64) []SymbolOpportunities {
	var (
		mu  sync.Mutex
		out []SymbolOpportunities
		g   errgroup.Group
	)
	for _, sym := range symbols {
		g.Go(func() error {
			var opps []Opportunity
			err := d.analytic.Do(ctx, func(ctx context.Context) error {
				var err error
				opps, err = d.FindOpportunities(ctx, sym, exchanges, minProfitPercent)
				return err
			})
			if err != nil {
				d.log.WithComponent("arbitrage_detector").WithError(err).WithFields(logger.Fields{
					"symbol": sym,
				}).Warn("arbitrage scan failed")
				return nil
			}
			if len(opps) == 0 {
				return nil
			}
			mu.Lock()
			out = append(out, SymbolOpportunities{Symbol: sym, Opportunities: opps, BestOpportunity: opps[0]})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BestOpportunity.NetProfitPercent != out[j].BestOpportunity.NetProfitPercent {
			return out[i].BestOpportunity.NetProfitPercent > out[j].BestOpportunity.NetProfitPercent
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func (d *Detector) ClearCache() { d.cache.Flush() }

func sortedUnique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
