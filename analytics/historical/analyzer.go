// Package historical summarizes daily candle history over fixed periods
// or an explicit date window.
package historical

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cryptolens/logger"
	"cryptolens/models"
)

const (
	timeframe = "1d"
	maxLimit  = 500
	maxDays   = 730

	PeriodCustom = "custom"
)

var periodDays = map[string]int{
	"1m":  30,
	"3m":  90,
	"6m":  180,
	"1y":  365,
	"all": 730,
}

// defaultPeriodDays covers period tokens missing from periodDays.
const defaultPeriodDays = 30

// ComparePeriods are the windows CompareHistoricalPeriods covers.
var ComparePeriods = []string{"1m", "3m", "6m", "1y"}

// PeriodDays reports the day count behind a period token.
func PeriodDays(period string) (int, bool) {
	d, ok := periodDays[period]
	return d, ok
}

// CandleSource returns the first non-empty series among preferred
// exchanges. *aggregator.Aggregator satisfies it.
type CandleSource interface {
	GetOHLCV(ctx context.Context, symbol, timeframe string, limit int, preferred []string) models.CandleSeries
}

type Analysis struct {
	Symbol     string  `json:"symbol"`
	Exchange   string  `json:"exchange"`
	Period     string  `json:"period"`
	StartDate  string  `json:"startDate"`
	EndDate    string  `json:"endDate"`
	DataPoints []Point `json:"dataPoints"`
	Statistics Stats   `json:"statistics"`
}

type Analyzer struct {
	candles CandleSource
	now     func() time.Time
	log     *logger.Log
}

func NewAnalyzer(candles CandleSource) *Analyzer {
	return &Analyzer{candles: candles, now: time.Now, log: logger.GetLogger()}
}

func preferred(exchange string) []string {
	if exchange == "" {
		return nil
	}
	return []string{exchange}
}

func (a *Analyzer) fetch(ctx context.Context, symbol, exchange string, days int) (models.CandleSeries, error) {
	limit := days
	if limit > maxLimit {
		limit = maxLimit
	}
	series := a.candles.GetOHLCV(ctx, symbol, timeframe, limit, preferred(exchange))
	if len(series.Data) == 0 {
		return series, models.NewNoDataError("no historical data for %s", symbol)
	}
	return series, nil
}

func build(symbol, source, period string, candles []models.Candle) *Analysis {
	return &Analysis{
		Symbol:     symbol,
		Exchange:   source,
		Period:     period,
		StartDate:  formatDate(candles[0].Time),
		EndDate:    formatDate(candles[len(candles)-1].Time),
		DataPoints: Points(candles),
		Statistics: ComputeStats(candles),
	}
}

// Analyze summarizes the daily history of symbol over period. An empty
// exchange lets the candle source pick the first one with data.
func (a *Analyzer) Analyze(ctx context.Context, symbol, exchange, period string) (*Analysis, error) {
	days, ok := periodDays[period]
	if !ok {
		days = defaultPeriodDays
	}
	series, err := a.fetch(ctx, symbol, exchange, days)
	if err != nil {
		return nil, err
	}
	return build(symbol, series.Source, period, series.Data), nil
}

type Comparison struct {
	Symbol       string            `json:"symbol"`
	Periods      map[string]*Stats `json:"periods"`
	Best1mChange float64           `json:"best1mChange"`
	Best3mChange float64           `json:"best3mChange"`
	Best6mChange float64           `json:"best6mChange"`
	Best1yChange float64           `json:"best1yChange"`
	Volatility1m float64           `json:"volatility1m"`
	Volatility3m float64           `json:"volatility3m"`
	Volatility6m float64           `json:"volatility6m"`
	Volatility1y float64           `json:"volatility1y"`
}

// CompareHistoricalPeriods analyzes every ComparePeriods window
// concurrently. Periods that fail are left out.
func (a *Analyzer) CompareHistoricalPeriods(ctx context.Context, symbol, exchange string) (*Comparison, error) {
	var (
		mu      sync.Mutex
		periods = map[string]*Stats{}
		g       errgroup.Group
	)
	for _, p := range ComparePeriods {
		g.Go(func() error {
			res, err := a.Analyze(ctx, symbol, exchange, p)
			if err != nil {
				a.log.WithComponent("historical_analyzer").WithError(err).WithFields(logger.Fields{
					"symbol": symbol,
					"period": p,
				}).Warn("period analysis failed")
				return nil
			}
			mu.Lock()
			periods[p] = &res.Statistics
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if len(periods) == 0 {
		return nil, models.NewNoDataError("no historical data for %s", symbol)
	}

	c := &Comparison{Symbol: symbol, Periods: periods}
	pick := func(p string, change, vol *float64) {
		if s := periods[p]; s != nil {
			*change, *vol = s.ChangePercent, s.Volatility
		}
	}
	pick("1m", &c.Best1mChange, &c.Volatility1m)
	pick("3m", &c.Best3mChange, &c.Volatility3m)
	pick("6m", &c.Best6mChange, &c.Volatility6m)
	pick("1y", &c.Best1yChange, &c.Volatility1y)
	return c, nil
}

// GetPricePerformance summarizes the daily candles dated within
// [start, end]. The window may not exceed two years.
func (a *Analyzer) GetPricePerformance(ctx context.Context, symbol, exchange string, start, end time.Time) (*Analysis, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s is before start date %s", formatDate(end), formatDate(start))
	}
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	if days > maxDays {
		return nil, fmt.Errorf("%w: date range exceeds maximum of 2 years (%d days)", models.ErrRangeTooLarge, days)
	}

	// Candles are fetched backwards from now, so the window must reach
	// back to start.
	back := int(math.Ceil(a.now().Sub(start).Hours()/24)) + 1
	if back < days {
		back = days
	}
	series, err := a.fetch(ctx, symbol, exchange, back)
	if err != nil {
		return nil, err
	}

	from, to := formatDate(start), formatDate(end)
	var window []models.Candle
	for _, c := range series.Data {
		if d := formatDate(c.Time); d >= from && d <= to {
			window = append(window, c)
		}
	}
	if len(window) == 0 {
		return nil, models.NewNoDataError("no data points in the specified date range")
	}
	return build(symbol, series.Source, PeriodCustom, window), nil
}
