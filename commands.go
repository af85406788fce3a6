package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cryptolens/analytics/arbitrage"
	"cryptolens/analytics/indicators"
	"cryptolens/analytics/liquidity"
	"cryptolens/analytics/orderbook"
	"cryptolens/engine"
	"cryptolens/models"
)

const dateLayout = "2006-01-02"

// run executes one non-serve command and returns its JSON payload. Nil
// lookups become ErrNoData so they surface as errors.
func run(ctx context.Context, eng *engine.Engine, f flags) (any, error) {
	exchanges := f.exchangeList()
	switch f.cmd {
	case "status":
		return map[string]any{
			"exchanges": eng.Exchanges.ExchangeStatus(),
			"caches":    eng.CacheStats(),
		}, nil
	case "health":
		return eng.Exchanges.HealthCheck(ctx), nil
	case "ticker":
		t := eng.Market.GetTickerFromExchange(ctx, f.exchange, f.symbol)
		if t == nil {
			return nil, models.NewNoDataError("%s not available on %s", f.symbol, f.exchange)
		}
		return t, nil
	case "prices":
		return eng.Market.GetPricesFromMultipleExchanges(ctx, f.symbol, exchanges), nil
	case "best":
		return eng.Market.GetBestPrice(ctx, f.symbol, exchanges)
	case "ohlcv":
		preferred := exchanges
		if len(preferred) == 0 {
			preferred = []string{f.exchange}
		}
		return eng.Market.GetOHLCV(ctx, f.symbol, f.timeframe, f.limit, preferred), nil
	case "orderbook":
		return eng.OrderBook.Analyze(ctx, f.exchange, f.symbol, f.limit)
	case "alerts":
		return eng.OrderBook.CheckLiquidityAlerts(ctx, f.exchange, f.symbol, orderbook.Thresholds{})
	case "profile":
		return eng.OrderBook.GetLiquidityProfile(ctx, f.symbol, exchanges), nil
	case "liquidity":
		var change *float64
		if f.avgChange != "" {
			v, err := strconv.ParseFloat(f.avgChange, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid -avg-change %q: %w", f.avgChange, err)
			}
			change = &v
		}
		m, err := eng.Liquidity.CalculateLiquidityMetrics(ctx, f.exchange, f.symbol, change)
		if err != nil {
			return nil, err
		}
		return map[string]any{"metrics": m, "warnings": liquidity.Warnings(m)}, nil
	case "rank":
		return eng.Liquidity.RankAssetsByLiquidity(ctx, f.symbol, exchanges)
	case "arbitrage":
		opps, err := eng.Arbitrage.FindOpportunities(ctx, f.symbol, exchanges, f.minProfit)
		if err != nil || f.amount <= 0 || len(opps) == 0 {
			return opps, err
		}
		return map[string]any{
			"opportunities": opps,
			"projection":    arbitrage.CalculateTradeProfit(opps[0], f.amount, eng.Arbitrage.Fees()),
		}, nil
	case "indicators":
		limit := f.limit
		if limit < 200 {
			limit = 200
		}
		series := eng.Market.GetOHLCV(ctx, f.symbol, f.timeframe, limit, exchanges)
		if len(series.Data) == 0 {
			return nil, models.NewNoDataError("no candles for %s", f.symbol)
		}
		return indicators.CalculateAll(series.Data)
	case "historical":
		return eng.Historical.Analyze(ctx, f.symbol, optional(f.exchange, exchanges), f.period)
	case "compare":
		return eng.Historical.CompareHistoricalPeriods(ctx, f.symbol, optional(f.exchange, exchanges))
	case "performance":
		start, err := time.Parse(dateLayout, f.start)
		if err != nil {
			return nil, fmt.Errorf("invalid -start: %w", err)
		}
		end, err := time.Parse(dateLayout, f.end)
		if err != nil {
			return nil, fmt.Errorf("invalid -end: %w", err)
		}
		return eng.Historical.GetPricePerformance(ctx, f.symbol, optional(f.exchange, exchanges), start, end)
	case "sentiment":
		return eng.Sentiment.MarketSentiment(ctx)
	case "assets":
		return eng.Market.GetAvailableAssets(ctx, f.exchange)
	case "markets":
		return eng.Market.GetMarkets(ctx, f.exchange)
	case "validate":
		return eng.Market.ValidateOrder(ctx, f.exchange, f.symbol, f.side, f.amount, f.price), nil
	case "cache":
		return eng.CacheStats(), nil
	default:
		return nil, fmt.Errorf("unknown command %q", f.cmd)
	}
}

// optional picks the one exchange a historical lookup prefers: the single
// -exchanges entry when exactly one is given, else -exchange.
func optional(exchange string, list []string) string {
	if len(list) == 1 {
		return list[0]
	}
	return exchange
}
