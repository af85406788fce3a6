package aggregator

import (
	"context"
	"sort"

	"cryptolens/internal/mathx"
	"cryptolens/models"
)

// QuoteSpread is a quote with its own bid/ask spread in percent.
type QuoteSpread struct {
	models.Ticker
	Spread float64 `json:"spread"`
}

type BestPriceAnalysis struct {
	Tightest string `json:"tightest"`
	// SpreadPct is (highest bid - lowest ask) / lowest ask * 100. It is
	// negative whenever books do not cross.
	SpreadPct float64 `json:"spread_pct"`
}

type BestPrice struct {
	Best     QuoteSpread               `json:"best"`
	All      map[string]*models.Ticker `json:"all"`
	Analysis BestPriceAnalysis         `json:"analysis"`
}

// GetBestPrice picks the exchange quoting the tightest spread. It fails
// with a NoDataError when no exchange returns a two-sided quote.
func (a *Aggregator) GetBestPrice(ctx context.Context, symbol string, exchanges []string) (*BestPrice, error) {
	all := a.GetPricesFromMultipleExchanges(ctx, symbol, exchanges)

	ids := make([]string, 0, len(all))
	for ex := range all {
		ids = append(ids, ex)
	}
	sort.Strings(ids)

	var valid []QuoteSpread
	for _, ex := range ids {
		t := all[ex]
		if t == nil || t.Bid <= 0 || t.Ask <= 0 {
			continue
		}
		valid = append(valid, QuoteSpread{Ticker: *t, Spread: (t.Ask - t.Bid) / t.Bid * 100})
	}
	if len(valid) == 0 {
		return nil, models.NewNoDataError("no valid prices found for %s", symbol)
	}

	best := valid[0]
	bestAsk, worstBid := valid[0].Ask, valid[0].Bid
	for _, q := range valid[1:] {
		if q.Spread < best.Spread {
			best = q
		}
		if q.Ask < bestAsk {
			bestAsk = q.Ask
		}
		if q.Bid > worstBid {
			worstBid = q.Bid
		}
	}
	best.Spread = mathx.Round(best.Spread, 4)

	return &BestPrice{
		Best: best,
		All:  all,
		Analysis: BestPriceAnalysis{
			Tightest:  best.Exchange,
			SpreadPct: mathx.Round((worstBid-bestAsk)/bestAsk*100, 4),
		},
	}, nil
}
