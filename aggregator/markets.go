package aggregator

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"cryptolens/internal/exchange"
	"cryptolens/models"
)

// GetMarkets lists exchange's markets sorted by symbol.
func (a *Aggregator) GetMarkets(ctx context.Context, ex string) ([]models.Market, error) {
	if !a.pool.Has(ex) {
		return nil, fmt.Errorf("%w: %s", exchange.ErrExchangeNotFound, ex)
	}
	listing, err := a.pool.Markets(ctx, ex)
	if err != nil {
		return nil, fmt.Errorf("failed to load markets: %w", err)
	}
	out := make([]models.Market, 0, len(listing))
	for _, m := range listing {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func formatNum(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func itoa(n int) string { return strconv.Itoa(n) }

// ValidateOrder checks an order against the exchange's market limits. It
// never fails; problems are reported in Errors. A zero price skips the
// price checks.
func (a *Aggregator) ValidateOrder(ctx context.Context, ex, symbol, side string, amount, price float64) models.ValidationResult {
	if !a.pool.Has(ex) {
		return models.ValidationResult{Errors: []string{fmt.Sprintf("Exchange %s not found", ex)}}
	}

	var errs []string
	switch strings.ToLower(side) {
	case "buy", "sell":
	default:
		errs = append(errs, fmt.Sprintf("Invalid side %s", side))
	}
	if amount <= 0 {
		errs = append(errs, "Amount must be positive")
	}

	pair, ok := a.pool.FormatSymbolForExchange(ctx, ex, symbol)
	if !ok {
		return models.ValidationResult{Errors: append(errs, fmt.Sprintf("Symbol %s not supported on %s", symbol, ex))}
	}
	listing, err := a.pool.Markets(ctx, ex)
	if err != nil {
		return models.ValidationResult{Errors: append(errs, err.Error())}
	}
	market, ok := listing[strings.ToUpper(pair)]
	if !ok {
		return models.ValidationResult{Errors: append(errs, fmt.Sprintf("Market %s not found on %s", pair, ex))}
	}

	lim := market.Limits
	if amount > 0 {
		if amount < lim.Amount.Min {
			errs = append(errs, fmt.Sprintf("Amount %s below minimum %s", formatNum(amount), formatNum(lim.Amount.Min)))
		}
		if lim.Amount.Max > 0 && amount > lim.Amount.Max {
			errs = append(errs, fmt.Sprintf("Amount %s above maximum %s", formatNum(amount), formatNum(lim.Amount.Max)))
		}
	}
	if price > 0 {
		if price < lim.Price.Min {
			errs = append(errs, fmt.Sprintf("Price %s below minimum %s", formatNum(price), formatNum(lim.Price.Min)))
		}
		if lim.Price.Max > 0 && price > lim.Price.Max {
			errs = append(errs, fmt.Sprintf("Price %s above maximum %s", formatNum(price), formatNum(lim.Price.Max)))
		}
	}

	return models.ValidationResult{Valid: len(errs) == 0, Errors: errs, Market: &market}
}

// Asset is a listed symbol merged with its configured display metadata.
type Asset struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// GetAvailableAssets lists exchange's symbols with the asset override
// table applied; hidden symbols are left out.
func (a *Aggregator) GetAvailableAssets(ctx context.Context, ex string) ([]Asset, error) {
	markets, err := a.GetMarkets(ctx, ex)
	if err != nil {
		return nil, err
	}
	out := make([]Asset, 0, len(markets))
	for _, m := range markets {
		override := a.assets[m.Symbol]
		if override.Hidden {
			continue
		}
		out = append(out, Asset{
			Symbol:      m.Symbol,
			Name:        override.Name,
			Description: override.Description,
			Icon:        override.Icon,
		})
	}
	return out, nil
}
