package orderbook

import (
	"context"
	"errors"
	"testing"

	"cryptolens/internal/limiter"
	"cryptolens/models"
)

type stubBooks map[string]*models.OrderBook

func (s stubBooks) FetchOrderBook(_ context.Context, exchange, _ string, _ int) (*models.OrderBook, error) {
	b, ok := s[exchange]
	if !ok {
		return nil, errors.New("unavailable")
	}
	return b, nil
}

func TestAnalyze(t *testing.T) {
	a := NewAnalyzer(stubBooks{"binance": fixtureBook(), "empty": {}}, limiter.New("analytic", 2), nil)
	m, err := a.Analyze(context.Background(), "binance", "BTC", 0)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if m.Symbol != "BTC" || m.Exchange != "binance" {
		t.Fatalf("unexpected identity %s %s", m.Symbol, m.Exchange)
	}
	if _, err := a.Analyze(context.Background(), "empty", "BTC", 0); !errors.Is(err, models.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestCheckLiquidityAlerts(t *testing.T) {
	a := NewAnalyzer(stubBooks{"binance": fixtureBook()}, limiter.New("analytic", 2), nil)
	report, err := a.CheckLiquidityAlerts(context.Background(), "binance", "BTC/USDT", Thresholds{})
	if err != nil {
		t.Fatalf("CheckLiquidityAlerts: %v", err)
	}
	if len(report.Alerts) != 1 || report.Metrics == nil {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestGetLiquidityProfileToleratesFailures(t *testing.T) {
	books := stubBooks{"binance": fixtureBook(), "okx": fixtureBook()}
	a := NewAnalyzer(books, limiter.New("analytic", 1), func() []string { return []string{"binance", "bybit", "okx"} })
	profile := a.GetLiquidityProfile(context.Background(), "BTC/USDT", nil)
	if len(profile) != 2 || profile[0].Exchange != "binance" || profile[1].Exchange != "okx" {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if profile[0].Rating != "Poor" {
		t.Fatalf("unexpected rating %s", profile[0].Rating)
	}
}
