package orderbook

import (
	"math"
	"strings"
	"testing"

	"cryptolens/models"
)

func fixtureBook() *models.OrderBook {
	return &models.OrderBook{
		Symbol:   "BTC/USDT",
		Exchange: "binance",
		Bids:     []models.PriceLevel{{Price: 100, Amount: 5}, {Price: 99.5, Amount: 3}, {Price: 98, Amount: 2}},
		Asks:     []models.PriceLevel{{Price: 101, Amount: 4}, {Price: 101.5, Amount: 2}, {Price: 107, Amount: 10}},
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCompute(t *testing.T) {
	m := Compute(fixtureBook(), 0)
	if m.Mid != 100.5 || m.Spread != 1 || !near(m.SpreadPercent, 0.995) {
		t.Fatalf("unexpected mid/spread %v %v %v", m.Mid, m.Spread, m.SpreadPercent)
	}
	a := m.Analysis
	if a.TotalBidVolume != 10 || a.TotalAskVolume != 16 || !near(a.VolumeImbalance, -23.08) {
		t.Fatalf("unexpected volumes %+v", a)
	}
	if a.BidDepth1Pct != 8 || a.AskDepth1Pct != 6 || a.BidDepth5Pct != 10 || a.AskDepth5Pct != 6 {
		t.Fatalf("unexpected depth %+v", a)
	}
	if a.Pressure != PressureSell {
		t.Fatalf("expected sell pressure, got %s", a.Pressure)
	}
	if !near(a.LiquidityScore, 18.38) {
		t.Fatalf("unexpected liquidity score %v", a.LiquidityScore)
	}
	if m.AskWalls[0].Price != 107 || m.BidWalls[0].Price != 100 || len(m.AskWalls) != 3 {
		t.Fatalf("unexpected walls %+v %+v", m.BidWalls, m.AskWalls)
	}
	last := m.Asks[len(m.Asks)-1]
	if last.Cumulative != 16 || last.CumulativePercent != 100 {
		t.Fatalf("unexpected cumulative %+v", last)
	}
}

func TestComputeRespectsLimit(t *testing.T) {
	m := Compute(fixtureBook(), 2)
	if len(m.Bids) != 2 || len(m.Asks) != 2 || m.Analysis.TotalAskVolume != 6 {
		t.Fatalf("limit not applied: %+v", m.Analysis)
	}
}

func TestComputeEmptyAskSide(t *testing.T) {
	book := &models.OrderBook{Bids: []models.PriceLevel{{Price: 10, Amount: 1}}}
	m := Compute(book, 0)
	if m.Analysis.BidAskRatio != 1 || m.Analysis.VolumeImbalance != 100 {
		t.Fatalf("unexpected one-sided analysis %+v", m.Analysis)
	}
}

func TestImbalanceBounds(t *testing.T) {
	books := []*models.OrderBook{
		{Bids: []models.PriceLevel{{Price: 1, Amount: 1e9}}, Asks: []models.PriceLevel{{Price: 1.01, Amount: 1e-9}}},
		{Bids: []models.PriceLevel{{Price: 1, Amount: 1e-9}}, Asks: []models.PriceLevel{{Price: 1.01, Amount: 1e9}}},
	}
	for _, b := range books {
		imb := Compute(b, 0).Analysis.VolumeImbalance
		if imb < -100 || imb > 100 {
			t.Fatalf("imbalance out of range: %v", imb)
		}
	}
}

func TestPressure(t *testing.T) {
	cases := []struct {
		imbalance, bid, ask float64
		want                string
	}{
		{35, 10, 5, PressureStrongBuy},
		{35, 5, 10, PressureBuy},
		{15, 1, 1, PressureBuy},
		{0, 1, 1, PressureNeutral},
		{-15, 1, 1, PressureSell},
		{-35, 5, 10, PressureStrongSell},
		{-35, 10, 5, PressureSell},
	}
	for _, c := range cases {
		if got := Pressure(c.imbalance, c.bid, c.ask); got != c.want {
			t.Errorf("Pressure(%v,%v,%v) = %s, want %s", c.imbalance, c.bid, c.ask, got, c.want)
		}
	}
}

func TestRating(t *testing.T) {
	cases := map[float64]string{80: "Excellent", 79.9: "Good", 60: "Good", 40: "Fair", 39: "Poor"}
	for score, want := range cases {
		if got := Rating(score); got != want {
			t.Errorf("Rating(%v) = %s, want %s", score, got, want)
		}
	}
}

func TestAlerts(t *testing.T) {
	m := Compute(fixtureBook(), 0)
	alerts := Alerts(m, Thresholds{})
	if len(alerts) != 1 || alerts[0] != "Poor liquidity: score 18.38 (threshold: 30)" {
		t.Fatalf("unexpected default alerts %v", alerts)
	}
	alerts = Alerts(m, Thresholds{SpreadPercent: 0.5, ImbalancePercent: 20, LiquidityScore: 10})
	joined := strings.Join(alerts, "|")
	if !strings.Contains(joined, "High spread: 0.9950% (threshold: 0.5%)") ||
		!strings.Contains(joined, "Strong sell pressure: 23.08% imbalance (threshold: 20%)") ||
		strings.Contains(joined, "Poor liquidity") {
		t.Fatalf("unexpected custom alerts %v", alerts)
	}
}
