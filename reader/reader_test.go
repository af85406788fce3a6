package reader

import (
	"errors"
	"testing"
	"time"

	"cryptolens/config"
	"cryptolens/models"
)

func TestOptionsFor(t *testing.T) {
	cfg := config.Default()
	cfg.Exchanges["okx"] = config.ExchangeConfig{
		Enabled: true, BaseURL: "https://www.okx.com/", APIKey: "k", APISecret: "s", Passphrase: "p",
	}
	opts := OptionsFor("okx", cfg)
	if opts.BaseURL != "https://www.okx.com" {
		t.Errorf("trailing slash not trimmed: %s", opts.BaseURL)
	}
	if opts.Passphrase != "p" || opts.Timeout != 30*time.Second {
		t.Errorf("unexpected options %+v", opts)
	}
	if c := NewHTTPClient(opts); c.Timeout != 30*time.Second {
		t.Errorf("client timeout %v", c.Timeout)
	}
}

func TestParseLevels(t *testing.T) {
	levels := ParseLevels([][]string{{"100.5", "2"}, {"bad"}, {"99", "x", "0", "3"}})
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(levels))
	}
	if levels[0].Price != 100.5 || levels[0].Amount != 2 {
		t.Errorf("unexpected first level %+v", levels[0])
	}
	if levels[1].Amount != 0 {
		t.Errorf("malformed amount should be 0, got %v", levels[1].Amount)
	}
}

func TestLookupMarket(t *testing.T) {
	markets := map[string]models.Market{"BTC/USDT": {ID: "BTCUSDT"}}
	if m, err := LookupMarket(markets, "btc/usdt"); err != nil || m.ID != "BTCUSDT" {
		t.Fatalf("lookup failed: %v %v", m, err)
	}
	if _, err := LookupMarket(markets, "DOGE/USDT"); !errors.Is(err, ErrSymbolNotFound) {
		t.Fatalf("expected ErrSymbolNotFound, got %v", err)
	}
}
