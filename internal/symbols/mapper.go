package symbols

import "strings"

// quoteSuffixes are tried longest first when splitting a concatenated
// native symbol such as BTCUSDT.
var quoteSuffixes = []string{"FDUSD", "USDT", "USDC", "BUSD", "TUSD", "USD", "EUR", "TRY", "BTC", "ETH", "BNB", "DAI"}

// ToNative converts a unified BASE/QUOTE symbol to the exchange's own
// format. Symbols without a separator are assumed native and returned as is.
func ToNative(exchange, unified string) string {
	base, quote, ok := strings.Cut(strings.ToUpper(unified), "/")
	if !ok {
		return unified
	}
	switch strings.ToLower(exchange) {
	case "binance", "bybit":
		return base + quote
	case "kucoin", "okx", "coinbase":
		return base + "-" + quote
	case "kraken":
		if base == "BTC" {
			base = "XBT"
		}
		return base + "/" + quote
	default:
		return base + "/" + quote
	}
}

// FromNative converts an exchange-native spot symbol back to BASE/QUOTE.
// It returns "" when the symbol cannot be split.
func FromNative(exchange, native string) string {
	sym := strings.ToUpper(strings.TrimSpace(native))
	var base, quote string
	switch strings.ToLower(exchange) {
	case "kucoin", "okx", "coinbase":
		var ok bool
		if base, quote, ok = strings.Cut(sym, "-"); !ok {
			return ""
		}
	case "kraken":
		var ok bool
		if base, quote, ok = strings.Cut(sym, "/"); !ok {
			return ""
		}
	default:
		for _, q := range quoteSuffixes {
			if strings.HasSuffix(sym, q) && len(sym) > len(q) {
				base, quote = strings.TrimSuffix(sym, q), q
				break
			}
		}
	}
	if base == "" || quote == "" {
		return ""
	}
	if base == "XBT" {
		base = "BTC"
	}
	return base + "/" + quote
}
