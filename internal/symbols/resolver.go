package symbols

import "strings"

// QuotePriority is the order in which quote currencies are tried when a
// caller passes a bare base asset.
var QuotePriority = []string{"USDC", "USDT", "USD", "BUSD"}

// HasPairSeparator reports whether symbol is already a BASE/QUOTE pair.
func HasPairSeparator(symbol string) bool {
	return strings.Contains(symbol, "/")
}

// ResolvePair maps symbol to a listed pair. A symbol that already carries
// a separator is returned unchanged. Otherwise the first BASE/QUOTE for which
// listed returns true wins. ok is false when nothing matches.
func ResolvePair(symbol string, listed func(pair string) bool) (pair string, ok bool) {
	if HasPairSeparator(symbol) {
		return symbol, true
	}
	base := strings.ToUpper(strings.TrimSpace(symbol))
	if base == "" || listed == nil {
		return "", false
	}
	for _, quote := range QuotePriority {
		candidate := base + "/" + quote
		if listed(candidate) {
			return candidate, true
		}
	}
	return "", false
}
