package arbitrage

// Fee is a maker/taker rate pair as a fraction of notional.
type Fee struct {
	Maker float64 `json:"maker"`
	Taker float64 `json:"taker"`
}

// DefaultFee applies to exchanges missing from the table.
var DefaultFee = Fee{Maker: 0.0025, Taker: 0.0025}

// FeeTable is keyed by exchange id.
type FeeTable map[string]Fee

func DefaultFeeTable() FeeTable {
	return FeeTable{
		"binance":  {Maker: 0.001, Taker: 0.001},
		"coinbase": {Maker: 0.004, Taker: 0.006},
		"kraken":   {Maker: 0.0016, Taker: 0.0026},
		"bybit":    {Maker: 0.0001, Taker: 0.0001},
		"kucoin":   {Maker: 0.001, Taker: 0.001},
		"okx":      {Maker: 0.0002, Taker: 0.0005},
	}
}

func (t FeeTable) For(exchange string) Fee {
	if f, ok := t[exchange]; ok {
		return f
	}
	return DefaultFee
}
