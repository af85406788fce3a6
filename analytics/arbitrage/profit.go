package arbitrage

import "github.com/shopspring/decimal"

type TradeProjection struct {
	TradeAmount float64 `json:"tradeAmount"`
	BuyAmount   float64 `json:"buyAmount"`
	BuyTotal    float64 `json:"buyTotal"`
	SellTotal   float64 `json:"sellTotal"`
	BuyFee      float64 `json:"buyFee"`
	SellFee     float64 `json:"sellFee"`
	TotalFees   float64 `json:"totalFees"`
	NetProfit   float64 `json:"netProfit"`
	ROI         float64 `json:"roi"`
}

// CalculateTradeProfit projects spending tradeAmount of quote currency on
// the buy leg and selling everything on the sell leg, after taker fees.
func CalculateTradeProfit(o Opportunity, tradeAmount float64, fees FeeTable) TradeProjection {
	if fees == nil {
		fees = DefaultFeeTable()
	}
	amount := decimal.NewFromFloat(tradeAmount)
	buyPrice := decimal.NewFromFloat(o.BuyPrice)
	if buyPrice.IsZero() {
		return TradeProjection{TradeAmount: tradeAmount, BuyTotal: tradeAmount}
	}
	buyAmount := amount.Div(buyPrice)
	buyTotal := amount
	sellTotal := buyAmount.Mul(decimal.NewFromFloat(o.SellPrice))
	buyFee := buyTotal.Mul(decimal.NewFromFloat(fees.For(o.BuyExchange).Taker))
	sellFee := sellTotal.Mul(decimal.NewFromFloat(fees.For(o.SellExchange).Taker))
	totalFees := buyFee.Add(sellFee)
	net := sellTotal.Sub(buyTotal).Sub(totalFees)
	roi := net.Div(buyTotal).Mul(decimal.NewFromInt(100))

	return TradeProjection{
		TradeAmount: tradeAmount,
		BuyAmount:   buyAmount.Round(8).InexactFloat64(),
		BuyTotal:    buyTotal.Round(2).InexactFloat64(),
		SellTotal:   sellTotal.Round(2).InexactFloat64(),
		BuyFee:      buyFee.Round(2).InexactFloat64(),
		SellFee:     sellFee.Round(2).InexactFloat64(),
		TotalFees:   totalFees.Round(2).InexactFloat64(),
		NetProfit:   net.Round(2).InexactFloat64(),
		ROI:         roi.Round(2).InexactFloat64(),
	}
}
