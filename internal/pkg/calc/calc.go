// Package calc 收敛钱包与手续费相关的金额运算。
// 全部经由 decimal 舍入，避免二进制浮点在账本里累积误差：
// 现金保留 1 位小数，币量保留 8 位小数。
package calc

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	// FeeRate 是市价单的交易手续费率（0.05%）。
	FeeRate = 0.0005
	// MinimumNotional 是交易所的最小下单金额下限。5000 整不被接受，所以取 5001。
	MinimumNotional = 5001.0

	cashPlaces   = 1
	volumePlaces = 8
)

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// RoundCash 按现金精度（1 位小数）舍入。
func RoundCash(v float64) float64 { return round(v, cashPlaces) }

// RoundVolume 按币量精度（8 位小数）舍入。
func RoundVolume(v float64) float64 { return round(v, volumePlaces) }

// CashFee 计算现金金额的手续费，按现金精度舍入。
func CashFee(amount float64) float64 {
	return round(amount*FeeRate, cashPlaces)
}

// VolumeFee 计算币量的手续费，按币量精度舍入。
func VolumeFee(volume float64) float64 {
	return round(volume*FeeRate, volumePlaces)
}

// AveragePrice 计算追加买入后的成交量加权平均成本，保留 8 位小数。
// 首次买入直接取本次价格；本次无追加时保持原均价。
func AveragePrice(originalBalance, originalPrice, additionBalance, additionPrice float64) float64 {
	if originalBalance == 0 && originalPrice == 0 {
		return additionPrice
	}
	if additionBalance == 0 && additionPrice == 0 {
		return originalPrice
	}
	total := decimal.NewFromFloat(originalBalance).Add(decimal.NewFromFloat(additionBalance))
	if total.IsZero() {
		return 0
	}
	cost := decimal.NewFromFloat(originalPrice).Mul(decimal.NewFromFloat(originalBalance)).
		Add(decimal.NewFromFloat(additionPrice).Mul(decimal.NewFromFloat(additionBalance)))
	f, _ := cost.Div(total).Round(volumePlaces).Float64()
	return f
}

// CurrentRate 计算当前价相对平均成本的收益率（百分比，保留 2 位小数）。
// 均价或持仓为零时返回 0。
func CurrentRate(currentPrice, avgBuyPrice, quantity float64) float64 {
	if avgBuyPrice == 0 || quantity == 0 {
		return 0
	}
	profit := (currentPrice - avgBuyPrice) * quantity
	rate := profit / (avgBuyPrice * quantity) * 100
	return round(rate, 2)
}

// MinimumVolume 返回按当前价换算的最小可交易币量（8 位小数）。
func MinimumVolume(price float64) float64 {
	if price <= 0 {
		return 0
	}
	return round(MinimumNotional/price, volumePlaces)
}
