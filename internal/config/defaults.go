package config

import (
	"strings"

	"upbot/internal/indicator"
	"upbot/internal/strategy"
)

func indicatorOperator(name string) (indicator.Operator, bool) {
	return indicator.OperatorFor(name)
}

// macdCandleFloor 返回交叉判定所需的最少蜡烛数：
// 完整预热期 slow+signal-2，再加上当前与前一根两个可用值。
func macdCandleFloor() int {
	o := indicator.DefaultOptions().MACD
	return o.SlowPeriod + o.SignalPeriod
}

// DefaultRules 返回某个指标的默认买卖条件表。
// 这些参数是长期实盘沉淀下来的基线，配置未给规则时使用。
func DefaultRules(operator string) (bid, ask []strategy.Condition) {
	switch {
	case strings.EqualFold(operator, "MACD"):
		bid = []strategy.Condition{
			{Indicator: "MACD", Cross: indicator.CrossGolden, Min: -0.05, Max: 0.05, Rate: 1.0},
			{Indicator: "MACD", Cross: indicator.SignalNone, Min: -0.15, Max: -0.05, Rate: 2.0},
		}
		ask = []strategy.Condition{
			{Indicator: "MACD", Cross: indicator.CrossDeath, Min: -0.01, Max: 0.01, Rate: 0.33},
			{Indicator: "MACD", Cross: indicator.SignalNone, Min: 0.05, Max: 0.1, Rate: 0.5},
			{Indicator: "MACD", Cross: indicator.SignalNone, Min: 0.1, Max: 0.3, Rate: 1.0},
		}
	case strings.EqualFold(operator, "RSI"):
		bid = []strategy.Condition{
			{Indicator: "RSI", Pattern: indicator.ShapeW, Min: 0, Max: 30, Rate: 1.0},
			{Indicator: "RSI", Pattern: indicator.ShapeW, Min: 30, Max: 70, Rate: 2.0},
			{Indicator: "RSI", Pattern: indicator.ShapeW, Min: 70, Max: 100, Rate: 3.0},
		}
		ask = []strategy.Condition{
			{Indicator: "RSI", Pattern: indicator.ShapeM, Min: 70, Max: 100, Rate: 0.33},
			{Indicator: "RSI", Pattern: indicator.ShapeM, Min: 30, Max: 70, Rate: 0.5},
			{Indicator: "RSI", Pattern: indicator.ShapeM, Min: 0, Max: 30, Rate: 1.0},
		}
	case strings.EqualFold(operator, "WR"):
		bid = []strategy.Condition{
			{Indicator: "WR", Pattern: indicator.ShapeW, Min: -100, Max: -70, Rate: 1.0},
			{Indicator: "WR", Pattern: indicator.ShapeW, Min: -70, Max: -30, Rate: 2.0},
			{Indicator: "WR", Pattern: indicator.ShapeW, Min: -30, Max: 0, Rate: 3.0},
		}
		ask = []strategy.Condition{
			{Indicator: "WR", Pattern: indicator.ShapeM, Min: -30, Max: -10, Rate: 0.33},
			{Indicator: "WR", Pattern: indicator.ShapeM, Min: -70, Max: -30, Rate: 0.5},
			{Indicator: "WR", Pattern: indicator.ShapeM, Min: -100, Max: -70, Rate: 1.0},
		}
	}
	return bid, ask
}
