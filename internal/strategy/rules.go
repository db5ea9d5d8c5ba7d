// Package strategy 实现规则表判定、下单时间闸以及实盘/回测两种策略主循环。
package strategy

import (
	"strings"

	"upbot/internal/indicator"
	"upbot/internal/market"
	"upbot/internal/pkg/calc"
)

// Condition 是规则表中的一条规则：指定指标、要求的交叉或形态分类、
// 数值区间与押注倍数。规则表自上而下求值，先命中者生效。
type Condition struct {
	Indicator string  `mapstructure:"indicator" yaml:"indicator"`
	Cross     string  `mapstructure:"cross" yaml:"cross,omitempty"`
	Pattern   string  `mapstructure:"pattern" yaml:"pattern,omitempty"`
	Min       float64 `mapstructure:"min" yaml:"min"`
	Max       float64 `mapstructure:"max" yaml:"max"`
	Rate      float64 `mapstructure:"rate" yaml:"rate"`
}

// IsPattern 报告该规则是形态规则还是交叉规则。
// 交叉规则的 Cross 可以显式写 "none"（无交叉时按区间加减仓）。
func (c Condition) IsPattern() bool { return strings.TrimSpace(c.Pattern) != "" }

// Evaluate 对窗口求值规则表并返回押注量；0 表示本轮不交易。
//
// 交叉规则：分类命中后比较趋势值的相对变化 (cur-prev)/prev 是否落在
// [Min, Max]。前一根趋势值缺失或为零时整轮判定放弃（沿用线上行为，
// 不是跳到下一条规则）。
// 形态规则：分类命中后比较当前指标原始值是否落在 [Min, Max]。
//
// bid 方向返回现金额，ask 方向返回按现价折算的币量（8 位小数）。
func Evaluate(scope []market.Decorated, side string, rules []Condition, baseBet, basisPrice float64) float64 {
	if len(scope) == 0 || len(rules) == 0 {
		return 0
	}
	price := basisPrice
	if price <= 0 {
		price = scope[len(scope)-1].Close
	}
	bet := baseBet
	if side == market.SideAsk {
		if price <= 0 {
			return 0
		}
		bet = calc.RoundVolume(baseBet / price)
	}
	last := len(scope) - 1

	for _, cond := range rules {
		op, ok := indicator.OperatorFor(cond.Indicator)
		if !ok {
			continue
		}
		sign := op.Classify(scope)

		if cond.IsPattern() {
			if !strings.EqualFold(sign, cond.Pattern) {
				continue
			}
			val, ok := op.ValueAt(scope, last)
			if !ok {
				continue
			}
			if val >= cond.Min && val <= cond.Max {
				return bet * cond.Rate
			}
			continue
		}

		if !strings.EqualFold(sign, cond.Cross) {
			continue
		}
		cur, okCur := op.ValueAt(scope, last)
		prev, okPrev := op.ValueAt(scope, last-1)
		if !okCur || !okPrev || cur == 0 || prev == 0 {
			return 0
		}
		ratio := (cur - prev) / prev
		if ratio >= cond.Min && ratio <= cond.Max {
			return bet * cond.Rate
		}
	}
	return 0
}
