package indicator

import (
	"strings"

	"upbot/internal/market"
)

// Operator 把“某个指标在窗口上的分类与取值”抽象成统一接口，
// 规则判定按接口分发，避免在判定器里散落字符串比对。
type Operator interface {
	Name() string
	// Classify 返回交叉或形态分类（golden/death/W/M/none）。
	Classify(scope []market.Decorated) string
	// ValueAt 返回窗口内第 idx 根蜡烛上的指标原始值；不可用时 ok 为 false。
	ValueAt(scope []market.Decorated, idx int) (float64, bool)
}

type macdOperator struct{}

func (macdOperator) Name() string { return "MACD" }

func (macdOperator) Classify(scope []market.Decorated) string {
	return MACDCross(scope)
}

func (macdOperator) ValueAt(scope []market.Decorated, idx int) (float64, bool) {
	if idx < 0 || idx >= len(scope) || scope[idx].MACD == nil {
		return 0, false
	}
	return scope[idx].MACD.MACD, true
}

type rsiOperator struct{ period int }

func (rsiOperator) Name() string { return "RSI" }

func (o rsiOperator) Classify(scope []market.Decorated) string {
	return RSIShape(scope, o.period)
}

func (rsiOperator) ValueAt(scope []market.Decorated, idx int) (float64, bool) {
	if idx < 0 || idx >= len(scope) || scope[idx].RSI == nil {
		return 0, false
	}
	return *scope[idx].RSI, true
}

type wrOperator struct{ period int }

func (wrOperator) Name() string { return "WR" }

func (o wrOperator) Classify(scope []market.Decorated) string {
	return WRShape(scope, o.period)
}

func (wrOperator) ValueAt(scope []market.Decorated, idx int) (float64, bool) {
	if idx < 0 || idx >= len(scope) || scope[idx].WR == nil {
		return 0, false
	}
	return *scope[idx].WR, true
}

const defaultShapePeriod = 5

// OperatorFor 按名称解析指标算子（大小写不敏感）。
func OperatorFor(name string) (Operator, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "MACD":
		return macdOperator{}, true
	case "RSI":
		return rsiOperator{period: defaultShapePeriod}, true
	case "WR":
		return wrOperator{period: defaultShapePeriod}, true
	default:
		return nil, false
	}
}
