package indicator

import "upbot/internal/market"

// 交叉与形态分类结果。
const (
	CrossGolden = "golden"
	CrossDeath  = "death"

	ShapeW = "W"
	ShapeM = "M"

	SignalNone = "none"
)

// MACDCross 判定最近两根蜡烛之间的趋势交叉。
//
// 注意：这里沿用了线上系统观察到的判定式：
// 金叉 = 趋势值上行且信号值下行，死叉相反。这与教科书式
// “MACD 线穿越信号线”的定义并不一致，属刻意保留的行为，
// 调整前需同步修订既有规则表的数值区间。
func MACDCross(scope []market.Decorated) string {
	if len(scope) < 2 {
		return SignalNone
	}
	last := scope[len(scope)-1]
	prev := scope[len(scope)-2]
	if last.MACD == nil || prev.MACD == nil {
		return SignalNone
	}
	if last.MACD.MACD > prev.MACD.MACD && last.MACD.Signal < prev.MACD.Signal {
		return CrossGolden
	}
	if last.MACD.MACD < prev.MACD.MACD && last.MACD.Signal > prev.MACD.Signal {
		return CrossDeath
	}
	return SignalNone
}

// Shape 对一串指标值判定 5 点锯齿形态：
// 严格的 下-上-下-上-下 为 W，严格的 上-下-上-下-上 为 M。
// 比较使用精确大小关系，不设容差。可用值不足 period 个返回 none。
// 锯齿判定固定看 5 个点，窗口小于 5 时无法构成形态。
func Shape(values []float64, period int) string {
	if period <= 0 {
		period = 5
	}
	if period < 5 || len(values) < period {
		return SignalNone
	}
	v := values[len(values)-period:]
	isW := v[0] < v[1] && v[1] > v[2] && v[2] < v[3] && v[3] > v[4]
	isM := v[0] > v[1] && v[1] < v[2] && v[2] > v[3] && v[3] < v[4]
	if isW {
		return ShapeW
	}
	if isM {
		return ShapeM
	}
	return SignalNone
}

func availableValues(scope []market.Decorated, pick func(market.Decorated) (float64, bool)) []float64 {
	out := make([]float64, 0, len(scope))
	for _, c := range scope {
		if v, ok := pick(c); ok {
			out = append(out, v)
		}
	}
	return out
}

// RSIShape 取窗口内最近的可用 RSI 值做形态判定。
func RSIShape(scope []market.Decorated, period int) string {
	return Shape(availableValues(scope, func(c market.Decorated) (float64, bool) {
		if c.RSI == nil {
			return 0, false
		}
		return *c.RSI, true
	}), period)
}

// WRShape 取窗口内最近的可用 Williams %R 值做形态判定。
func WRShape(scope []market.Decorated, period int) string {
	return Shape(availableValues(scope, func(c market.Decorated) (float64, bool) {
		if c.WR == nil {
			return 0, false
		}
		return *c.WR, true
	}), period)
}
