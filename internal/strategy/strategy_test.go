package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upbot/internal/indicator"
	"upbot/internal/market"
)

func macdScope(pairs ...[2]float64) []market.Decorated {
	out := make([]market.Decorated, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, market.Decorated{
			Candle: market.Candle{Close: 100},
			MACD:   &market.MACDValue{MACD: p[0], Signal: p[1], Histogram: p[0] - p[1]},
		})
	}
	return out
}

func TestEvaluateCrossRuleFirstMatchWins(t *testing.T) {
	// 金叉且相对变化 (3 - -5)/-5 = -1.6 不在第一条区间，落入第二条
	scope := macdScope([2]float64{-5, -1}, [2]float64{3, -2})
	rules := []Condition{
		{Indicator: "MACD", Cross: "golden", Min: -0.05, Max: 0.05, Rate: 1.0},
		{Indicator: "MACD", Cross: "golden", Min: -2, Max: 0, Rate: 2.0},
	}
	bet := Evaluate(scope, market.SideBid, rules, 30000, 100)
	assert.Equal(t, 60000.0, bet)
}

func TestEvaluateCrossRatioBand(t *testing.T) {
	// (10.4-10)/10 = 0.04 落在 [-0.05, 0.05]
	scope := macdScope([2]float64{10, 5}, [2]float64{10.4, 4})
	rules := []Condition{{Indicator: "MACD", Cross: "golden", Min: -0.05, Max: 0.05, Rate: 1.0}}
	assert.Equal(t, 30000.0, Evaluate(scope, market.SideBid, rules, 30000, 100))
}

func TestEvaluateNoneCrossRule(t *testing.T) {
	// 无交叉时 cross=none 的规则仍可按区间命中
	scope := macdScope([2]float64{10, 5}, [2]float64{9, 4})
	assert.Equal(t, "none", mustClassify(t, scope))
	rules := []Condition{{Indicator: "MACD", Cross: "none", Min: -0.15, Max: -0.05, Rate: 2.0}}
	// (9-10)/10 = -0.1
	assert.Equal(t, 60000.0, Evaluate(scope, market.SideBid, rules, 30000, 100))
}

func mustClassify(t *testing.T, scope []market.Decorated) string {
	t.Helper()
	op, ok := indicator.OperatorFor("MACD")
	require.True(t, ok)
	return op.Classify(scope)
}

func TestEvaluateZeroPrevAbortsWholeEvaluation(t *testing.T) {
	// 前值为 0 时整轮放弃，后续本可命中的规则不再看
	scope := macdScope([2]float64{0, 5}, [2]float64{3, 4})
	rules := []Condition{
		{Indicator: "MACD", Cross: "golden", Min: -100, Max: 100, Rate: 1.0},
		{Indicator: "MACD", Cross: "golden", Min: -100, Max: 100, Rate: 9.0},
	}
	assert.Equal(t, 0.0, Evaluate(scope, market.SideBid, rules, 30000, 100))
}

func TestEvaluateMissingIndicatorAborts(t *testing.T) {
	scope := []market.Decorated{{}, {}}
	rules := []Condition{{Indicator: "MACD", Cross: "none", Min: -1, Max: 1, Rate: 1.0}}
	assert.Equal(t, 0.0, Evaluate(scope, market.SideBid, rules, 30000, 100))
}

func TestEvaluatePatternRule(t *testing.T) {
	vals := []float64{10, 20, 15, 25, 12}
	scope := make([]market.Decorated, 0, len(vals))
	for i := range vals {
		v := vals[i]
		scope = append(scope, market.Decorated{Candle: market.Candle{Close: 100}, RSI: &v})
	}
	// 形态规则比较当前原始值而不是变化率；大小写不敏感
	rules := []Condition{{Indicator: "RSI", Pattern: "w", Min: 0, Max: 30, Rate: 1.5}}
	assert.Equal(t, 45000.0, Evaluate(scope, market.SideBid, rules, 30000, 100))

	// 当前值出区间则不命中
	rules[0].Max = 11
	assert.Equal(t, 0.0, Evaluate(scope, market.SideBid, rules, 30000, 100))
}

func TestEvaluateAskSideReturnsVolume(t *testing.T) {
	scope := macdScope([2]float64{10, 5}, [2]float64{10.4, 4})
	rules := []Condition{{Indicator: "MACD", Cross: "golden", Min: -0.05, Max: 0.05, Rate: 1.0}}
	// 30000 / 100 = 300 币量
	assert.Equal(t, 300.0, Evaluate(scope, market.SideAsk, rules, 30000, 100))
}

func TestEvaluateEmptyRuleTable(t *testing.T) {
	scope := macdScope([2]float64{1, 2}, [2]float64{2, 1})
	assert.Equal(t, 0.0, Evaluate(scope, market.SideBid, nil, 30000, 100))
	assert.Equal(t, 0.0, Evaluate(nil, market.SideBid, []Condition{{Indicator: "MACD"}}, 30000, 100))
}

func TestGateAllowed(t *testing.T) {
	cases := []struct {
		name     string
		minute   int
		hour     int
		interval string
		basis    string
		want     bool
	}{
		{"1min always", 37, 14, "1", market.BasisClose, true},
		{"3min always", 59, 23, "3", market.BasisClose, true},
		{"15min boundary", 0, 10, "15", market.BasisClose, true},
		{"15min tolerance after", 16, 10, "15", market.BasisClose, true},
		{"15min tolerance before", 14, 10, "15", market.BasisClose, true},
		{"15min middle", 7, 10, "15", market.BasisClose, false},
		{"60min late window", 58, 10, "60", market.BasisClose, true},
		{"60min early window", 3, 10, "60", market.BasisClose, true},
		{"60min middle", 30, 10, "60", market.BasisClose, false},
		{"240 open basis at period start", 2, 8, "240", market.BasisOpen, true},
		{"240 open basis off-hour", 2, 9, "240", market.BasisOpen, false},
		{"240 close basis at period end", 58, 7, "240", market.BasisClose, true},
		{"240 close basis wrong hour", 58, 8, "240", market.BasisClose, false},
		{"days open morning", 0, 9, "days", market.BasisOpen, true},
		{"days close morning", 0, 8, "days", market.BasisClose, true},
		{"days afternoon", 0, 15, "days", market.BasisClose, false},
		{"unknown interval", 0, 0, "7", market.BasisClose, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, GateAllowed(tc.minute, tc.hour, tc.interval, tc.basis))
		})
	}
}

func TestGateAllowedAt(t *testing.T) {
	// 2024-03-01 07:58 UTC，240 分钟周期按收盘基准应放行（8%4==3）
	at := time.Date(2024, 3, 1, 7, 58, 0, 0, time.UTC)
	assert.True(t, GateAllowedAt(at, "240", market.BasisClose))
}

func TestIntervalHelpers(t *testing.T) {
	n, ok := MinuteInterval("240")
	require.True(t, ok)
	assert.Equal(t, 240, n)
	_, ok = MinuteInterval("days")
	assert.False(t, ok)

	assert.True(t, ValidInterval("1"))
	assert.True(t, ValidInterval("weeks"))
	assert.False(t, ValidInterval("2"))

	assert.Equal(t, 4*time.Hour, IntervalDuration("240"))
	assert.Equal(t, 24*time.Hour, IntervalDuration("days"))
}
