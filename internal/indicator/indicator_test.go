package indicator

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upbot/internal/market"
)

func makeCandles(closes []float64) []market.Candle {
	out := make([]market.Candle, 0, len(closes))
	for i, c := range closes {
		out = append(out, market.Candle{
			Market: "KRW-BTC",
			Time:   fmt.Sprintf("2024-01-01T%02d:00:00", i),
			Open:   c * 0.99,
			High:   c * 1.01,
			Low:    c * 0.98,
			Close:  c,
		})
	}
	return out
}

func TestDecorateRightAlignment(t *testing.T) {
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100 + 3*math.Sin(float64(i))
	}
	candles := makeCandles(closes)

	opts := Options{RSI: PeriodOptions{Period: 5}, WR: PeriodOptions{Period: 5}}
	decorated := Decorate(candles, market.BasisClose, opts)
	require.Len(t, decorated, len(candles))

	// 窗口 5 在 10 根蜡烛上给出 6 个可用值，右对齐到索引 4..9
	for i := 0; i <= 3; i++ {
		assert.Nil(t, decorated[i].RSI, "index %d", i)
		assert.Nil(t, decorated[i].WR, "index %d", i)
	}
	for i := 4; i <= 9; i++ {
		assert.NotNil(t, decorated[i].RSI, "index %d", i)
		assert.NotNil(t, decorated[i].WR, "index %d", i)
	}
	// 蜡烛不足 26 根时 MACD 全程不可用
	for i := range decorated {
		assert.Nil(t, decorated[i].MACD)
	}
}

func TestDecorateMACDAlignment(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + 5*math.Sin(float64(i)/3)
	}
	decorated := Decorate(makeCandles(closes), market.BasisClose, Options{})
	require.Len(t, decorated, 40)

	// MACD 的可用性以完整预热期 slow+signal-2 = 33 为界，
	// talib 在此之前只回填零值，不能当成真实趋势值暴露
	for i := 0; i <= 32; i++ {
		assert.Nil(t, decorated[i].MACD, "index %d", i)
	}
	for i := 33; i <= 39; i++ {
		require.NotNil(t, decorated[i].MACD, "index %d", i)
		assert.NotZero(t, decorated[i].MACD.MACD, "index %d", i)
	}
}

func TestDecorateMACDShortSeries(t *testing.T) {
	closes := make([]float64, 33)
	for i := range closes {
		closes[i] = 100 + 5*math.Sin(float64(i)/3)
	}
	// 刚好等于预热期长度时没有任何可用值
	decorated := Decorate(makeCandles(closes), market.BasisClose, Options{})
	for i := range decorated {
		assert.Nil(t, decorated[i].MACD, "index %d", i)
	}
}

func TestDecorateEmptyInput(t *testing.T) {
	assert.Empty(t, Decorate(nil, market.BasisClose, Options{}))
}

func macdCandle(macd, signal float64) market.Decorated {
	return market.Decorated{MACD: &market.MACDValue{MACD: macd, Signal: signal, Histogram: macd - signal}}
}

func TestMACDCross(t *testing.T) {
	golden := []market.Decorated{macdCandle(-5, -1), macdCandle(3, -2)}
	assert.Equal(t, CrossGolden, MACDCross(golden))

	death := []market.Decorated{macdCandle(3, -2), macdCandle(-5, -1)}
	assert.Equal(t, CrossDeath, MACDCross(death))

	// 趋势与信号同向变化不算交叉
	flat := []market.Decorated{macdCandle(1, 1), macdCandle(2, 2)}
	assert.Equal(t, SignalNone, MACDCross(flat))

	// 窗口不足或指标缺失都按 none 处理
	assert.Equal(t, SignalNone, MACDCross(golden[1:]))
	assert.Equal(t, SignalNone, MACDCross([]market.Decorated{{}, macdCandle(1, 0)}))
}

func TestShape(t *testing.T) {
	assert.Equal(t, ShapeW, Shape([]float64{10, 20, 15, 25, 12}, 5))
	assert.Equal(t, ShapeM, Shape([]float64{20, 10, 15, 5, 18}, 5))
	assert.Equal(t, SignalNone, Shape([]float64{1, 2, 3, 4, 5}, 5))
	// 严格比较：出现相等即不成形态
	assert.Equal(t, SignalNone, Shape([]float64{10, 20, 20, 25, 12}, 5))
	// 可用值不足
	assert.Equal(t, SignalNone, Shape([]float64{10, 20, 15}, 5))
	// 只取最后 period 个值
	assert.Equal(t, ShapeW, Shape([]float64{99, 98, 10, 20, 15, 25, 12}, 5))
	// 窗口不足 5 个点构不成锯齿
	assert.Equal(t, SignalNone, Shape([]float64{10, 20, 15, 25, 12}, 3))
	assert.Equal(t, SignalNone, Shape([]float64{10, 20, 15, 25, 12}, 4))
}

func TestRSIShapeSkipsUnavailable(t *testing.T) {
	vals := []float64{10, 20, 15, 25, 12}
	scope := make([]market.Decorated, 0, len(vals)+2)
	scope = append(scope, market.Decorated{}, market.Decorated{})
	for i := range vals {
		v := vals[i]
		scope = append(scope, market.Decorated{RSI: &v})
	}
	assert.Equal(t, ShapeW, RSIShape(scope, 5))
	// 可用值不足 period 返回 none
	assert.Equal(t, SignalNone, RSIShape(scope[:5], 5))
}

func TestOperatorFor(t *testing.T) {
	for _, name := range []string{"MACD", "macd", " rsi ", "WR"} {
		op, ok := OperatorFor(name)
		require.True(t, ok, name)
		require.NotNil(t, op)
	}
	_, ok := OperatorFor("SMA")
	assert.False(t, ok)
}

func TestOperatorValueAt(t *testing.T) {
	scope := []market.Decorated{macdCandle(1.5, 0.5), {}}
	op, _ := OperatorFor("MACD")

	v, ok := op.ValueAt(scope, 0)
	require.True(t, ok)
	assert.Equal(t, 1.5, v)

	_, ok = op.ValueAt(scope, 1)
	assert.False(t, ok)
	_, ok = op.ValueAt(scope, 5)
	assert.False(t, ok)
}
