// Package indicator 负责把指标序列对齐回原始蜡烛索引，并提供
// 金叉/死叉与 W/M 形态的判定。指标本体计算交给 go-talib。
package indicator

import (
	talib "github.com/markcheno/go-talib"

	"upbot/internal/market"
)

// MACDOptions 控制趋势震荡器参数。
type MACDOptions struct {
	FastPeriod   int
	SlowPeriod   int
	SignalPeriod int
}

// PeriodOptions 控制单窗口指标参数。
type PeriodOptions struct {
	Period int
}

// Options 聚合三个指标的参数。
type Options struct {
	MACD MACDOptions
	RSI  PeriodOptions
	WR   PeriodOptions
}

// DefaultOptions 返回缺省指标参数（MACD 12/26/9，RSI 14，WR 14）。
func DefaultOptions() Options {
	return Options{
		MACD: MACDOptions{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9},
		RSI:  PeriodOptions{Period: 14},
		WR:   PeriodOptions{Period: 14},
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MACD.FastPeriod <= 0 {
		o.MACD.FastPeriod = def.MACD.FastPeriod
	}
	if o.MACD.SlowPeriod <= 0 {
		o.MACD.SlowPeriod = def.MACD.SlowPeriod
	}
	if o.MACD.SignalPeriod <= 0 {
		o.MACD.SignalPeriod = def.MACD.SignalPeriod
	}
	if o.RSI.Period <= 0 {
		o.RSI.Period = def.RSI.Period
	}
	if o.WR.Period <= 0 {
		o.WR.Period = def.WR.Period
	}
	return o
}

// Decorate 对一段升序蜡烛计算全部指标并合并成等长的装饰序列。
//
// 对齐不变式：窗口期为 P 的指标只在位置 [P-1, len-1] 可用，
// 前 P-1 个位置一律置为不可用（nil）。talib 返回与输入等长的数组，
// 所以这里只做可用性掩码，不再搬移下标。
//
// MACD 的预热期是慢线加信号线：talib 在 slow+signal-2 之前
// 只回填零值（直方图更是从该下标才开始计算），把这些位置
// 标记为可用会让下游把伪造的零当成真实趋势值，掩码必须以
// 完整预热期为界。
func Decorate(candles []market.Candle, basis string, opts Options) []market.Decorated {
	out := make([]market.Decorated, len(candles))
	for i, c := range candles {
		out[i] = market.Decorated{Candle: c}
	}
	if len(candles) == 0 {
		return out
	}
	opts = opts.withDefaults()

	values := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		values[i] = c.BasisPrice(basis)
		highs[i] = c.High
		lows[i] = c.Low
	}

	if macdLookback := opts.MACD.SlowPeriod + opts.MACD.SignalPeriod - 2; len(candles) > macdLookback {
		macd, signal, hist := talib.Macd(values, opts.MACD.FastPeriod, opts.MACD.SlowPeriod, opts.MACD.SignalPeriod)
		for i := macdLookback; i < len(out); i++ {
			out[i].MACD = &market.MACDValue{MACD: macd[i], Signal: signal[i], Histogram: hist[i]}
		}
	}
	if len(candles) >= opts.RSI.Period {
		rsi := talib.Rsi(values, opts.RSI.Period)
		for i := opts.RSI.Period - 1; i < len(out); i++ {
			v := rsi[i]
			out[i].RSI = &v
		}
	}
	if len(candles) >= opts.WR.Period {
		wr := talib.WillR(highs, lows, values, opts.WR.Period)
		for i := opts.WR.Period - 1; i < len(out); i++ {
			v := wr[i]
			out[i].WR = &v
		}
	}
	return out
}
