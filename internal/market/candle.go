package market

import (
	"sort"
	"time"
)

// CandleTimeLayout 是 Upbit 行情接口使用的 UTC 时间格式（无时区后缀）。
const CandleTimeLayout = "2006-01-02T15:04:05"

// Candle 表示某市场单个时间桶的 OHLCV 快照。
// Time 保持交易所原始的 UTC 字符串格式，ISO 字典序即时间序。
type Candle struct {
	Market      string  `json:"market"`
	Unit        string  `json:"unit,omitempty"`
	Time        string  `json:"candle_date_time_utc"`
	Open        float64 `json:"opening_price"`
	High        float64 `json:"high_price"`
	Low         float64 `json:"low_price"`
	Close       float64 `json:"trade_price"`
	Volume      float64 `json:"candle_acc_trade_volume"`
	QuoteVolume float64 `json:"candle_acc_trade_price"`
	Timestamp   int64   `json:"timestamp,omitempty"`
}

// OpenTime 解析 Time 为 UTC 时间，解析失败返回零值。
func (c Candle) OpenTime() time.Time {
	t, err := time.Parse(CandleTimeLayout, c.Time)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// Day 返回开盘时间所属的 UTC 日历日（YYYY-MM-DD），缓存分片按它分区。
func (c Candle) Day() string {
	if len(c.Time) < 10 {
		return c.Time
	}
	return c.Time[:10]
}

// 判定基准：指标与下单以哪个价格为准。
const (
	BasisOpen  = "opening_price"
	BasisClose = "trade_price"
)

// BasisPrice 根据判定基准返回开盘价或收盘价，未知基准回退到收盘价。
func (c Candle) BasisPrice(basis string) float64 {
	if basis == BasisOpen {
		return c.Open
	}
	return c.Close
}

// SortCandles 按开盘时间升序排列。
func SortCandles(cs []Candle) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Time < cs[j].Time })
}

// DedupeCandles 按开盘时间去重，后出现的记录覆盖先出现的
// （交易所可能修订未收盘周期）。返回升序结果。
func DedupeCandles(cs []Candle) []Candle {
	if len(cs) == 0 {
		return nil
	}
	byTime := make(map[string]Candle, len(cs))
	for _, c := range cs {
		byTime[c.Time] = c
	}
	out := make([]Candle, 0, len(byTime))
	for _, c := range byTime {
		out = append(out, c)
	}
	SortCandles(out)
	return out
}

// MACDValue 聚合趋势震荡器的三元组。
type MACDValue struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// Decorated 是附带指标值的蜡烛。指标指针为 nil 表示该位置窗口历史不足、值不可用。
type Decorated struct {
	Candle
	MACD *MACDValue `json:"MACD"`
	RSI  *float64   `json:"RSI"`
	WR   *float64   `json:"WR"`
}
