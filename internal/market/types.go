package market

import (
	"sort"
	"strings"
	"time"
)

// Info 描述一个可交易市场及其计价货币。
// Quote 从市场代码派生（"KRW-BTC" → "KRW"）。
type Info struct {
	Market      string `json:"market"`
	KoreanName  string `json:"korean_name,omitempty"`
	EnglishName string `json:"english_name,omitempty"`
	Quote       string `json:"quote,omitempty"`
}

// Ticker 是某市场的最新成交价快照。
type Ticker struct {
	Market     string  `json:"market"`
	TradePrice float64 `json:"trade_price"`
	Timestamp  int64   `json:"timestamp,omitempty"`
}

// WalletEntry 表示钱包内某一币种的持仓。
// AvgBuyPrice 对现金货币恒为 0，对其他币种是成交量加权平均成本。
type WalletEntry struct {
	Currency     string  `json:"currency"`
	Balance      float64 `json:"balance"`
	Locked       float64 `json:"locked"`
	AvgBuyPrice  float64 `json:"avg_buy_price"`
	UnitCurrency string  `json:"unit_currency"`
}

// 非分钟蜡烛周期。分钟周期以数字字符串表示。
const (
	IntervalDays  = "days"
	IntervalWeeks = "weeks"
)

// 订单方向与状态。
const (
	SideBid = "bid"
	SideAsk = "ask"

	OrderStateDone      = "done"
	OrderStateWait      = "wait"
	OrderStateCancelled = "cancel"
)

// Order 是一笔市价单记录，创建后不再变更。
type Order struct {
	UUID      string    `json:"uuid"`
	Market    string    `json:"market"`
	OrdType   string    `json:"ord_type"`
	Side      string    `json:"side"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	Identity  string    `json:"identity,omitempty"`
}

// SortOrdersDesc 按标识符降序排列，订单历史文件遵循该顺序。
func SortOrdersDesc(orders []Order) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].UUID > orders[j].UUID })
}

// CurrencyOf 把 "KRW-BTC" 或 "BTC" 统一解析成币种名 "BTC"。
func CurrencyOf(identity string) string {
	if idx := strings.Index(identity, "-"); idx >= 0 {
		return identity[idx+1:]
	}
	return identity
}

// MarketOf 把币种名或市场代码统一成市场代码（默认 KRW 计价）。
func MarketOf(identity, quote string) string {
	if strings.Contains(identity, "-") {
		return identity
	}
	return quote + "-" + identity
}
