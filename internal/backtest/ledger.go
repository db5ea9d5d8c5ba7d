// Package backtest 实现模拟撮合账本与回测结果的落库、出图。
package backtest

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"upbot/internal/market"
	"upbot/internal/pkg/calc"
)

// Ledger 内存钱包加订单流水，按即时成交假设模拟市价单。
// 所有校验通过后才写入任何状态，被拒绝的操作不留痕迹。
type Ledger struct {
	mu     sync.Mutex
	quote  string
	wallet map[string]*market.WalletEntry
	orders map[string][]market.Order
	now    func() time.Time
}

// NewLedger 以初始计价货币余额建账。
func NewLedger(quote string, initialBalance float64) *Ledger {
	l := &Ledger{
		quote:  quote,
		wallet: make(map[string]*market.WalletEntry),
		orders: make(map[string][]market.Order),
		now:    time.Now,
	}
	l.wallet[quote] = &market.WalletEntry{
		Currency:     quote,
		Balance:      initialBalance,
		UnitCurrency: quote,
	}
	return l
}

// Restore 用既有的钱包快照与订单流水重建账本。
func Restore(quote string, wallet []market.WalletEntry, orders []market.Order) *Ledger {
	l := NewLedger(quote, 0)
	for _, w := range wallet {
		entry := w
		l.wallet[w.Currency] = &entry
	}
	if l.wallet[quote] == nil {
		l.wallet[quote] = &market.WalletEntry{Currency: quote, UnitCurrency: quote}
	}
	for _, o := range orders {
		l.orders[o.Market] = append(l.orders[o.Market], o)
	}
	return l
}

func (l *Ledger) entry(currency string) *market.WalletEntry {
	e := l.wallet[currency]
	if e == nil {
		e = &market.WalletEntry{Currency: currency, UnitCurrency: l.quote}
		l.wallet[currency] = e
	}
	return e
}

// Buy 按金额市价买入。bet 是计价货币的毛支出，
// 手续费与最小名义额校验通过后才改写钱包。
func (l *Ledger) Buy(mkt string, bet, price float64, at time.Time) (*market.Order, error) {
	if price <= 0 {
		return nil, fmt.Errorf("价格无效: %v", price)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	fee := calc.CashFee(bet)
	net := calc.RoundCash(bet - fee)
	cash := l.entry(l.quote)
	if cash.Balance < bet {
		return nil, fmt.Errorf("%s 余额不足: 需要 %v, 仅有 %v", l.quote, bet, cash.Balance)
	}
	if net < calc.MinimumNotional {
		return nil, fmt.Errorf("净买入额 %v 低于最小下单额 %v", net, calc.MinimumNotional)
	}

	coin := calc.RoundVolume(net / price)
	currency := market.CurrencyOf(mkt)
	asset := l.entry(currency)

	cash.Balance = calc.RoundCash(cash.Balance - bet)
	asset.AvgBuyPrice = calc.AveragePrice(asset.Balance, asset.AvgBuyPrice, coin, price)
	asset.Balance = calc.RoundVolume(asset.Balance + coin)

	order := market.Order{
		UUID:      uuid.NewString(),
		Market:    mkt,
		OrdType:   "price",
		Side:      market.SideBid,
		Price:     price,
		Volume:    coin,
		State:     market.OrderStateDone,
		CreatedAt: l.orderTime(at),
		Identity:  currency,
	}
	l.orders[mkt] = append(l.orders[mkt], order)
	return &order, nil
}

// Sell 按数量市价卖出。扣减申报数量，入账净得价款，
// 均价保持不变，盈亏在查询时另行计算。
func (l *Ledger) Sell(mkt string, volume, price float64, at time.Time) (*market.Order, error) {
	if price <= 0 {
		return nil, fmt.Errorf("价格无效: %v", price)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	currency := market.CurrencyOf(mkt)
	asset := l.entry(currency)
	if asset.Balance < volume {
		return nil, fmt.Errorf("%s 持仓不足: 需要 %v, 仅有 %v", currency, volume, asset.Balance)
	}
	fee := calc.VolumeFee(volume)
	netVolume := calc.RoundVolume(volume - fee)
	proceeds := calc.RoundCash(netVolume * price)
	if proceeds < calc.MinimumNotional {
		return nil, fmt.Errorf("净卖出额 %v 低于最小下单额 %v", proceeds, calc.MinimumNotional)
	}

	asset.Balance = calc.RoundVolume(asset.Balance - volume)
	cash := l.entry(l.quote)
	cash.Balance = calc.RoundCash(cash.Balance + proceeds)

	order := market.Order{
		UUID:      uuid.NewString(),
		Market:    mkt,
		OrdType:   "market",
		Side:      market.SideAsk,
		Price:     price,
		Volume:    volume,
		State:     market.OrderStateDone,
		CreatedAt: l.orderTime(at),
		Identity:  currency,
	}
	l.orders[mkt] = append(l.orders[mkt], order)
	return &order, nil
}

func (l *Ledger) orderTime(at time.Time) time.Time {
	if at.IsZero() {
		return l.now()
	}
	return at
}

// Balance 查询某币种余额，不存在时为 0。
func (l *Ledger) Balance(currency string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.wallet[currency]; ok {
		return e.Balance
	}
	return 0
}

// Wallet 返回钱包快照，按币种名排序，计价货币在前。
func (l *Ledger) Wallet() []market.WalletEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]market.WalletEntry, 0, len(l.wallet))
	for _, e := range l.wallet {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if (out[i].Currency == l.quote) != (out[j].Currency == l.quote) {
			return out[i].Currency == l.quote
		}
		return out[i].Currency < out[j].Currency
	})
	return out
}

// Orders 返回某市场的订单流水（按时间先后）。
func (l *Ledger) Orders(mkt string) []market.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]market.Order(nil), l.orders[mkt]...)
}

// AllOrders 返回全部市场的订单流水。
func (l *Ledger) AllOrders() []market.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	var all []market.Order
	for _, os := range l.orders {
		all = append(all, os...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all
}

// Equity 按给定的各市场最新价计算账户总权益（计价货币）。
func (l *Ledger) Equity(prices map[string]float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0.0
	for currency, e := range l.wallet {
		if currency == l.quote {
			total += e.Balance
			continue
		}
		if p, ok := prices[market.MarketOf(currency, l.quote)]; ok {
			total += e.Balance * p
		}
	}
	return calc.RoundCash(total)
}

// HoldingRate 返回某币种按现价计算的浮动收益率（百分比）。
func (l *Ledger) HoldingRate(currency string, price float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.wallet[currency]
	if !ok {
		return 0
	}
	return calc.CurrentRate(price, e.AvgBuyPrice, e.Balance)
}
