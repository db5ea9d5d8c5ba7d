// Package trader 把策略给出的下注路由到真实交易所或模拟账本。
// 两条路径共用同一组下单前校验，校验不过就整单放弃，不做部分执行。
package trader

import (
	"context"
	"fmt"
	"time"

	"upbot/internal/market"
	"upbot/internal/pkg/calc"
)

// Executor 订单执行端，真实下单与模拟账本各实现一份。
type Executor interface {
	Buy(ctx context.Context, mkt string, bet, price float64, at time.Time) (*market.Order, error)
	Sell(ctx context.Context, mkt string, volume, price float64, at time.Time) (*market.Order, error)
}

// PriceResolver 给出某市场的最新成交价。
type PriceResolver func(mkt string) (float64, bool)

// BalanceResolver 给出某币种的当前可用余额。
type BalanceResolver func(currency string) float64

// Router 在执行前统一做合法性校验与价格解析。
type Router struct {
	quote   string
	exec    Executor
	price   PriceResolver
	balance BalanceResolver
}

func NewRouter(quote string, exec Executor, price PriceResolver, balance BalanceResolver) *Router {
	return &Router{quote: quote, exec: exec, price: price, balance: balance}
}

// Place 按方向执行一笔下注。bid 的 bet 是计价货币金额，
// ask 的 bet 是币量。price 为 0 时取最新行情价。
func (r *Router) Place(ctx context.Context, side, identity string, bet, price float64, at time.Time) (*market.Order, error) {
	if identity == "" {
		return nil, fmt.Errorf("缺少交易标的")
	}
	if bet <= 0 {
		return nil, fmt.Errorf("下注额无效: %v", bet)
	}
	mkt := market.MarketOf(identity, r.quote)
	if price <= 0 {
		p, ok := r.price(mkt)
		if !ok || p <= 0 {
			return nil, fmt.Errorf("无法解析 %s 的当前价格", mkt)
		}
		price = p
	}
	switch side {
	case market.SideBid:
		return r.placeBid(ctx, mkt, bet, price, at)
	case market.SideAsk:
		return r.placeAsk(ctx, mkt, bet, price, at)
	default:
		return nil, fmt.Errorf("未知的订单方向 %q", side)
	}
}

func (r *Router) placeBid(ctx context.Context, mkt string, bet, price float64, at time.Time) (*market.Order, error) {
	if have := r.balance(r.quote); have < bet {
		return nil, fmt.Errorf("%s 余额不足: 需要 %v, 仅有 %v", r.quote, bet, have)
	}
	net := calc.RoundCash(bet - calc.CashFee(bet))
	if net < calc.MinimumNotional {
		return nil, fmt.Errorf("净买入额 %v 低于最小下单额 %v", net, calc.MinimumNotional)
	}
	return r.exec.Buy(ctx, mkt, bet, price, at)
}

func (r *Router) placeAsk(ctx context.Context, mkt string, volume, price float64, at time.Time) (*market.Order, error) {
	currency := market.CurrencyOf(mkt)
	if have := r.balance(currency); have < volume {
		return nil, fmt.Errorf("%s 持仓不足: 需要 %v, 仅有 %v", currency, volume, have)
	}
	if floor := calc.MinimumVolume(price); volume < floor {
		return nil, fmt.Errorf("卖出量 %v 低于最小可卖量 %v", volume, floor)
	}
	netVolume := calc.RoundVolume(volume - calc.VolumeFee(volume))
	if proceeds := calc.RoundCash(netVolume * price); proceeds < calc.MinimumNotional {
		return nil, fmt.Errorf("净卖出额 %v 低于最小下单额 %v", proceeds, calc.MinimumNotional)
	}
	return r.exec.Sell(ctx, mkt, volume, price, at)
}
