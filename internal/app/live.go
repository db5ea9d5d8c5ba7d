package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"upbot/internal/config"
	"upbot/internal/logger"
	"upbot/internal/market"
	"upbot/internal/pkg/calc"
	"upbot/internal/strategy"
)

// runLoop 实盘主循环：逐轮执行，出错记录后冷却再重启，
// 单轮失败绝不终止进程。退出只响应 ctx 取消。
func (a *App) runLoop(ctx context.Context) error {
	interval := time.Duration(a.cfg.Loop.IntervalSeconds) * time.Second
	cooldown := time.Duration(a.cfg.Loop.CooldownSeconds) * time.Second

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := a.cycle(ctx); err != nil {
			logger.Errorf("本轮执行失败，%v 后重试: %v", cooldown, err)
			if !sleepOrDone(ctx, cooldown) {
				return nil
			}
			continue
		}
		if !sleepOrDone(ctx, interval) {
			return nil
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// cycle 跑完一轮决策：刷新市场与账户，逐市场取数、判定、下单。
func (a *App) cycle(ctx context.Context) error {
	targets, err := a.refreshUniverse(ctx)
	if err != nil {
		return err
	}
	if err := a.refreshWallet(ctx); err != nil {
		return err
	}
	logger.InfoBlock(walletSummary(a.cfg.Trade.Quote, a.store.Wallet(), a.store.Price))

	// 时间闸只限制买入，卖出随时允许（持仓风险优先释放）
	now := time.Now().UTC()
	gateOpen := strategy.GateAllowedAt(now, a.cfg.Trade.Interval, a.cfg.Trade.Basis)
	if !gateOpen {
		logger.Debugf("当前时刻不在 %s 周期的买入窗口内，本轮只做卖出判定", a.cfg.Trade.Interval)
	}

	for _, mkt := range targets {
		a.decideMarket(ctx, mkt, time.Time{}, gateOpen)
	}
	return nil
}

// refreshUniverse 刷新市场清单与行情，返回本轮要判定的市场。
// 配置了 trade.markets 时以配置为准，否则取整个计价货币市场，
// 再剔除黑名单。
func (a *App) refreshUniverse(ctx context.Context) ([]string, error) {
	infos, err := a.client.Markets(ctx)
	if err != nil {
		return nil, fmt.Errorf("拉取市场清单失败: %w", err)
	}
	a.store.SetMarkets(infos)

	listed := make(map[string]bool, len(infos))
	var universe []string
	for _, info := range infos {
		listed[info.Market] = true
		if info.Quote == a.cfg.Trade.Quote {
			universe = append(universe, info.Market)
		}
	}

	targets := a.cfg.Trade.Markets
	if len(targets) == 0 {
		targets = universe
	}
	dangerous := make(map[string]bool, len(a.cfg.Trade.DangerousMarkets))
	for _, m := range a.cfg.Trade.DangerousMarkets {
		dangerous[m] = true
	}
	filtered := targets[:0:0]
	for _, m := range targets {
		if dangerous[m] {
			continue
		}
		if !listed[m] {
			if a.cfg.Trade.ClearClosedMarkets {
				logger.Warnf("市场 %s 已下架，跳过", m)
			}
			continue
		}
		filtered = append(filtered, m)
	}

	tickers, err := a.client.Tickers(ctx, filtered)
	if err != nil {
		return nil, fmt.Errorf("拉取行情失败: %w", err)
	}
	a.store.SetTickers(tickers)
	return filtered, nil
}

// walletSummary 汇总各币种持仓、均价与按现价计算的浮动收益率，
// 并把全部资产折算成计价货币总额。没有行情的持仓只列余额。
func walletSummary(quote string, wallet []market.WalletEntry, price func(string) (float64, bool)) string {
	var b strings.Builder
	b.WriteString("钱包概览")
	total := 0.0
	for _, e := range wallet {
		if e.Currency == quote {
			total += e.Balance
			fmt.Fprintf(&b, "\n  %s 余额 %.1f", e.Currency, e.Balance)
			continue
		}
		fmt.Fprintf(&b, "\n  %s 持仓 %.8f 均价 %.4f", e.Currency, e.Balance, e.AvgBuyPrice)
		if p, ok := price(market.MarketOf(e.Currency, quote)); ok && p > 0 {
			total += e.Balance * p
			fmt.Fprintf(&b, " 现价 %.4f 收益率 %.2f%%", p, calc.CurrentRate(p, e.AvgBuyPrice, e.Balance))
		}
	}
	fmt.Fprintf(&b, "\n  总资产折合 %.1f %s", calc.RoundCash(total), quote)
	return b.String()
}

func (a *App) refreshWallet(ctx context.Context) error {
	if a.ledger != nil {
		a.store.SetWallet(a.ledger.Wallet())
		return nil
	}
	wallet, err := a.client.Wallet(ctx)
	if err != nil {
		return fmt.Errorf("拉取账户余额失败: %w", err)
	}
	a.store.SetWallet(wallet)
	if err := a.cache.SaveWallet(wallet); err != nil {
		logger.Warnf("钱包快照落盘失败: %v", err)
	}
	return nil
}

// decideMarket 对单个市场取数、装饰、判定并执行。
// at 为零值时按实时行情执行，非零时用于回测的蜡烛时间。
func (a *App) decideMarket(ctx context.Context, mkt string, at time.Time, gateOpen bool) {
	candles := a.fetcher.Fetch(ctx, mkt, a.cfg.Trade.Interval, a.cfg.Trade.CandleCount, true)
	if len(candles) < a.cfg.Trade.Scope {
		logger.Warnf("%s 蜡烛不足（%d/%d），跳过", mkt, len(candles), a.cfg.Trade.Scope)
		return
	}
	decorated := a.decorate(candles)
	scope := decorated[len(decorated)-a.cfg.Trade.Scope:]
	a.execute(ctx, mkt, scope, at, gateOpen)
}

func (a *App) decorate(candles []market.Candle) []market.Decorated {
	return a.pipeline(candles, a.cfg.Trade.Basis)
}

// execute 对窗口判定买卖两侧并把下注交给路由器。
// 买入要求窗口开放且有现金，卖出只要求有持仓。
// 路由器的拒绝是常规流程，记日志后继续。
func (a *App) execute(ctx context.Context, mkt string, scope []market.Decorated, at time.Time, gateOpen bool) {
	if len(scope) == 0 {
		return
	}
	last := scope[len(scope)-1]
	basisPrice := last.BasisPrice(a.cfg.Trade.Basis)
	identity := market.CurrencyOf(mkt)
	rules := a.rules()

	if gateOpen && a.store.Balance(a.cfg.Trade.Quote) > 0 {
		if bet := strategy.Evaluate(scope, market.SideBid, rules.Bid, a.cfg.Trade.BidBet, basisPrice); bet > 0 {
			order, err := a.router.Place(ctx, market.SideBid, identity, bet, a.orderPrice(basisPrice), at)
			if err != nil {
				logger.Warnf("%s 买入未执行: %v", mkt, err)
			} else if order != nil {
				logger.Infof("%s 买入 %v（价格 %v，订单 %s）", mkt, bet, order.Price, order.UUID)
				a.recordOrder(ctx, order)
			}
		}
	}
	if a.store.Balance(identity) > 0 {
		if bet := strategy.Evaluate(scope, market.SideAsk, rules.Ask, a.cfg.Trade.AskBet, basisPrice); bet > 0 {
			order, err := a.router.Place(ctx, market.SideAsk, identity, bet, a.orderPrice(basisPrice), at)
			if err != nil {
				logger.Warnf("%s 卖出未执行: %v", mkt, err)
			} else if order != nil {
				logger.Infof("%s 卖出 %v（价格 %v，订单 %s）", mkt, bet, order.Price, order.UUID)
				a.recordOrder(ctx, order)
			}
		}
	}
}

// orderPrice 回测直接用蜡烛基准价成交，实盘交给行情解析。
func (a *App) orderPrice(basisPrice float64) float64 {
	if a.ledger != nil {
		return basisPrice
	}
	return 0
}

func (a *App) recordOrder(ctx context.Context, order *market.Order) {
	if err := a.cache.UpsertOrders(order.Market, []market.Order{*order}); err != nil {
		logger.Warnf("订单历史落盘失败: %v", err)
	}
	if a.ledger != nil {
		a.store.SetWallet(a.ledger.Wallet())
		return
	}
	a.syncOrders(ctx, order.Market)
}

// syncOrders 拉取交易所的订单记录并按订单号合并进本地缓存。
// 实盘每次下单后对账一次，交易所是订单状态的权威来源。
func (a *App) syncOrders(ctx context.Context, mkt string) {
	orders, err := a.client.Orders(ctx, mkt, []string{market.OrderStateDone, market.OrderStateWait})
	if err != nil {
		logger.Warnf("拉取 %s 订单记录失败: %v", mkt, err)
		return
	}
	if len(orders) == 0 {
		return
	}
	if err := a.cache.UpsertOrders(mkt, orders); err != nil {
		logger.Warnf("%s 订单对账落盘失败: %v", mkt, err)
	}
}

func (a *App) rules() config.RulesConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ruleTable
}

// SetRules 热更新规则表，配置文件变更时由监听器调用。
func (a *App) SetRules(rules config.RulesConfig) {
	a.mu.Lock()
	a.ruleTable = rules
	a.mu.Unlock()
	logger.Infof("规则表已更新: bid %d 条, ask %d 条", len(rules.Bid), len(rules.Ask))
}
