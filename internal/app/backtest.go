package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"upbot/internal/backtest"
	"upbot/internal/logger"
	"upbot/internal/market"
)

type timelineEvent struct {
	market string
	candle market.Decorated
}

// runBacktest 用历史蜡烛重放策略：多市场时间轴按时间归并，
// 每个市场滑动窗口凑满后才开始判定，成交全部落在模拟账本上。
func (a *App) runBacktest(ctx context.Context) error {
	markets := a.cfg.Backtest.Markets
	logger.Infof("回测开始: markets=%v interval=%s balance=%v",
		markets, a.cfg.Trade.Interval, a.cfg.Backtest.Balance)

	timeline, err := a.buildTimeline(ctx, markets)
	if err != nil {
		return err
	}
	if len(timeline) == 0 {
		return fmt.Errorf("没有可用的历史蜡烛，回测中止")
	}

	spool := market.NewSpool(a.cfg.Trade.Scope)
	lastPrice := make(map[string]float64, len(markets))
	var equity []backtest.EquityPoint

	for _, ev := range timeline {
		if err := ctx.Err(); err != nil {
			return err
		}
		spool.Append(ev.market, ev.candle)
		lastPrice[ev.market] = ev.candle.Close
		if !spool.Full(ev.market) {
			continue
		}
		// 回测的蜡烛时间都对齐在周期边界上，收盘口径的下单窗口永远落不进去，
		// 这里直接放行，窗口控制只在实盘生效。
		at := ev.candle.OpenTime()
		a.store.SetWallet(a.ledger.Wallet())
		a.execute(ctx, ev.market, spool.Window(ev.market), at, true)
		equity = append(equity, backtest.EquityPoint{Time: at, Equity: a.ledger.Equity(lastPrice)})
	}

	return a.finishBacktest(markets, lastPrice, equity)
}

// buildTimeline 拉取各市场蜡烛、装饰后按开盘时间归并成单一时间轴。
func (a *App) buildTimeline(ctx context.Context, markets []string) ([]timelineEvent, error) {
	var timeline []timelineEvent
	for _, mkt := range markets {
		candles := a.fetcher.Fetch(ctx, mkt, a.cfg.Trade.Interval, a.cfg.Trade.CandleCount, true)
		if len(candles) < a.cfg.Trade.Scope {
			logger.Warnf("回测 %s 蜡烛不足（%d/%d），跳过该市场", mkt, len(candles), a.cfg.Trade.Scope)
			continue
		}
		for _, d := range a.decorate(candles) {
			timeline = append(timeline, timelineEvent{market: mkt, candle: d})
		}
	}
	sort.SliceStable(timeline, func(i, j int) bool {
		if timeline[i].candle.Time != timeline[j].candle.Time {
			return timeline[i].candle.Time < timeline[j].candle.Time
		}
		return timeline[i].market < timeline[j].market
	})
	return timeline, nil
}

// finishBacktest 汇总结果：打印收益、落库、落盘、出图。
func (a *App) finishBacktest(markets []string, lastPrice map[string]float64, equity []backtest.EquityPoint) error {
	finalEquity := a.ledger.Equity(lastPrice)
	orders := a.ledger.AllOrders()
	initial := a.cfg.Backtest.Balance
	profit := 0.0
	if initial > 0 {
		profit = (finalEquity - initial) / initial * 100
	}

	var b strings.Builder
	fmt.Fprintf(&b, "回测结束\n")
	fmt.Fprintf(&b, "  初始资金: %.1f %s\n", initial, a.cfg.Trade.Quote)
	fmt.Fprintf(&b, "  最终权益: %.1f %s\n", finalEquity, a.cfg.Trade.Quote)
	fmt.Fprintf(&b, "  收益率:   %.2f%%\n", profit)
	fmt.Fprintf(&b, "  成交笔数: %d", len(orders))
	for _, e := range a.ledger.Wallet() {
		if e.Currency == a.cfg.Trade.Quote || e.Balance <= 0 {
			continue
		}
		price := lastPrice[market.MarketOf(e.Currency, a.cfg.Trade.Quote)]
		fmt.Fprintf(&b, "\n  %s 残留持仓 %.8f 浮动收益率 %.2f%%",
			e.Currency, e.Balance, a.ledger.HoldingRate(e.Currency, price))
	}
	logger.InfoBlock(b.String())

	a.store.SetWallet(a.ledger.Wallet())
	if err := a.cache.SaveWallet(a.ledger.Wallet()); err != nil {
		logger.Warnf("回测钱包落盘失败: %v", err)
	}
	byMarket := make(map[string][]market.Order)
	for _, o := range orders {
		byMarket[o.Market] = append(byMarket[o.Market], o)
	}
	for mkt, os := range byMarket {
		if err := a.cache.UpsertOrders(mkt, os); err != nil {
			logger.Warnf("回测订单落盘失败 (%s): %v", mkt, err)
		}
	}

	if a.results != nil {
		runID, err := a.results.SaveRun(backtest.Summary{
			Markets:        markets,
			Interval:       a.cfg.Trade.Interval,
			Operator:       a.cfg.Trade.Operator,
			InitialBalance: initial,
			FinalEquity:    finalEquity,
			Orders:         orders,
		})
		if err != nil {
			logger.Warnf("回测结果落库失败: %v", err)
		} else {
			logger.Infof("回测结果已落库: run #%d", runID)
			a.logRunHistory()
		}
	}

	if path := a.cfg.Backtest.ReportPath; path != "" && len(equity) > 0 {
		title := fmt.Sprintf("backtest %s %s", strings.Join(markets, ","), time.Now().Format("2006-01-02"))
		if err := backtest.WriteEquityReport(path, title, equity); err != nil {
			logger.Warnf("权益报表生成失败: %v", err)
		} else {
			logger.Infof("权益报表已生成: %s", path)
		}
	}
	return nil
}

// logRunHistory 打印最近几次回测的收益对比，方便调参时横向比较。
func (a *App) logRunHistory() {
	runs, err := a.results.Runs(5)
	if err != nil {
		logger.Warnf("读取历史回测记录失败: %v", err)
		return
	}
	if len(runs) < 2 {
		return
	}
	var b strings.Builder
	b.WriteString("最近回测对比")
	for _, r := range runs {
		fmt.Fprintf(&b, "\n  #%d %s %s/%s 收益率 %.2f%% 成交 %d 笔",
			r.ID, r.CreatedAt.Format("01-02 15:04"), r.Interval, r.Operator, r.ProfitRate, r.TradeCount)
	}
	logger.InfoBlock(b.String())
}
