package trader

import (
	"context"
	"time"

	"upbot/internal/backtest"
	"upbot/internal/gateway/upbit"
	"upbot/internal/market"
)

// LedgerExecutor 把订单落在回测账本上。
type LedgerExecutor struct {
	Ledger *backtest.Ledger
}

func (e *LedgerExecutor) Buy(_ context.Context, mkt string, bet, price float64, at time.Time) (*market.Order, error) {
	return e.Ledger.Buy(mkt, bet, price, at)
}

func (e *LedgerExecutor) Sell(_ context.Context, mkt string, volume, price float64, at time.Time) (*market.Order, error) {
	return e.Ledger.Sell(mkt, volume, price, at)
}

// LiveExecutor 把订单提交到交易所，价格与时间由交易所决定。
type LiveExecutor struct {
	Client *upbit.Client
}

func (e *LiveExecutor) Buy(ctx context.Context, mkt string, bet, _ float64, _ time.Time) (*market.Order, error) {
	return e.Client.PlaceBid(ctx, mkt, bet)
}

func (e *LiveExecutor) Sell(ctx context.Context, mkt string, volume, _ float64, _ time.Time) (*market.Order, error) {
	return e.Client.PlaceAsk(ctx, mkt, volume)
}
