package trader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upbot/internal/market"
)

type recordingExecutor struct {
	buys  int
	sells int
	mkt   string
	bet   float64
	price float64
}

func (e *recordingExecutor) Buy(_ context.Context, mkt string, bet, price float64, _ time.Time) (*market.Order, error) {
	e.buys++
	e.mkt, e.bet, e.price = mkt, bet, price
	return &market.Order{UUID: "b", Market: mkt, Side: market.SideBid}, nil
}

func (e *recordingExecutor) Sell(_ context.Context, mkt string, volume, price float64, _ time.Time) (*market.Order, error) {
	e.sells++
	e.mkt, e.bet, e.price = mkt, volume, price
	return &market.Order{UUID: "s", Market: mkt, Side: market.SideAsk}, nil
}

func newRouter(exec Executor, price float64, balances map[string]float64) *Router {
	return NewRouter("KRW", exec,
		func(string) (float64, bool) { return price, price > 0 },
		func(c string) float64 { return balances[c] },
	)
}

func TestPlaceBid(t *testing.T) {
	exec := &recordingExecutor{}
	r := newRouter(exec, 100, map[string]float64{"KRW": 1000000})

	order, err := r.Place(context.Background(), market.SideBid, "BTC", 30000, 0, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "b", order.UUID)
	assert.Equal(t, 1, exec.buys)
	assert.Equal(t, "KRW-BTC", exec.mkt)
	// 未显式给价时取最新行情价
	assert.Equal(t, 100.0, exec.price)
}

func TestPlaceExplicitPriceWins(t *testing.T) {
	exec := &recordingExecutor{}
	r := newRouter(exec, 100, map[string]float64{"KRW": 1000000})

	_, err := r.Place(context.Background(), market.SideBid, "KRW-BTC", 30000, 250, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 250.0, exec.price)
}

func TestPlaceRejectsMissingIdentityOrBet(t *testing.T) {
	exec := &recordingExecutor{}
	r := newRouter(exec, 100, map[string]float64{"KRW": 1000000})

	_, err := r.Place(context.Background(), market.SideBid, "", 30000, 0, time.Time{})
	assert.Error(t, err)
	_, err = r.Place(context.Background(), market.SideBid, "BTC", 0, 0, time.Time{})
	assert.Error(t, err)
	assert.Zero(t, exec.buys)
}

func TestPlaceRejectsUnresolvedPrice(t *testing.T) {
	exec := &recordingExecutor{}
	r := newRouter(exec, 0, map[string]float64{"KRW": 1000000})

	_, err := r.Place(context.Background(), market.SideBid, "BTC", 30000, 0, time.Time{})
	assert.Error(t, err)
	assert.Zero(t, exec.buys)
}

func TestPlaceBidGuards(t *testing.T) {
	exec := &recordingExecutor{}

	// 余额不足
	r := newRouter(exec, 100, map[string]float64{"KRW": 10000})
	_, err := r.Place(context.Background(), market.SideBid, "BTC", 30000, 0, time.Time{})
	assert.Error(t, err)

	// 低于最小下单额
	r = newRouter(exec, 100, map[string]float64{"KRW": 1000000})
	_, err = r.Place(context.Background(), market.SideBid, "BTC", 4000, 0, time.Time{})
	assert.Error(t, err)
	assert.Zero(t, exec.buys)
}

func TestPlaceAskGuards(t *testing.T) {
	exec := &recordingExecutor{}

	// 持仓不足
	r := newRouter(exec, 100, map[string]float64{"BTC": 10})
	_, err := r.Place(context.Background(), market.SideAsk, "BTC", 100, 0, time.Time{})
	assert.Error(t, err)

	// 低于最小可卖量
	r = newRouter(exec, 100, map[string]float64{"BTC": 1000})
	_, err = r.Place(context.Background(), market.SideAsk, "BTC", 50, 0, time.Time{})
	assert.Error(t, err)
	assert.Zero(t, exec.sells)

	// 净卖出额达标则放行
	r = newRouter(exec, 100, map[string]float64{"BTC": 1000})
	_, err = r.Place(context.Background(), market.SideAsk, "BTC", 100, 0, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, exec.sells)
}
