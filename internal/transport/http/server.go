// Package statushttp 提供只读的运行状态查询接口。
package statushttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"upbot/internal/backtest"
	"upbot/internal/logger"
	"upbot/internal/market"
	"upbot/internal/pkg/calc"
)

// State 运行期共享状态的只读视图。
type State interface {
	Markets() []market.Info
	Wallet() []market.WalletEntry
	Price(mkt string) (float64, bool)
}

// OrderSource 订单历史来源。
type OrderSource interface {
	LoadOrders(mkt string) []market.Order
	LoadAllOrders() []market.Order
}

// ResultSource 回测结果库的只读视图，实盘模式下为 nil。
type ResultSource interface {
	Runs(limit int) ([]backtest.RunModel, error)
	Trades(runID uint) ([]backtest.TradeModel, error)
}

// Server 状态查询 HTTP 服务。
type Server struct {
	addr   string
	router *gin.Engine
}

// NewServer 构建状态服务。
func NewServer(addr, quote string, state State, orders OrderSource, results ResultSource) (*Server, error) {
	if state == nil {
		return nil, errors.New("status http server 需要 state")
	}
	if addr == "" {
		addr = ":8787"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/api/markets", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"markets": state.Markets()})
	})
	router.GET("/api/wallet", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"wallet": walletView(quote, state)})
	})
	router.GET("/api/orders", func(c *gin.Context) {
		if orders == nil {
			c.JSON(http.StatusOK, gin.H{"orders": []market.Order{}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders.LoadAllOrders()})
	})
	router.GET("/api/orders/:market", func(c *gin.Context) {
		if orders == nil {
			c.JSON(http.StatusOK, gin.H{"orders": []market.Order{}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders.LoadOrders(c.Param("market"))})
	})
	router.GET("/api/backtest/runs", func(c *gin.Context) {
		if results == nil {
			c.JSON(http.StatusOK, gin.H{"runs": []backtest.RunModel{}})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		runs, err := results.Runs(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	})
	router.GET("/api/backtest/runs/:id/trades", func(c *gin.Context) {
		if results == nil {
			c.JSON(http.StatusOK, gin.H{"trades": []backtest.TradeModel{}})
			return
		}
		runID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的回测编号"})
			return
		}
		trades, err := results.Trades(uint(runID))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"trades": trades})
	})

	return &Server{addr: addr, router: router}, nil
}

type holdingView struct {
	Currency    string  `json:"currency"`
	Balance     float64 `json:"balance"`
	AvgBuyPrice float64 `json:"avg_buy_price"`
	// 按最新行情计算的浮动收益率（百分比），没有行情时为 0
	CurrentRate float64 `json:"current_rate"`
}

// walletView 给钱包条目附上按现价计算的浮动收益率。
func walletView(quote string, state State) []holdingView {
	wallet := state.Wallet()
	out := make([]holdingView, 0, len(wallet))
	for _, e := range wallet {
		view := holdingView{
			Currency:    e.Currency,
			Balance:     e.Balance,
			AvgBuyPrice: e.AvgBuyPrice,
		}
		if e.Currency != quote {
			if price, ok := state.Price(market.MarketOf(e.Currency, quote)); ok {
				view.CurrentRate = calc.CurrentRate(price, e.AvgBuyPrice, e.Balance)
			}
		}
		out = append(out, view)
	}
	return out
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d dur=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler 暴露底层路由，测试用。
func (s *Server) Handler() http.Handler { return s.router }

// Start 启动服务，直到 ctx 取消或出错。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
