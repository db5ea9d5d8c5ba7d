package app

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"upbot/internal/backtest"
	"upbot/internal/cache"
	"upbot/internal/config"
	"upbot/internal/gateway/upbit"
	"upbot/internal/indicator"
	"upbot/internal/logger"
	"upbot/internal/market"
	"upbot/internal/ratelimit"
	"upbot/internal/trader"
	statushttp "upbot/internal/transport/http"
)

// App 持有全部长生命周期组件。
type App struct {
	cfg     *config.Config
	cfgPath string

	mu        sync.RWMutex
	ruleTable config.RulesConfig

	store   *Store
	cache   *cache.Store
	client  *upbit.Client
	fetcher *market.Fetcher
	router  *trader.Router

	// 回测专用，实盘时为 nil
	ledger  *backtest.Ledger
	results *backtest.ResultStore

	pipeline func([]market.Candle, string) []market.Decorated
	httpSrv  *statushttp.Server
}

// New 按配置组装应用。回测模式建模拟账本，实盘模式直连交易所。
func New(cfg *config.Config, cfgPath string) (*App, error) {
	a := &App{
		cfg:       cfg,
		cfgPath:   cfgPath,
		ruleTable: cfg.Rules,
		store:     NewStore(),
		cache:     cache.New(cfg.App.CacheDir),
	}

	client, err := upbit.NewClient(cfg.Upbit.BaseURL, upbit.Credentials{
		AccessKey: cfg.Upbit.AccessKey,
		SecretKey: cfg.Upbit.SecretKey,
	}, ratelimit.New())
	if err != nil {
		return nil, err
	}
	a.client = client
	a.fetcher = market.NewFetcher(client, a.cache)

	opts := indicator.DefaultOptions()
	a.pipeline = func(candles []market.Candle, basis string) []market.Decorated {
		return indicator.Decorate(candles, basis, opts)
	}

	if cfg.App.IsBacktest() {
		if cfg.Backtest.Resume {
			if wallet := a.cache.LoadWallet(); len(wallet) > 0 {
				a.ledger = backtest.Restore(cfg.Trade.Quote, wallet, a.cache.LoadAllOrders())
				logger.Infof("回测账本从缓存快照续跑，共 %d 个币种", len(wallet))
			} else {
				logger.Warnf("缓存里没有钱包快照，按初始资金重新建账")
			}
		}
		if a.ledger == nil {
			a.ledger = backtest.NewLedger(cfg.Trade.Quote, cfg.Backtest.Balance)
		}
		a.router = trader.NewRouter(cfg.Trade.Quote,
			&trader.LedgerExecutor{Ledger: a.ledger},
			a.store.Price, a.ledger.Balance)
		if cfg.Backtest.ResultDB != "" {
			results, err := backtest.NewResultStore(cfg.Backtest.ResultDB)
			if err != nil {
				logger.Warnf("回测结果库不可用，结果不落库: %v", err)
			} else {
				a.results = results
			}
		}
	} else {
		a.router = trader.NewRouter(cfg.Trade.Quote,
			&trader.LiveExecutor{Client: client},
			a.store.Price, a.store.Balance)
	}

	if cfg.HTTP.Enabled {
		// 接口里塞 *ResultStore 的 nil 指针会绕过判空，这里先转成无类型 nil
		var results statushttp.ResultSource
		if a.results != nil {
			results = a.results
		}
		srv, err := statushttp.NewServer(cfg.HTTP.Listen, cfg.Trade.Quote, a.store, a.cache, results)
		if err != nil {
			return nil, err
		}
		a.httpSrv = srv
	}
	return a, nil
}

// Run 启动全部子任务并等待退出。回测跑完即返回，
// 实盘持续循环直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if a.httpSrv != nil {
		logger.Infof("状态服务监听 %s", a.httpSrv.Addr())
		g.Go(func() error { return a.httpSrv.Start(ctx) })
	}

	if a.cfg.App.IsBacktest() {
		g.Go(func() error {
			// 回测跑完连带收掉状态服务
			defer cancel()
			return a.runBacktest(ctx)
		})
		return g.Wait()
	}

	if a.cfgPath != "" {
		if err := config.Watch(ctx, a.cfgPath, func(next *config.Config) {
			a.SetRules(next.Rules)
		}); err != nil {
			logger.Warnf("配置监听不可用，规则表不再热更新: %v", err)
		}
	}
	g.Go(func() error { return a.runLoop(ctx) })
	return g.Wait()
}

func (a *App) close() {
	if a.results != nil {
		if err := a.results.Close(); err != nil {
			logger.Warnf("关闭回测结果库失败: %v", err)
		}
	}
}
