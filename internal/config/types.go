package config

import (
	"upbot/internal/strategy"
)

// Config 程序全部配置，从 YAML 加载后补默认值再校验。
type Config struct {
	App      AppConfig      `mapstructure:"app" yaml:"app"`
	Upbit    UpbitConfig    `mapstructure:"upbit" yaml:"upbit"`
	Trade    TradeConfig    `mapstructure:"trade" yaml:"trade"`
	Rules    RulesConfig    `mapstructure:"rules" yaml:"rules"`
	Backtest BacktestConfig `mapstructure:"backtest" yaml:"backtest"`
	Loop     LoopConfig     `mapstructure:"loop" yaml:"loop"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
}

// 运行模式。
const (
	ModeLive     = "live"
	ModeBacktest = "backtest"
)

type AppConfig struct {
	Mode     string `mapstructure:"mode" yaml:"mode"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	CacheDir string `mapstructure:"cache_dir" yaml:"cache_dir"`
	LogsDir  string `mapstructure:"logs_dir" yaml:"logs_dir"`
}

func (a AppConfig) IsBacktest() bool { return a.Mode == ModeBacktest }

type UpbitConfig struct {
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
}

// TradeConfig 市场筛选与判定参数。
type TradeConfig struct {
	Quote    string   `mapstructure:"quote" yaml:"quote"`
	Markets  []string `mapstructure:"markets" yaml:"markets"`
	// 不碰的市场，比如流动性差或已知问题币
	DangerousMarkets []string `mapstructure:"dangerous_markets" yaml:"dangerous_markets"`
	// 持仓市场已下架时是否自动清理
	ClearClosedMarkets bool `mapstructure:"clear_closed_markets" yaml:"clear_closed_markets"`

	Interval    string  `mapstructure:"interval" yaml:"interval"`
	CandleCount int     `mapstructure:"candle_count" yaml:"candle_count"`
	Scope       int     `mapstructure:"scope" yaml:"scope"`
	Basis       string  `mapstructure:"basis" yaml:"basis"`
	BidBet      float64 `mapstructure:"bid_bet" yaml:"bid_bet"`
	AskBet      float64 `mapstructure:"ask_bet" yaml:"ask_bet"`
	Operator    string  `mapstructure:"operator" yaml:"operator"`
}

type RulesConfig struct {
	Bid []strategy.Condition `mapstructure:"bid" yaml:"bid"`
	Ask []strategy.Condition `mapstructure:"ask" yaml:"ask"`
}

type BacktestConfig struct {
	Balance float64  `mapstructure:"balance" yaml:"balance"`
	Markets []string `mapstructure:"markets" yaml:"markets"`
	// 从缓存里的钱包快照与订单历史续跑，而不是按初始资金重新建账
	Resume     bool   `mapstructure:"resume" yaml:"resume"`
	ResultDB   string `mapstructure:"result_db" yaml:"result_db"`
	ReportPath string `mapstructure:"report_path" yaml:"report_path"`
}

type LoopConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds" yaml:"interval_seconds"`
	CooldownSeconds int `mapstructure:"cooldown_seconds" yaml:"cooldown_seconds"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}
