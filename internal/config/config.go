// Package config 负责加载、补全与校验 YAML 配置。
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"upbot/internal/market"
	"upbot/internal/strategy"
)

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败 (%s): %w", path, err)
		}
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Mode == "" {
		c.App.Mode = ModeBacktest
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.CacheDir == "" {
		c.App.CacheDir = ".caches"
	}
	if c.App.LogsDir == "" {
		c.App.LogsDir = ".logs"
	}
	// 密钥优先取配置文件，缺省时回落到环境变量
	if c.Upbit.AccessKey == "" {
		c.Upbit.AccessKey = os.Getenv("UPBIT_ACCESS_KEY")
	}
	if c.Upbit.SecretKey == "" {
		c.Upbit.SecretKey = os.Getenv("UPBIT_SECRET_KEY")
	}
	if c.Trade.Quote == "" {
		c.Trade.Quote = "KRW"
	}
	if c.Trade.Interval == "" {
		c.Trade.Interval = "240"
	}
	if c.Trade.CandleCount <= 0 {
		c.Trade.CandleCount = 200
	}
	if c.Trade.Scope <= 0 {
		c.Trade.Scope = 10
	}
	if c.Trade.Basis == "" {
		c.Trade.Basis = market.BasisClose
	}
	if c.Trade.BidBet <= 0 {
		c.Trade.BidBet = 30000
	}
	if c.Trade.AskBet <= 0 {
		c.Trade.AskBet = 30000
	}
	if c.Trade.Operator == "" {
		c.Trade.Operator = "MACD"
	}
	if len(c.Rules.Bid) == 0 && len(c.Rules.Ask) == 0 {
		c.Rules.Bid, c.Rules.Ask = DefaultRules(c.Trade.Operator)
	}
	if c.Backtest.Balance <= 0 {
		c.Backtest.Balance = 1000000
	}
	if len(c.Backtest.Markets) == 0 {
		c.Backtest.Markets = []string{"KRW-BTC", "KRW-ETH"}
	}
	if c.Backtest.ResultDB == "" {
		c.Backtest.ResultDB = ".caches/backtest.db"
	}
	if c.Loop.IntervalSeconds <= 0 {
		c.Loop.IntervalSeconds = 60
	}
	if c.Loop.CooldownSeconds <= 0 {
		c.Loop.CooldownSeconds = 300
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":8787"
	}
}

func validate(c *Config) error {
	switch c.App.Mode {
	case ModeLive, ModeBacktest:
	default:
		return fmt.Errorf("app.mode 必须是 %s 或 %s, 实际为 %q", ModeLive, ModeBacktest, c.App.Mode)
	}
	// 实盘缺密钥属于致命配置错误，启动即失败
	if c.App.Mode == ModeLive && (c.Upbit.AccessKey == "" || c.Upbit.SecretKey == "") {
		return fmt.Errorf("实盘模式必须配置 upbit.access_key 与 upbit.secret_key")
	}
	if !strategy.ValidInterval(c.Trade.Interval) {
		return fmt.Errorf("trade.interval 取值不受支持: %q", c.Trade.Interval)
	}
	if c.Trade.Basis != market.BasisOpen && c.Trade.Basis != market.BasisClose {
		return fmt.Errorf("trade.basis 必须是 %s 或 %s", market.BasisOpen, market.BasisClose)
	}
	if c.Trade.Scope < 2 {
		return fmt.Errorf("trade.scope 不能小于 2")
	}
	if c.Trade.CandleCount < c.Trade.Scope {
		return fmt.Errorf("trade.candle_count 不能小于 trade.scope")
	}
	// MACD 预热期内指标不可用，蜡烛太少会导致规则永远不命中
	if floor := macdCandleFloor(); rulesUseMACD(c.Rules) && c.Trade.CandleCount < floor {
		return fmt.Errorf("规则使用 MACD 时 trade.candle_count 不能小于 %d（预热期内指标不可用）", floor)
	}
	if err := validateRules("rules.bid", c.Rules.Bid); err != nil {
		return err
	}
	if err := validateRules("rules.ask", c.Rules.Ask); err != nil {
		return err
	}
	return nil
}

func rulesUseMACD(rules RulesConfig) bool {
	for _, r := range append(append([]strategy.Condition(nil), rules.Bid...), rules.Ask...) {
		if strings.EqualFold(r.Indicator, "MACD") {
			return true
		}
	}
	return false
}

func validateRules(name string, rules []strategy.Condition) error {
	for i, r := range rules {
		if _, ok := indicatorOperator(r.Indicator); !ok {
			return fmt.Errorf("%s[%d].indicator 不受支持: %q", name, i, r.Indicator)
		}
		if r.Min > r.Max {
			return fmt.Errorf("%s[%d] 区间无效: min %v > max %v", name, i, r.Min, r.Max)
		}
		if r.Rate <= 0 {
			return fmt.Errorf("%s[%d].rate 必须大于 0", name, i)
		}
	}
	return nil
}

// Dump 输出补全后的有效配置，密钥打码，方便排查配置问题。
func (c *Config) Dump() (string, error) {
	clone := *c
	if clone.Upbit.AccessKey != "" {
		clone.Upbit.AccessKey = mask(clone.Upbit.AccessKey)
	}
	if clone.Upbit.SecretKey != "" {
		clone.Upbit.SecretKey = mask(clone.Upbit.SecretKey)
	}
	data, err := yaml.Marshal(&clone)
	if err != nil {
		return "", fmt.Errorf("导出有效配置失败: %w", err)
	}
	return string(data), nil
}

func mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-4)
}
