package backtest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"upbot/internal/market"
)

// RunModel 一次回测的汇总记录。
type RunModel struct {
	ID             uint           `gorm:"primaryKey"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	Markets        datatypes.JSON `gorm:"type:json"`
	Interval       string         `gorm:"size:16"`
	Operator       string         `gorm:"size:16"`
	InitialBalance float64
	FinalEquity    float64
	ProfitRate     float64
	TradeCount     int
}

func (RunModel) TableName() string { return "backtest_runs" }

// TradeModel 回测中的单笔成交。
type TradeModel struct {
	ID        uint   `gorm:"primaryKey"`
	RunID     uint   `gorm:"index"`
	OrderUUID string `gorm:"size:64;uniqueIndex"`
	Market    string `gorm:"size:32;index"`
	Side      string `gorm:"size:8"`
	Price     float64
	Volume    float64
	CreatedAt time.Time
}

func (TradeModel) TableName() string { return "backtest_trades" }

// ResultStore 把回测结果写进 sqlite，便于跨次对比。
type ResultStore struct {
	db *gorm.DB
}

func NewResultStore(path string) (*ResultStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("回测数据库路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return NewResultStoreFromDB(db)
}

func NewResultStoreFromDB(db *gorm.DB) (*ResultStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db 不能为空")
	}
	if err := db.AutoMigrate(&RunModel{}, &TradeModel{}); err != nil {
		return nil, err
	}
	return &ResultStore{db: db}, nil
}

// Summary 回测结束时的汇总输入。
type Summary struct {
	Markets        []string
	Interval       string
	Operator       string
	InitialBalance float64
	FinalEquity    float64
	Orders         []market.Order
}

// SaveRun 落库一次回测的汇总与全部成交，返回 run ID。
func (s *ResultStore) SaveRun(sum Summary) (uint, error) {
	marketsJSON, err := json.Marshal(sum.Markets)
	if err != nil {
		return 0, fmt.Errorf("序列化市场列表失败: %w", err)
	}
	profit := 0.0
	if sum.InitialBalance > 0 {
		profit = (sum.FinalEquity - sum.InitialBalance) / sum.InitialBalance * 100
	}
	run := RunModel{
		Markets:        datatypes.JSON(marketsJSON),
		Interval:       sum.Interval,
		Operator:       sum.Operator,
		InitialBalance: sum.InitialBalance,
		FinalEquity:    sum.FinalEquity,
		ProfitRate:     profit,
		TradeCount:     len(sum.Orders),
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		for _, o := range sum.Orders {
			trade := TradeModel{
				RunID:     run.ID,
				OrderUUID: o.UUID,
				Market:    o.Market,
				Side:      o.Side,
				Price:     o.Price,
				Volume:    o.Volume,
				CreatedAt: o.CreatedAt,
			}
			// 续跑的账本会带上历史成交，重复的订单号直接跳过
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "order_uuid"}},
				DoNothing: true,
			}).Create(&trade).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("保存回测结果失败: %w", err)
	}
	return run.ID, nil
}

// Runs 列出历史回测记录，最新在前。
func (s *ResultStore) Runs(limit int) ([]RunModel, error) {
	var runs []RunModel
	q := s.db.Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// Trades 列出某次回测的成交明细。
func (s *ResultStore) Trades(runID uint) ([]TradeModel, error) {
	var trades []TradeModel
	if err := s.db.Where("run_id = ?", runID).Order("id asc").Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

func (s *ResultStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
