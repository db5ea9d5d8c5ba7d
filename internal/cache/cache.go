// Package cache 实现按日分片的蜡烛缓存、钱包快照与订单历史的落盘。
// 所有文件都是结构化 JSON，采用“合并后整体重写”的方式更新，
// 写入经临时文件 + rename 保证原子性；缺失或损坏的文件按空数据处理。
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"upbot/internal/logger"
	"upbot/internal/market"
)

// Store 管理缓存目录下的全部持久化数据。
type Store struct {
	dir string
	mu  sync.Mutex
}

// New 构造指向 dir 的缓存存储，目录在首次写入时创建。
func New(dir string) *Store {
	if strings.TrimSpace(dir) == "" {
		dir = ".caches"
	}
	return &Store{dir: dir}
}

// Dir 返回缓存根目录。
func (s *Store) Dir() string { return s.dir }

type candleShard struct {
	Market   string          `json:"market"`
	Interval string          `json:"interval"`
	Candles  []market.Candle `json:"candles"`
}

type walletFile struct {
	Wallet []market.WalletEntry `json:"wallet"`
}

type orderFile struct {
	Market string         `json:"market"`
	Orders []market.Order `json:"orders"`
}

func (s *Store) candleDir(mkt, interval string) string {
	return filepath.Join(s.dir, "candles", mkt, interval)
}

func (s *Store) candlePath(mkt, interval, day string) string {
	return filepath.Join(s.candleDir(mkt, interval), day+".json")
}

func (s *Store) walletPath() string {
	return filepath.Join(s.dir, "wallet.json")
}

func (s *Store) orderPath(mkt string) string {
	return filepath.Join(s.dir, "orders", mkt+".json")
}

// readJSON 读取并解析缓存文件。文件缺失或内容损坏都视为空，
// 由调用方用零值继续，缓存永远不是数据的唯一权威。
func readJSON(path string, out any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		logger.Warnf("cache: %s 内容损坏，按空数据处理: %v", path, err)
		return false
	}
	return true
}

// writeJSON 先写临时文件再 rename，避免半截文件被后续读取。
func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache: 创建目录失败: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: 序列化失败: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("cache: 创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cache: 写入失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// UpsertCandles 把蜡烛按 UTC 日历日分片合并写入。
// 同一开盘时间的记录被整体替换，其余追加，分片内保持升序。
// 幂等：重复写入同一批蜡烛不会改变磁盘内容。
func (s *Store) UpsertCandles(mkt, interval string, candles []market.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	byDay := make(map[string][]market.Candle)
	for _, c := range candles {
		day := c.Day()
		byDay[day] = append(byDay[day], c)
	}
	for day, dayCandles := range byDay {
		path := s.candlePath(mkt, interval, day)
		shard := candleShard{Market: mkt, Interval: interval}
		readJSON(path, &shard)
		shard.Market = mkt
		shard.Interval = interval
		shard.Candles = market.DedupeCandles(append(shard.Candles, dayCandles...))
		if err := writeJSON(path, shard); err != nil {
			return err
		}
	}
	return nil
}

// ReadCandles 从最新的日分片开始回溯读取，凑满 limit 根后
// 以升序返回最后 limit 根。缓存为空或目录缺失时返回 nil，不报错。
func (s *Store) ReadCandles(mkt, interval string, limit int) []market.Candle {
	if limit <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.candleDir(mkt, interval))
	if err != nil {
		return nil
	}
	days := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		days = append(days, strings.TrimSuffix(name, ".json"))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))

	var candles []market.Candle
	for _, day := range days {
		var shard candleShard
		if !readJSON(s.candlePath(mkt, interval, day), &shard) {
			continue
		}
		candles = append(candles, shard.Candles...)
		if len(candles) >= limit {
			break
		}
	}
	candles = market.DedupeCandles(candles)
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles
}

// SaveWallet 覆盖写入钱包快照。
func (s *Store) SaveWallet(wallet []market.WalletEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wallet == nil {
		wallet = []market.WalletEntry{}
	}
	return writeJSON(s.walletPath(), walletFile{Wallet: wallet})
}

// LoadWallet 读取钱包快照，缺失时返回 nil。
func (s *Store) LoadWallet() []market.WalletEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var f walletFile
	readJSON(s.walletPath(), &f)
	return f.Wallet
}

// UpsertOrders 合并写入某市场的订单历史：按标识符更新或追加，
// 文件内按标识符降序。用于回测记录与实盘对账两条路径。
func (s *Store) UpsertOrders(mkt string, orders []market.Order) error {
	if len(orders) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.orderPath(mkt)
	f := orderFile{Market: mkt}
	readJSON(path, &f)
	f.Market = mkt

	byID := make(map[string]int, len(f.Orders))
	for i, o := range f.Orders {
		byID[o.UUID] = i
	}
	for _, o := range orders {
		if idx, ok := byID[o.UUID]; ok {
			f.Orders[idx] = o
			continue
		}
		byID[o.UUID] = len(f.Orders)
		f.Orders = append(f.Orders, o)
	}
	market.SortOrdersDesc(f.Orders)
	return writeJSON(path, f)
}

// LoadOrders 读取某市场的订单历史（降序），缺失时返回 nil。
func (s *Store) LoadOrders(mkt string) []market.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	var f orderFile
	readJSON(s.orderPath(mkt), &f)
	return f.Orders
}

// LoadAllOrders 汇总全部市场的订单历史，按标识符降序。
func (s *Store) LoadAllOrders() []market.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.dir, "orders"))
	if err != nil {
		return nil
	}
	var all []market.Order
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var f orderFile
		if readJSON(filepath.Join(s.dir, "orders", e.Name()), &f) {
			all = append(all, f.Orders...)
		}
	}
	market.SortOrdersDesc(all)
	return all
}
