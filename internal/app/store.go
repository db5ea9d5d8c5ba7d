// Package app 组装各组件并驱动实盘循环与回测。
package app

import (
	"sync"

	"upbot/internal/market"
)

// Store 保存循环间共享的行情与账户快照，供决策与状态接口读取。
type Store struct {
	mu      sync.RWMutex
	markets []market.Info
	tickers map[string]market.Ticker
	wallet  []market.WalletEntry
}

func NewStore() *Store {
	return &Store{tickers: make(map[string]market.Ticker)}
}

func (s *Store) SetMarkets(infos []market.Info) {
	s.mu.Lock()
	s.markets = append([]market.Info(nil), infos...)
	s.mu.Unlock()
}

func (s *Store) Markets() []market.Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]market.Info(nil), s.markets...)
}

func (s *Store) SetTickers(tickers []market.Ticker) {
	s.mu.Lock()
	for _, t := range tickers {
		s.tickers[t.Market] = t
	}
	s.mu.Unlock()
}

// Price 返回某市场最新成交价；没有行情时 ok 为 false。
func (s *Store) Price(mkt string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickers[mkt]
	if !ok || t.TradePrice <= 0 {
		return 0, false
	}
	return t.TradePrice, true
}

func (s *Store) SetWallet(wallet []market.WalletEntry) {
	s.mu.Lock()
	s.wallet = append([]market.WalletEntry(nil), wallet...)
	s.mu.Unlock()
}

func (s *Store) Wallet() []market.WalletEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]market.WalletEntry(nil), s.wallet...)
}

// Balance 查询某币种可用余额，未知币种为 0。
func (s *Store) Balance(currency string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.wallet {
		if e.Currency == currency {
			return e.Balance
		}
	}
	return 0
}

// Holding 返回某币种的钱包条目。
func (s *Store) Holding(currency string) (market.WalletEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.wallet {
		if e.Currency == currency {
			return e, true
		}
	}
	return market.WalletEntry{}, false
}
