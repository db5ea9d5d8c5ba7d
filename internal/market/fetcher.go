package market

import (
	"context"
	"time"

	"upbot/internal/logger"
)

const (
	// fetchPageSize 交易所单次蜡烛请求的上限。
	fetchPageSize = 200
	// cacheFreshness 缓存快路径允许的最新蜡烛年龄。
	cacheFreshness = 10 * time.Minute
)

// CandleSource 上游蜡烛来源。to 为空表示取最新一页，
// 否则取早于 to（开盘时间，UTC 字符串）的一页。返回顺序不作要求。
type CandleSource interface {
	Candles(ctx context.Context, mkt, interval string, count int, to string) ([]Candle, error)
}

// CandleCache 蜡烛落盘缓存。
type CandleCache interface {
	UpsertCandles(mkt, interval string, candles []Candle) error
	ReadCandles(mkt, interval string, limit int) []Candle
}

// Fetcher 组合上游与缓存，向后分页直到凑满目标数量。
type Fetcher struct {
	source CandleSource
	cache  CandleCache
	now    func() time.Time
}

func NewFetcher(source CandleSource, cache CandleCache) *Fetcher {
	return &Fetcher{source: source, cache: cache, now: time.Now}
}

// Fetch 获取某市场最近 count 根蜡烛，升序返回。
//
// useCache 时先读缓存：若缓存条数够且最新一根距今不超过 10 分钟，
// 只需第一页网络数据与缓存块重叠（存在相同开盘时间）即可拼接缓存、
// 停止分页。否则持续向后翻页，直到凑满或交易所无更早数据。
// 任何一页出错都中止分页并返回已累积的部分，调用方把短结果当
// 尽力而为处理。无论走哪条路径，结果都会回写缓存。
func (f *Fetcher) Fetch(ctx context.Context, mkt, interval string, count int, useCache bool) []Candle {
	if count <= 0 {
		return nil
	}

	var cached []Candle
	cacheHot := false
	if useCache && f.cache != nil {
		cached = f.cache.ReadCandles(mkt, interval, count)
		if len(cached) >= count {
			last := cached[len(cached)-1].OpenTime()
			if !last.IsZero() && f.now().UTC().Sub(last) <= cacheFreshness {
				cacheHot = true
			}
		}
	}

	pages := (count + fetchPageSize - 1) / fetchPageSize
	var acc []Candle
	to := ""
	for p := 0; p < pages; p++ {
		size := fetchPageSize
		if remain := count - len(acc); remain < size {
			size = remain
		}
		page, err := f.source.Candles(ctx, mkt, interval, size, to)
		if err != nil {
			logger.Warnf("fetch %s/%s 第 %d 页失败，返回已获取部分: %v", mkt, interval, p+1, err)
			break
		}
		if len(page) == 0 {
			break
		}
		acc = append(acc, page...)

		if cacheHot && overlaps(page, cached) {
			// 网络块与缓存块相连，剩余历史直接取缓存
			acc = append(acc, cached...)
			break
		}
		if len(DedupeCandles(acc)) >= count {
			break
		}
		to = oldestTime(page)
	}

	result := DedupeCandles(acc)
	if len(result) > count {
		result = result[len(result)-count:]
	}
	if f.cache != nil && len(result) > 0 {
		if err := f.cache.UpsertCandles(mkt, interval, result); err != nil {
			logger.Warnf("fetch %s/%s 回写缓存失败: %v", mkt, interval, err)
		}
	}
	return result
}

func overlaps(page, cached []Candle) bool {
	if len(page) == 0 || len(cached) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(cached))
	for _, c := range cached {
		seen[c.Time] = struct{}{}
	}
	for _, c := range page {
		if _, ok := seen[c.Time]; ok {
			return true
		}
	}
	return false
}

func oldestTime(page []Candle) string {
	oldest := page[0].Time
	for _, c := range page[1:] {
		if c.Time < oldest {
			oldest = c.Time
		}
	}
	return oldest
}
