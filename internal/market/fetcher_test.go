package market

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	calls   []string
	pages   [][]Candle
	pageErr error
}

func (f *fakeSource) Candles(_ context.Context, mkt, interval string, count int, to string) ([]Candle, error) {
	f.calls = append(f.calls, to)
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	if len(f.pages) == 0 {
		return nil, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

type memCache struct {
	stored map[string][]Candle
}

func newMemCache() *memCache { return &memCache{stored: map[string][]Candle{}} }

func (m *memCache) key(mkt, interval string) string { return mkt + "/" + interval }

func (m *memCache) UpsertCandles(mkt, interval string, candles []Candle) error {
	key := m.key(mkt, interval)
	m.stored[key] = DedupeCandles(append(m.stored[key], candles...))
	return nil
}

func (m *memCache) ReadCandles(mkt, interval string, limit int) []Candle {
	all := m.stored[m.key(mkt, interval)]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all
}

func tsCandle(t time.Time) Candle {
	return Candle{Market: "KRW-BTC", Time: t.UTC().Format(CandleTimeLayout), Close: 100}
}

func seq(start time.Time, step time.Duration, n int) []Candle {
	out := make([]Candle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, tsCandle(start.Add(time.Duration(i)*step)))
	}
	return out
}

func TestFetchPaginatesBackwards(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	older := seq(base, 4*time.Hour, 200)
	newer := seq(base.Add(800*time.Hour), 4*time.Hour, 200)

	src := &fakeSource{pages: [][]Candle{newer, older}}
	cache := newMemCache()
	f := NewFetcher(src, cache)
	f.now = func() time.Time { return base.Add(2000 * time.Hour) }

	got := f.Fetch(context.Background(), "KRW-BTC", "240", 400, false)
	require.Len(t, got, 400)
	require.Len(t, src.calls, 2)
	assert.Equal(t, "", src.calls[0])
	// 第二页以第一页最旧蜡烛的开盘时间为界
	assert.Equal(t, newer[0].Time, src.calls[1])
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].Time, got[i].Time)
	}
	// 结果总是回写缓存
	assert.Len(t, cache.stored["KRW-BTC/240"], 400)
}

func TestFetchCacheFastPath(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	// 最新一根距今 5 分钟，满足快路径的新鲜度要求
	cached := seq(now.Add(-36*time.Hour-5*time.Minute), 4*time.Hour, 10)
	cache := newMemCache()
	require.NoError(t, cache.UpsertCandles("KRW-BTC", "240", cached))

	// 第一页与缓存重叠，不应再翻第二页
	firstPage := cached[len(cached)-3:]
	src := &fakeSource{pages: [][]Candle{firstPage}}
	f := NewFetcher(src, cache)
	f.now = func() time.Time { return now }

	got := f.Fetch(context.Background(), "KRW-BTC", "240", 10, true)
	require.Len(t, src.calls, 1)
	assert.Len(t, got, 10)
}

func TestFetchCacheStaleFallsThrough(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	// 缓存最新一根距今远超 10 分钟
	cached := seq(now.Add(-200*time.Hour), 4*time.Hour, 10)
	cache := newMemCache()
	require.NoError(t, cache.UpsertCandles("KRW-BTC", "240", cached))

	fresh := seq(now.Add(-20*time.Hour), 4*time.Hour, 5)
	src := &fakeSource{pages: [][]Candle{fresh}}
	f := NewFetcher(src, cache)
	f.now = func() time.Time { return now }

	got := f.Fetch(context.Background(), "KRW-BTC", "240", 5, true)
	require.Len(t, got, 5)
	assert.Equal(t, fresh[0].Time, got[0].Time)
}

func TestFetchPageErrorReturnsPartial(t *testing.T) {
	src := &fakeSource{pageErr: errors.New("boom")}
	f := NewFetcher(src, newMemCache())

	got := f.Fetch(context.Background(), "KRW-BTC", "240", 200, false)
	assert.Empty(t, got)
	assert.Len(t, src.calls, 1)
}

func TestFetchDedupesAcrossPages(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	pageA := seq(base, time.Hour, 200)
	// 第二页与第一页重叠 50 根
	pageB := seq(base.Add(-150*time.Hour), time.Hour, 200)

	src := &fakeSource{pages: [][]Candle{pageA, pageB}}
	f := NewFetcher(src, newMemCache())

	got := f.Fetch(context.Background(), "KRW-BTC", "60", 400, false)
	require.Len(t, got, 350)
	seen := map[string]bool{}
	for _, c := range got {
		require.False(t, seen[c.Time], fmt.Sprintf("duplicate %s", c.Time))
		seen[c.Time] = true
	}
}
