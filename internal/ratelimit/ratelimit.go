// Package ratelimit 按交易所的端点分类做固定窗口限流。
// 超出配额的请求阻塞等待下一个窗口，而不是失败。
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Class 端点分类。
type Class string

const (
	// ClassGeneral 普通查询类接口，30 次/秒。
	ClassGeneral Class = "general"
	// ClassOrder 下单接口，8 次/秒。
	ClassOrder Class = "order"
	// ClassCancel 撤单接口，1 次/2 秒。
	ClassCancel Class = "cancel"
)

type quota struct {
	limit  int
	window time.Duration
}

var defaultQuotas = map[Class]quota{
	ClassGeneral: {limit: 30, window: time.Second},
	ClassOrder:   {limit: 8, window: time.Second},
	ClassCancel:  {limit: 1, window: 2 * time.Second},
}

type windowState struct {
	start time.Time
	count int
}

// Limiter 跟踪每个分类在当前窗口内的请求数。
// now 与 sleep 可注入，便于用假时钟测试。
type Limiter struct {
	mu      sync.Mutex
	quotas  map[Class]quota
	windows map[Class]*windowState

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New() *Limiter {
	return &Limiter{
		quotas:  defaultQuotas,
		windows: make(map[Class]*windowState),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Acquire 占用一个配额槽位。窗口已满时阻塞到窗口翻转，
// 只有 ctx 取消才会返回错误。
func (l *Limiter) Acquire(ctx context.Context, class Class) error {
	q, ok := l.quotas[class]
	if !ok {
		return fmt.Errorf("ratelimit: 未知的端点分类 %q", class)
	}
	for {
		l.mu.Lock()
		now := l.now()
		w := l.windows[class]
		if w == nil || now.Sub(w.start) >= q.window {
			w = &windowState{start: now}
			l.windows[class] = w
		}
		if w.count < q.limit {
			w.count++
			l.mu.Unlock()
			return nil
		}
		wait := q.window - now.Sub(w.start)
		l.mu.Unlock()
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}
