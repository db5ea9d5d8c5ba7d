package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) install(l *Limiter) {
	l.now = func() time.Time { return c.now }
	l.sleep = func(_ context.Context, d time.Duration) error {
		c.sleeps = append(c.sleeps, d)
		c.now = c.now.Add(d)
		return nil
	}
}

func TestAcquireWithinQuota(t *testing.T) {
	l := New()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	clock.install(l)

	for i := 0; i < 30; i++ {
		require.NoError(t, l.Acquire(context.Background(), ClassGeneral))
	}
	assert.Empty(t, clock.sleeps)
}

func TestAcquireBlocksUntilWindowRolls(t *testing.T) {
	l := New()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	clock.install(l)

	for i := 0; i < 8; i++ {
		require.NoError(t, l.Acquire(context.Background(), ClassOrder))
	}
	// 第 9 次必须等到窗口翻转
	require.NoError(t, l.Acquire(context.Background(), ClassOrder))
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, time.Second, clock.sleeps[0])
}

func TestCancelClassTwoSecondWindow(t *testing.T) {
	l := New()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	clock.install(l)

	require.NoError(t, l.Acquire(context.Background(), ClassCancel))
	clock.now = clock.now.Add(500 * time.Millisecond)
	require.NoError(t, l.Acquire(context.Background(), ClassCancel))
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, 1500*time.Millisecond, clock.sleeps[0])
}

func TestAcquireUnknownClass(t *testing.T) {
	l := New()
	assert.Error(t, l.Acquire(context.Background(), Class("bogus")))
}

func TestAcquireContextCancelled(t *testing.T) {
	l := New()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	l.now = func() time.Time { return clock.now }
	l.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, l.Acquire(ctx, ClassCancel))
	assert.Error(t, l.Acquire(ctx, ClassCancel))
}
