package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social_metrics/internal/domain"
)

func TestLimiter_AcquireRelease(t *testing.T) {
	l := New(map[string]Settings{
		"instagram": {RatePerSecond: 100, Burst: 10, MaxConcurrent: 2, MaxWait: time.Second},
	})

	permit, err := l.Acquire(context.Background(), "instagram")
	require.NoError(t, err)
	require.NotNil(t, permit)

	l.Release(permit)
	// Releasing twice must not panic or corrupt the slot count.
	l.Release(permit)

	permit, err = l.Acquire(context.Background(), "instagram")
	require.NoError(t, err)
	l.Release(permit)
}

func TestLimiter_ConcurrencyBound(t *testing.T) {
	l := New(map[string]Settings{
		"tiktok": {RatePerSecond: 1000, Burst: 1000, MaxConcurrent: 2, MaxWait: 5 * time.Second},
	})

	var active, peak int64
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			permit, err := l.Acquire(context.Background(), "tiktok")
			if err != nil {
				return
			}
			defer l.Release(permit)

			cur := atomic.AddInt64(&active, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&active, -1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestLimiter_MaxWaitExceeded(t *testing.T) {
	l := New(map[string]Settings{
		"twitter": {RatePerSecond: 1000, Burst: 1000, MaxConcurrent: 1, MaxWait: 50 * time.Millisecond},
	})

	permit, err := l.Acquire(context.Background(), "twitter")
	require.NoError(t, err)
	defer l.Release(permit)

	_, err = l.Acquire(context.Background(), "twitter")
	require.Error(t, err)

	var ee *domain.ExtractError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, domain.ErrorRateLimited, ee.Kind)
}

func TestLimiter_RateTokenTimeout(t *testing.T) {
	l := New(map[string]Settings{
		"youtube": {RatePerSecond: 0.001, Burst: 1, MaxConcurrent: 5, MaxWait: 50 * time.Millisecond},
	})

	// Burn the single burst token.
	permit, err := l.Acquire(context.Background(), "youtube")
	require.NoError(t, err)
	l.Release(permit)

	_, err = l.Acquire(context.Background(), "youtube")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorRateLimited, domain.ClassifyError(err))
}

func TestLimiter_UnknownKeyUsesDefaults(t *testing.T) {
	l := New(nil)

	permit, err := l.Acquire(context.Background(), "anything")
	require.NoError(t, err)
	l.Release(permit)
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l := New(map[string]Settings{
		"facebook": {RatePerSecond: 1000, Burst: 1000, MaxConcurrent: 1, MaxWait: time.Minute},
	})

	permit, err := l.Acquire(context.Background(), "facebook")
	require.NoError(t, err)
	defer l.Release(permit)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = l.Acquire(ctx, "facebook")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorRateLimited, domain.ClassifyError(err))
}
