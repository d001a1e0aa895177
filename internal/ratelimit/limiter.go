package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"social_metrics/internal/domain"
)

// Settings configures one provider's bucket.
type Settings struct {
	RatePerSecond float64
	Burst         int
	MaxConcurrent int
	MaxWait       time.Duration
}

// DefaultSettings applies to provider keys without explicit configuration.
var DefaultSettings = Settings{
	RatePerSecond: 1,
	Burst:         1,
	MaxConcurrent: 2,
	MaxWait:       30 * time.Second,
}

// Permit represents held provider capacity. It must be released exactly once
// when the provider call finishes.
type Permit struct {
	key  string
	slot chan struct{}
}

// Limiter is a per-provider token bucket combined with a concurrent-call
// bound. A caller holds a permit only while an active provider call is in
// flight, never for queue wait.
type Limiter struct {
	mu       sync.Mutex
	settings map[string]Settings
	buckets  map[string]*bucket
}

type bucket struct {
	limiter *rate.Limiter
	slots   chan struct{}
	maxWait time.Duration
}

func New(settings map[string]Settings) *Limiter {
	if settings == nil {
		settings = make(map[string]Settings)
	}
	return &Limiter{
		settings: settings,
		buckets:  make(map[string]*bucket),
	}
}

// Acquire blocks until both a rate token and a concurrency slot for the
// provider key are available, up to the key's max wait. Exceeding the wait
// fails with a RateLimited extract error, which workers treat as retryable.
func (l *Limiter) Acquire(ctx context.Context, key string) (*Permit, error) {
	b := l.bucket(key)

	waitCtx, cancel := context.WithTimeout(ctx, b.maxWait)
	defer cancel()

	if err := b.limiter.Wait(waitCtx); err != nil {
		return nil, domain.NewExtractError(domain.ErrorRateLimited,
			fmt.Errorf("rate token for %s: %w", key, err))
	}

	select {
	case b.slots <- struct{}{}:
		return &Permit{key: key, slot: b.slots}, nil
	case <-waitCtx.Done():
		return nil, domain.NewExtractError(domain.ErrorRateLimited,
			fmt.Errorf("concurrency slot for %s: %w", key, waitCtx.Err()))
	}
}

// Release returns the permit's concurrency slot. Safe to call once per permit.
func (l *Limiter) Release(p *Permit) {
	if p == nil || p.slot == nil {
		return
	}
	<-p.slot
	p.slot = nil
}

func (l *Limiter) bucket(key string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok {
		return b
	}

	s, ok := l.settings[key]
	if !ok {
		s = DefaultSettings
	}
	if s.RatePerSecond <= 0 {
		s.RatePerSecond = DefaultSettings.RatePerSecond
	}
	if s.Burst < 1 {
		s.Burst = DefaultSettings.Burst
	}
	if s.MaxConcurrent < 1 {
		s.MaxConcurrent = DefaultSettings.MaxConcurrent
	}
	if s.MaxWait <= 0 {
		s.MaxWait = DefaultSettings.MaxWait
	}

	b := &bucket{
		limiter: rate.NewLimiter(rate.Limit(s.RatePerSecond), s.Burst),
		slots:   make(chan struct{}, s.MaxConcurrent),
		maxWait: s.MaxWait,
	}
	l.buckets[key] = b
	return b
}
