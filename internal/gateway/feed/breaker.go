package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"autotrader/internal/logger"
	"autotrader/internal/market"
)

// ErrSuspended is returned while the breaker is open and the upstream
// is not being called.
var ErrSuspended = errors.New("feed suspended after repeated failures")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "CLOSED"
	case breakerOpen:
		return "OPEN"
	case breakerHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// Breaker wraps a Feed and stops calling the upstream once it fails
// threshold times in a row. After the cooldown a single probe call is
// let through; its outcome decides whether the circuit closes again.
// Failures count per provider, not per symbol: an unreachable quote
// API is down for every symbol at once.
type Breaker struct {
	inner     market.Feed
	name      string
	threshold int
	cooldown  time.Duration

	mu          sync.Mutex
	state       breakerState
	failures    int
	lastFailure time.Time
	nowFn       func() time.Time
}

func NewBreaker(inner market.Feed, name string, threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		inner:     inner,
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		state:     breakerClosed,
		nowFn:     time.Now,
	}
}

func (b *Breaker) LatestBar(ctx context.Context, symbol string) (market.Bar, error) {
	if !b.allow() {
		return market.Bar{}, ErrSuspended
	}
	bar, err := b.inner.LatestBar(ctx, symbol)
	if err != nil {
		b.recordFailure()
		return market.Bar{}, err
	}
	b.recordSuccess()
	return bar, nil
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if b.nowFn().Sub(b.lastFailure) > b.cooldown {
			b.transition(breakerHalfOpen)
			return true
		}
		return false
	default:
		return true
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerHalfOpen:
		b.transition(breakerClosed)
		b.failures = 0
	case breakerClosed:
		b.failures = 0
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.nowFn()

	switch b.state {
	case breakerClosed:
		if b.failures >= b.threshold {
			b.transition(breakerOpen)
		}
	case breakerHalfOpen:
		b.transition(breakerOpen)
	}
}

func (b *Breaker) transition(to breakerState) {
	from := b.state
	b.state = to
	logger.Warnf("feed breaker %s: %s -> %s (failures=%d/%d, cooldown=%s)",
		b.name, from, to, b.failures, b.threshold, b.cooldown)
}
