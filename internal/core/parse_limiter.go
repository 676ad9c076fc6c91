package core

// parse_limiter.go caps how many files are parsed at once across all sessions.
// A load that finds every slot busy waits up to maxWait, then fails with
// ErrTooManyLoads and the session shows RATE002.

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrTooManyLoads = errors.New("too many concurrent file loads, please try again later")

// Defaults used when NewParseLimiter gets non-positive values.
const (
	DefaultMaxConcurrentLoads = 5
	DefaultMaxWaitTime        = 30 * time.Second
)

// ParseLimiter hands out parse slots. Sessions reach it through Manager.Load,
// which wraps every LoadFunc with Wrap.
type ParseLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu      sync.Mutex
	active  int
	drained chan struct{} // closed while active == 0
}

// NewParseLimiter allows at most maxConcurrent simultaneous parses.
func NewParseLimiter(maxConcurrent int, maxWait time.Duration) *ParseLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentLoads
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	drained := make(chan struct{})
	close(drained)
	return &ParseLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		drained: drained,
	}
}

// Acquire takes a slot, waiting at most the configured time. The caller must Release it.
func (l *ParseLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyLoads
	}

	l.mu.Lock()
	if l.active == 0 {
		l.drained = make(chan struct{})
	}
	l.active++
	l.mu.Unlock()
	return nil
}

// Release frees a slot taken by Acquire.
func (l *ParseLimiter) Release() {
	l.mu.Lock()
	l.active--
	if l.active == 0 {
		close(l.drained)
	}
	l.mu.Unlock()
	<-l.slots
}

// Wrap returns a LoadFunc that holds a slot for the duration of load.
func (l *ParseLimiter) Wrap(load LoadFunc) LoadFunc {
	return func(ctx context.Context) ([]RawRow, error) {
		if err := l.Acquire(ctx); err != nil {
			return nil, err
		}
		defer l.Release()
		return load(ctx)
	}
}

// WaitForDrain blocks until no parse is active or ctx is done.
func (l *ParseLimiter) WaitForDrain(ctx context.Context) error {
	l.mu.Lock()
	drained := l.drained
	l.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ParseLimiterStatus is reported by the health endpoint.
type ParseLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

func (l *ParseLimiter) Status() ParseLimiterStatus {
	l.mu.Lock()
	active := l.active
	l.mu.Unlock()

	return ParseLimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - active,
		MaxConcurrent: cap(l.slots),
	}
}
