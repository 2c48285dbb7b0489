package core

// limiter.go bounds the number of merge runs processed at once.
//
// Each run parses two workbooks fully into memory, so the limiter keeps a
// burst of uploads from exhausting the process. When every slot is taken a
// new run waits up to maxWait before failing with ErrTooManyMerges.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyMerges is returned when all merge slots are occupied and the
// wait timeout expires.
var ErrTooManyMerges = errors.New("too many concurrent merges, please try again later")

// DefaultMaxConcurrentMerges is the default limit for parallel runs.
const DefaultMaxConcurrentMerges = 4

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// MergeLimiter is a counting semaphore for merge runs.
type MergeLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewMergeLimiter creates a limiter that allows at most maxConcurrent runs.
// Non-positive arguments select the defaults.
func NewMergeLimiter(maxConcurrent int, maxWait time.Duration) *MergeLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentMerges
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &MergeLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire waits for a slot. The caller must call Release once the run ends.
func (l *MergeLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyMerges
	}
}

// TryAcquire takes a slot without blocking and reports whether it succeeded.
func (l *MergeLimiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *MergeLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of runs holding a slot.
func (l *MergeLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until no run holds a slot or ctx is done.
func (l *MergeLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a snapshot of the limiter for health output.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *MergeLimiter) Status() LimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return LimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
