// Package ratelimit provides the shared sliding-window rate limiter that
// bounds outbound tool calls across all agents in a run.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"yqhp/crew-engine/pkg/logger"
)

// DefaultWindow is the measurement window for the request budget.
const DefaultWindow = time.Minute

// ErrWaitTimeout is returned when a caller waited longer than the
// configured maximum for a slot.
type ErrWaitTimeout struct {
	MaxWait time.Duration
}

// Error implements the error interface.
func (e *ErrWaitTimeout) Error() string {
	return fmt.Sprintf("rate limiter: no slot available within %v", e.MaxWait)
}

// IsWaitTimeout checks if the error is a limiter wait timeout.
func IsWaitTimeout(err error) bool {
	_, ok := err.(*ErrWaitTimeout)
	return ok
}

type waiter struct {
	ready   chan struct{}
	granted bool
}

// Limiter is a sliding-window rate limiter. At most Max grants are issued
// per Window; callers beyond the budget block in FIFO order until a grant
// from the window's trailing edge expires.
//
// A nil *Limiter is valid and never blocks, so a run with rate limiting
// disabled carries no limiter at all.
type Limiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	maxWait time.Duration

	stamps  []time.Time
	waiters []*waiter
	timer   *time.Timer

	now func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithMaxWait bounds how long Acquire may block. Zero means unbounded.
func WithMaxWait(d time.Duration) Option {
	return func(l *Limiter) { l.maxWait = d }
}

// New creates a Limiter allowing max grants per window. A max of zero or
// below returns nil, meaning unlimited.
func New(max int, window time.Duration, opts ...Option) *Limiter {
	if max <= 0 {
		return nil
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		max:    max,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire blocks until a slot is available, the context is cancelled, or
// the maximum wait elapses. A nil receiver grants immediately.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	now := l.now()
	l.prune(now)

	// Fast path only when nobody is already queued, otherwise a late
	// caller would jump the FIFO line.
	if len(l.waiters) == 0 && len(l.stamps) < l.max {
		l.stamps = append(l.stamps, now)
		l.mu.Unlock()
		return nil
	}

	w := &waiter{ready: make(chan struct{})}
	l.waiters = append(l.waiters, w)
	l.scheduleLocked(now)
	l.mu.Unlock()

	logger.Debug("rate limiter saturated, waiting for slot",
		zap.Int("max", l.max),
		zap.Duration("window", l.window))

	var timeout <-chan time.Time
	if l.maxWait > 0 {
		t := time.NewTimer(l.maxWait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		if l.abandon(w) {
			return ctx.Err()
		}
		// The grant raced the cancellation; keep it.
		return nil
	case <-timeout:
		if l.abandon(w) {
			return &ErrWaitTimeout{MaxWait: l.maxWait}
		}
		return nil
	}
}

// abandon removes w from the queue. It reports false when the grant
// already landed, in which case the slot stays consumed.
func (l *Limiter) abandon(w *waiter) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w.granted {
		return false
	}
	for i, cand := range l.waiters {
		if cand == w {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			break
		}
	}
	return true
}

// InWindow returns the number of grants inside the current window.
func (l *Limiter) InWindow() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.stamps)
}

// Waiting returns the number of queued callers.
func (l *Limiter) Waiting() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiters)
}

// prune drops grant timestamps that fell out of the window and hands the
// freed slots to queued waiters in order. Caller holds l.mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
	for len(l.waiters) > 0 && len(l.stamps) < l.max {
		w := l.waiters[0]
		l.waiters = l.waiters[1:]
		w.granted = true
		l.stamps = append(l.stamps, now)
		close(w.ready)
	}
}

// scheduleLocked arms the wakeup timer for the next slot release.
// Caller holds l.mu.
func (l *Limiter) scheduleLocked(now time.Time) {
	if len(l.waiters) == 0 || len(l.stamps) == 0 {
		return
	}
	delay := l.stamps[0].Add(l.window).Sub(now)
	if delay < 0 {
		delay = 0
	}
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(delay, l.dispatch)
}

func (l *Limiter) dispatch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.prune(now)
	l.scheduleLocked(now)
}
