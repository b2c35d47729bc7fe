// Package ratelimit bounds the rate of admitted operations per resource
// class with a sliding window: admissions are counted over a continuously
// moving interval, so bursts at window boundaries are smoothed rather than
// reset. Callers over the quota queue and are released FIFO as the oldest
// admissions age out of the window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// scheduler slack added to re-check timers so the oldest timestamp has
// reliably left the window when the timer fires.
const drainSlack = 5 * time.Millisecond

type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Stats is a non-blocking observability snapshot.
type Stats struct {
	Active      int     `json:"active"`
	Capacity    int     `json:"capacity"`
	Queued      int     `json:"queued"`
	Utilization float64 `json:"utilization"`
}

// Limiter admits at most MaxRequests operations per rolling Window. It is
// an explicitly constructed instance, not process-global state; tests and
// callers own their own.
type Limiter struct {
	cfg Config

	mu       sync.Mutex
	admitted []time.Time     // admission timestamps inside the window, oldest first
	waiters  []chan struct{} // FIFO queue of blocked callers
	timer    *time.Timer
}

func New(cfg Config) *Limiter {
	if cfg.MaxRequests < 1 {
		cfg.MaxRequests = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{cfg: cfg}
}

// Acquire blocks until the caller is admitted. It never rejects on
// capacity grounds: every caller is eventually admitted in FIFO order.
// The only error is a cancelled context.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	now := time.Now()
	l.evictLocked(now)
	if len(l.waiters) == 0 && len(l.admitted) < l.cfg.MaxRequests {
		l.admitted = append(l.admitted, now)
		l.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	l.waiters = append(l.waiters, ch)
	l.scheduleDrainLocked(now)
	l.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		l.abandon(ch)
		return ctx.Err()
	}
}

// Stats reports the current window occupancy without blocking admissions
// for longer than a map read.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictLocked(time.Now())
	return Stats{
		Active:      len(l.admitted),
		Capacity:    l.cfg.MaxRequests,
		Queued:      len(l.waiters),
		Utilization: float64(len(l.admitted)) / float64(l.cfg.MaxRequests) * 100,
	}
}

// Reset clears all state. Queued waiters are released immediately; test
// isolation only.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.admitted = nil
	for _, ch := range l.waiters {
		close(ch)
	}
	l.waiters = nil
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

// evictLocked drops admission timestamps older than the window.
func (l *Limiter) evictLocked(now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	i := 0
	for i < len(l.admitted) && !l.admitted[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.admitted = append(l.admitted[:0], l.admitted[i:]...)
	}
}

// scheduleDrainLocked arms the re-check timer for the moment the oldest
// admission leaves the window.
func (l *Limiter) scheduleDrainLocked(now time.Time) {
	if l.timer != nil || len(l.admitted) == 0 {
		return
	}
	wait := l.cfg.Window - now.Sub(l.admitted[0]) + drainSlack
	if wait < drainSlack {
		wait = drainSlack
	}
	l.timer = time.AfterFunc(wait, l.drain)
}

// drain admits queued callers, oldest first, up to the freed capacity,
// then re-arms for the next oldest admission if the queue is not empty.
func (l *Limiter) drain() {
	l.mu.Lock()
	l.timer = nil
	now := time.Now()
	l.evictLocked(now)
	for len(l.waiters) > 0 && len(l.admitted) < l.cfg.MaxRequests {
		ch := l.waiters[0]
		l.waiters = l.waiters[1:]
		l.admitted = append(l.admitted, now)
		close(ch)
	}
	if len(l.waiters) > 0 {
		l.scheduleDrainLocked(now)
	}
	l.mu.Unlock()
}

// abandon removes a cancelled waiter from the queue. If the waiter was
// already granted, its slot stays recorded and ages out of the window.
func (l *Limiter) abandon(ch chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, w := range l.waiters {
		if w == ch {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			return
		}
	}
}
