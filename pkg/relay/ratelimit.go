// Copyright 2024-2026 Aiku AI

package relay

import (
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

// Limiter spaces out relayed messages and tracks keepalive pings. It is
// polled by the main loop and never runs on its own timer. It is not safe
// for concurrent use; only the main loop touches it.
//
// Sends go through a token bucket with a burst of one, so two sends are
// always at least one interval apart. All time is read from clock.
type Limiter struct {
	clock     clock.Clock
	sends     *rate.Limiter
	interval  time.Duration
	keepalive time.Duration
	idle      time.Duration
	minWait   time.Duration

	lastPing map[Role]time.Time
}

// NewLimiter builds a Limiter from the parsed timing values.
func NewLimiter(clk clock.Clock, t Timing) *Limiter {
	return &Limiter{
		clock:     clk,
		sends:     rate.NewLimiter(rate.Every(t.Throttle), 1),
		interval:  t.Throttle,
		keepalive: t.Keepalive,
		idle:      t.Idle,
		minWait:   t.MinWait,
		lastPing:  make(map[Role]time.Time, 2),
	}
}

// Ready reports whether a send slot is available now without taking it.
func (l *Limiter) Ready() bool {
	return l.sends.TokensAt(l.clock.Now()) >= 1
}

// Allow takes the send slot if it is available.
func (l *Limiter) Allow() bool {
	return l.sends.AllowN(l.clock.Now(), 1)
}

// KeepaliveDue reports whether more than the keepalive interval has passed
// since the last ping on role.
func (l *Limiter) KeepaliveDue(role Role) bool {
	last, ok := l.lastPing[role]
	if !ok {
		return true
	}
	return l.clock.Since(last) > l.keepalive
}

// MarkPing records a keepalive ping on role.
func (l *Limiter) MarkPing(role Role) {
	l.lastPing[role] = l.clock.Now()
}

// Timeout returns how long the main loop may wait for input. With nothing
// sendable that is the idle timeout; otherwise the time until the next send
// slot, capped at one interval and never below the minimum wait.
func (l *Limiter) Timeout(idle bool) time.Duration {
	if idle {
		return l.idle
	}
	var wait time.Duration
	if tokens := l.sends.TokensAt(l.clock.Now()); tokens < 1 {
		wait = time.Duration((1 - tokens) * float64(l.interval))
	}
	return min(max(wait, l.minWait), l.interval)
}
