// Package ratelimit provides a per-channel sliding-window limiter that
// separates the admission check from the commit, so a caller can test
// capacity before doing expensive work and only consume a slot when the
// work actually produced output.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

// Limiter tracks response timestamps per channel over a sliding window.
// Admit never mutates counted state; Commit records a consumed slot.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	sent   map[string][]time.Time

	now func() time.Time // overridable for tests
}

// New creates a Limiter allowing limit commits per window per channel.
func New(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 3
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		limit:  limit,
		window: window,
		sent:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// AdmissionDecision is the result of one capacity check.
type AdmissionDecision struct {
	Allowed     bool
	WindowCount int // live commits in the window at check time
	Limit       int
}

// Admit reports whether the channel has capacity for one more response.
// It prunes expired timestamps but never consumes a slot.
func (l *Limiter) Admit(channelID string) AdmissionDecision {
	l.mu.Lock()
	defer l.mu.Unlock()

	live := l.prune(channelID, l.now())
	return AdmissionDecision{
		Allowed:     len(live) < l.limit,
		WindowCount: len(live),
		Limit:       l.limit,
	}
}

// Commit records one consumed slot at ts. The caller captures ts before
// starting slow work and commits it afterwards, so the window reflects
// when the decision was made rather than when the reply landed.
func (l *Limiter) Commit(channelID string, ts time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sent[channelID] = append(l.prune(channelID, l.now()), ts)
}

// OldestLive returns the oldest unexpired timestamp for the channel and
// whether one exists. Useful for reporting when capacity frees up.
func (l *Limiter) OldestLive(channelID string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	live := l.prune(channelID, l.now())
	if len(live) == 0 {
		return time.Time{}, false
	}
	return live[0], true
}

// AnyLimited reports whether any tracked channel is currently at its limit.
func (l *Limiter) AnyLimited() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id := range l.sent {
		if len(l.prune(id, now)) >= l.limit {
			return true
		}
	}
	return false
}

// Sweep drops channels whose newest timestamp is older than twice the
// window. Returns the number of channels removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-2 * l.window)
	removed := 0
	for id, ts := range l.sent {
		if len(ts) == 0 || ts[len(ts)-1].Before(cutoff) {
			delete(l.sent, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("rate limiter swept", "channels", removed)
	}
	return removed
}

// prune drops expired timestamps for the channel and stores the result.
// Past twice the limit only the newest limit entries are kept, so a
// runaway caller cannot grow the slice unbounded. Caller must hold l.mu.
func (l *Limiter) prune(channelID string, now time.Time) []time.Time {
	ts := l.sent[channelID]
	if len(ts) == 0 {
		return nil
	}
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i > 0 {
		ts = ts[i:]
	}
	if len(ts) > 2*l.limit {
		ts = ts[len(ts)-l.limit:]
	}
	if len(ts) == 0 {
		delete(l.sent, channelID)
		return nil
	}
	l.sent[channelID] = ts
	return ts
}
