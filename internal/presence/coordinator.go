package presence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Writer pushes our own availability to the transport.
type Writer interface {
	// SetPresence publishes the given status with an optional activity
	// label ("cooldown until 12:03:45").
	SetPresence(ctx context.Context, s Status, activity string) error
}

// Lookup resolves a peer's current status and display name from the
// transport. Implementations should be cheap enough to call on misses.
type Lookup interface {
	PeerStatus(ctx context.Context, scope, peerID string) (Status, error)
	PeerName(ctx context.Context, scope, peerID string) (string, error)
}

// Peer identifies a known agent sharing the channel.
type Peer struct {
	ID   string
	Name string
}

// Coordinator owns our availability state machine and the view of peer
// availability. We are either Available or Busy; Busy while rate limited,
// with a watchdog that forces Available once the Busy transition is older
// than the longest possible cooldown, whatever the limiter says.
type Coordinator struct {
	writer   Writer
	lookup   Lookup
	cache    *Cache
	enabled  bool
	watchdog time.Duration

	mu        sync.Mutex
	current   Status
	busySince time.Time

	now func() time.Time
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	Writer   Writer
	Lookup   Lookup
	CacheTTL time.Duration
	Enabled  bool
	// Watchdog bounds how long Busy can persist without a refresh before
	// the coordinator forces Available. Zero means 65 seconds.
	Watchdog time.Duration
}

// NewCoordinator creates a Coordinator starting in the Available state.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	wd := opts.Watchdog
	if wd <= 0 {
		wd = 65 * time.Second
	}
	return &Coordinator{
		writer:   opts.Writer,
		lookup:   opts.Lookup,
		cache:    NewCache(opts.CacheTTL),
		enabled:  opts.Enabled,
		watchdog: wd,
		current:  Available,
		now:      time.Now,
	}
}

// Current returns our current availability.
func (c *Coordinator) Current() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Reconcile aligns our published presence with the rate limiter state.
// rateLimited means at least one channel is at capacity; freesAt, when
// non-zero, is when the oldest committed slot expires. The in-memory
// state is authoritative: a failed transport write is logged and the
// next reconcile retries it.
func (c *Coordinator) Reconcile(ctx context.Context, rateLimited bool, freesAt time.Time) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	now := c.now()

	target := Available
	if rateLimited {
		target = Busy
	}

	// Watchdog: Busy persists at most the watchdog window, measured from
	// the transition. Once exceeded, recovery fires even if the limiter
	// still reports saturation.
	if c.current == Busy && target == Busy && now.Sub(c.busySince) > c.watchdog {
		slog.Warn("busy state exceeded watchdog, forcing available",
			"busy_for", now.Sub(c.busySince).Round(time.Second))
		target = Available
	}

	if target == c.current {
		c.mu.Unlock()
		return
	}

	c.current = target
	if target == Busy {
		c.busySince = now
	}
	c.mu.Unlock()

	activity := ""
	if target == Busy {
		activity = busyActivity(freesAt)
	}
	if err := c.writer.SetPresence(ctx, target, activity); err != nil {
		slog.Warn("presence write failed", "status", target, "error", err)
		return
	}
	slog.Info("presence updated", "status", target, "activity", activity)
}

func busyActivity(freesAt time.Time) string {
	if freesAt.IsZero() {
		return "cooldown"
	}
	return "cooldown until " + freesAt.Format("15:04:05")
}

// PeerStatus returns a peer's availability, consulting the cache first
// and falling back to the transport. Lookup failures return Unknown;
// Unknown is never cached.
func (c *Coordinator) PeerStatus(ctx context.Context, scope, peerID string) Status {
	if s, ok := c.cache.Get(scope, peerID); ok {
		return s
	}
	if c.lookup == nil {
		return Unknown
	}
	s, err := c.lookup.PeerStatus(ctx, scope, peerID)
	if err != nil {
		slog.Debug("peer status lookup failed", "peer", peerID, "error", err)
		return Unknown
	}
	c.cache.Put(scope, peerID, s)
	return s
}

// SweepCache drops hard-expired cache entries.
func (c *Coordinator) SweepCache() int {
	return c.cache.Sweep()
}

// FilterMentionsOptions controls which unreachable mentions survive.
type FilterMentionsOptions struct {
	KeepBusy    bool
	KeepOffline bool
}

// FilterMentions rewrites @mention tokens of busy or offline peers so we
// do not ping agents that cannot answer. A downgraded mention becomes the
// peer's plain display name; when no name resolves the token is dropped.
// mentions maps each token found in text to the peer ID it references.
func (c *Coordinator) FilterMentions(ctx context.Context, scope, text string, mentions map[string]string, opts FilterMentionsOptions) string {
	for token, peerID := range mentions {
		s := c.PeerStatus(ctx, scope, peerID)
		keep := s.Reachable() ||
			(s == Busy && opts.KeepBusy) ||
			(s == Offline && opts.KeepOffline)
		if keep {
			continue
		}
		repl := ""
		if c.lookup != nil {
			if name, err := c.lookup.PeerName(ctx, scope, peerID); err == nil && name != "" {
				repl = name
			}
		}
		text = strings.ReplaceAll(text, token, repl)
	}
	// Collapse doubled spaces left behind by stripped tokens.
	for strings.Contains(text, "  ") {
		text = strings.ReplaceAll(text, "  ", " ")
	}
	return strings.TrimSpace(text)
}

// StatusSummary renders a short availability block for the given peers,
// suitable for inclusion in a model prompt.
func (c *Coordinator) StatusSummary(ctx context.Context, scope string, peers []Peer) string {
	if len(peers) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Agent availability:\n")
	for _, p := range peers {
		s := c.PeerStatus(ctx, scope, p.ID)
		fmt.Fprintf(&b, "- %s: %s\n", p.Name, s)
	}
	return b.String()
}
