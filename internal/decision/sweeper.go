package decision

import (
	"context"
	"log/slog"
	"time"

	"github.com/murmurhq/murmur/internal/presence"
	"github.com/murmurhq/murmur/internal/ratelimit"
)

// Sweeper periodically reconciles presence with the limiter and garbage
// collects both. It is the safety net for state the message-driven path
// failed to clean up.
type Sweeper struct {
	limiter     *ratelimit.Limiter
	coordinator *presence.Coordinator
	interval    time.Duration
}

// NewSweeper creates a Sweeper; interval defaults to 30s.
func NewSweeper(limiter *ratelimit.Limiter, coord *presence.Coordinator, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{limiter: limiter, coordinator: coord, interval: interval}
}

// Run loops until ctx is cancelled. A failing iteration is logged and
// the loop continues.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("sweep iteration panicked", "panic", r)
		}
	}()

	// If no channel is limited anymore, any lingering Busy presence is
	// stale; reconcile fixes it independently of the watchdog.
	limited := s.limiter.AnyLimited()
	s.coordinator.Reconcile(ctx, limited, time.Time{})

	channels := s.limiter.Sweep()
	entries := s.coordinator.SweepCache()
	if channels > 0 || entries > 0 {
		slog.Debug("sweep collected", "channels", channels, "presence_entries", entries)
	}
}
