package presence

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeWriter struct {
	calls []string
	err   error
}

func (w *fakeWriter) SetPresence(_ context.Context, s Status, activity string) error {
	w.calls = append(w.calls, s.String()+"/"+activity)
	return w.err
}

type fakeLookup struct {
	statuses map[string]Status
	names    map[string]string
	lookups  int
}

func (l *fakeLookup) PeerStatus(_ context.Context, _, peerID string) (Status, error) {
	l.lookups++
	s, ok := l.statuses[peerID]
	if !ok {
		return Unknown, errors.New("no such member")
	}
	return s, nil
}

func (l *fakeLookup) PeerName(_ context.Context, _, peerID string) (string, error) {
	return l.names[peerID], nil
}

func newTestCoordinator(w Writer, l Lookup) (*Coordinator, *time.Time) {
	c := NewCoordinator(CoordinatorOptions{
		Writer:   w,
		Lookup:   l,
		CacheTTL: 30 * time.Second,
		Enabled:  true,
	})
	now := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	c.cache.now = c.now
	return c, &now
}

func TestReconcileTransitions(t *testing.T) {
	w := &fakeWriter{}
	c, _ := newTestCoordinator(w, nil)
	ctx := context.Background()

	// Already Available; nothing to write.
	c.Reconcile(ctx, false, time.Time{})
	if len(w.calls) != 0 {
		t.Fatalf("writes = %v, want none", w.calls)
	}

	freesAt := time.Date(2026, 1, 15, 9, 1, 0, 0, time.UTC)
	c.Reconcile(ctx, true, freesAt)
	if c.Current() != Busy {
		t.Fatalf("Current = %v, want Busy", c.Current())
	}
	if len(w.calls) != 1 || w.calls[0] != "busy/cooldown until 09:01:00" {
		t.Fatalf("writes = %v", w.calls)
	}

	c.Reconcile(ctx, false, time.Time{})
	if c.Current() != Available {
		t.Fatalf("Current = %v, want Available", c.Current())
	}
	if len(w.calls) != 2 || w.calls[1] != "available/" {
		t.Fatalf("writes = %v", w.calls)
	}
}

func TestReconcileWatchdog(t *testing.T) {
	w := &fakeWriter{}
	c, now := newTestCoordinator(w, nil)
	ctx := context.Background()

	c.Reconcile(ctx, true, time.Time{})
	if c.Current() != Busy {
		t.Fatal("expected Busy")
	}

	// Simulate a limiter whose state was lost while busySince goes stale:
	// mutate busySince directly past the watchdog window.
	c.mu.Lock()
	c.busySince = now.Add(-66 * time.Second)
	c.mu.Unlock()

	c.Reconcile(ctx, true, time.Time{})
	if c.Current() != Available {
		t.Fatalf("Current after watchdog = %v, want Available", c.Current())
	}
}

func TestReconcileWatchdogFiresWhileStillLimited(t *testing.T) {
	w := &fakeWriter{}
	c, now := newTestCoordinator(w, nil)
	ctx := context.Background()

	c.Reconcile(ctx, true, time.Time{})
	if c.Current() != Busy {
		t.Fatal("setup: expected Busy")
	}

	// Repeated still-limited reconciles must not push the watchdog out:
	// it measures time since the Busy transition, not since the last call.
	*now = now.Add(30 * time.Second)
	c.Reconcile(ctx, true, time.Time{})
	if c.Current() != Busy {
		t.Fatal("watchdog fired early")
	}

	*now = now.Add(60 * time.Second) // 90s since the transition
	c.Reconcile(ctx, true, time.Time{})
	if c.Current() != Available {
		t.Fatalf("Current = %v, want Available after watchdog despite limiter", c.Current())
	}
}

func TestReconcileWriteFailureKeepsState(t *testing.T) {
	w := &fakeWriter{err: errors.New("gateway down")}
	c, _ := newTestCoordinator(w, nil)

	c.Reconcile(context.Background(), true, time.Time{})
	// In-memory state is authoritative even when the write fails.
	if c.Current() != Busy {
		t.Fatalf("Current = %v, want Busy", c.Current())
	}
}

func TestPeerStatusCaches(t *testing.T) {
	l := &fakeLookup{statuses: map[string]Status{"p1": Busy}}
	c, _ := newTestCoordinator(&fakeWriter{}, l)
	ctx := context.Background()

	if s := c.PeerStatus(ctx, "ch", "p1"); s != Busy {
		t.Fatalf("PeerStatus = %v, want Busy", s)
	}
	c.PeerStatus(ctx, "ch", "p1")
	if l.lookups != 1 {
		t.Errorf("lookups = %d, want 1 (second hit served from cache)", l.lookups)
	}

	// Failed lookups come back Unknown and are not cached.
	if s := c.PeerStatus(ctx, "ch", "missing"); s != Unknown {
		t.Fatalf("PeerStatus(missing) = %v, want Unknown", s)
	}
	c.PeerStatus(ctx, "ch", "missing")
	if l.lookups != 3 {
		t.Errorf("lookups = %d, want 3 (Unknown never cached)", l.lookups)
	}
}

func TestFilterMentions(t *testing.T) {
	l := &fakeLookup{
		statuses: map[string]Status{
			"1": Available,
			"2": Busy,
			"3": Offline,
			"4": Idle,
		},
		names: map[string]string{"2": "scout"},
	}
	c, _ := newTestCoordinator(&fakeWriter{}, l)
	ctx := context.Background()

	text := "hey <@1> and <@2>, also <@3> and <@4>"
	mentions := map[string]string{"<@1>": "1", "<@2>": "2", "<@3>": "3", "<@4>": "4"}

	got := c.FilterMentions(ctx, "ch", text, mentions, FilterMentionsOptions{})
	if !strings.Contains(got, "<@1>") {
		t.Errorf("available mention stripped: %q", got)
	}
	if !strings.Contains(got, "<@4>") {
		t.Errorf("idle mention not preserved: %q", got)
	}
	if strings.Contains(got, "<@2>") || !strings.Contains(got, "scout") {
		t.Errorf("busy mention not downgraded to name: %q", got)
	}
	if strings.Contains(got, "<@3>") {
		t.Errorf("offline mention with no name not stripped: %q", got)
	}

	// Opt-in keeps busy mentions intact.
	got = c.FilterMentions(ctx, "ch", text, mentions, FilterMentionsOptions{KeepBusy: true})
	if !strings.Contains(got, "<@2>") {
		t.Errorf("KeepBusy did not preserve mention: %q", got)
	}
}

func TestStatusSummary(t *testing.T) {
	l := &fakeLookup{statuses: map[string]Status{"1": Available, "2": Busy}}
	c, _ := newTestCoordinator(&fakeWriter{}, l)

	got := c.StatusSummary(context.Background(), "ch", []Peer{
		{ID: "1", Name: "echo"},
		{ID: "2", Name: "scout"},
	})
	for _, want := range []string{"echo: available", "scout: busy"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
	if c.StatusSummary(context.Background(), "ch", nil) != "" {
		t.Error("summary for no peers should be empty")
	}
}
