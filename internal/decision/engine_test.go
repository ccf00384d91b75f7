package decision

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/murmurhq/murmur/internal/conversation"
	"github.com/murmurhq/murmur/internal/memory"
	"github.com/murmurhq/murmur/internal/presence"
	"github.com/murmurhq/murmur/internal/ratelimit"
	"github.com/murmurhq/murmur/internal/scoring"
)

type stubOracle struct {
	res   *scoring.Result
	err   error
	calls int
	last  scoring.Request
}

func (o *stubOracle) Score(_ context.Context, req scoring.Request) (*scoring.Result, error) {
	o.calls++
	o.last = req
	if o.err != nil {
		return nil, o.err
	}
	return o.res, nil
}

type stubHistory struct {
	window conversation.Window
	err    error
}

func (h *stubHistory) Recent(context.Context, string, string, int) (conversation.Window, error) {
	return h.window, h.err
}

type nullWriter struct{}

func (nullWriter) SetPresence(context.Context, presence.Status, string) error { return nil }

type recordedLog struct {
	mu        sync.Mutex
	decisions []memory.Decision
}

func (l *recordedLog) RecordDecision(_ context.Context, d memory.Decision) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.decisions = append(l.decisions, d)
	return nil
}

func (l *recordedLog) RecentDecisions(context.Context, int) ([]memory.Decision, error) {
	return nil, nil
}

func newTestEngine(oracle scoring.Oracle, log memory.DecisionLog) (*Engine, *ratelimit.Limiter) {
	limiter := ratelimit.New(3, time.Minute)
	coord := presence.NewCoordinator(presence.CoordinatorOptions{
		Writer:  nullWriter{},
		Enabled: true,
	})
	return NewEngine(limiter, coord, &stubHistory{}, oracle, log, Options{
		SelfID:     "42",
		BotName:    "Murmur",
		SelfNames:  []string{"murmur"},
		Threshold:  5,
		RateWindow: time.Minute,
	}), limiter
}

func inbound(content string) Inbound {
	return Inbound{
		ID:         "m1",
		ChannelID:  "ch1",
		AuthorID:   "u1",
		AuthorName: "alice",
		Content:    content,
		Timestamp:  time.Now(),
	}
}

func TestEvaluateRespondsAboveThreshold(t *testing.T) {
	oracle := &stubOracle{res: &scoring.Result{Score: 7, Reasoning: "relevant"}}
	e, limiter := newTestEngine(oracle, nil)

	out, err := e.Evaluate(context.Background(), inbound("hey murmur"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !out.Respond || out.Score != 7 {
		t.Errorf("Outcome = %+v, want respond at 7", out)
	}
	if _, ok := limiter.OldestLive("ch1"); !ok {
		t.Error("respond decision did not commit a timestamp")
	}
}

func TestEvaluateSkipsBelowThreshold(t *testing.T) {
	oracle := &stubOracle{res: &scoring.Result{Score: 3}}
	e, limiter := newTestEngine(oracle, nil)

	out, err := e.Evaluate(context.Background(), inbound("weather talk"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out.Respond || out.SkipReason != "below_threshold" {
		t.Errorf("Outcome = %+v, want skip below_threshold", out)
	}
	if _, ok := limiter.OldestLive("ch1"); ok {
		t.Error("skip decision committed a timestamp")
	}
}

func TestEvaluateThresholdInclusive(t *testing.T) {
	oracle := &stubOracle{res: &scoring.Result{Score: 5}}
	e, _ := newTestEngine(oracle, nil)

	out, _ := e.Evaluate(context.Background(), inbound("x"))
	if !out.Respond {
		t.Error("score equal to threshold should respond")
	}
}

func TestEvaluateSelfAndDM(t *testing.T) {
	oracle := &stubOracle{res: &scoring.Result{Score: 9}}
	e, _ := newTestEngine(oracle, nil)

	in := inbound("x")
	in.IsSelf = true
	out, _ := e.Evaluate(context.Background(), in)
	if out.Respond || out.SkipReason != "self" {
		t.Errorf("self message: %+v", out)
	}

	in = inbound("x")
	in.IsDM = true
	out, _ = e.Evaluate(context.Background(), in)
	if out.Respond || out.SkipReason != "dm" {
		t.Errorf("dm message: %+v", out)
	}
	if oracle.calls != 0 {
		t.Errorf("oracle called %d times for terminal rejects", oracle.calls)
	}
}

func TestEvaluateRateLimited(t *testing.T) {
	oracle := &stubOracle{res: &scoring.Result{Score: 9}}
	e, limiter := newTestEngine(oracle, nil)

	now := time.Now()
	for i := 0; i < 3; i++ {
		limiter.Commit("ch1", now)
	}

	out, err := e.Evaluate(context.Background(), inbound("hey"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out.Respond || out.SkipReason != "rate_limited" {
		t.Errorf("Outcome = %+v, want rate_limited skip", out)
	}
	if oracle.calls != 0 {
		t.Error("oracle consulted for rate-limited message")
	}
	if e.coordinator.Current() != presence.Busy {
		t.Error("rate-limited skip did not set Busy presence")
	}
}

func TestEvaluateFailsOpenOnOracleError(t *testing.T) {
	oracle := &stubOracle{err: errors.New("api down")}
	e, limiter := newTestEngine(oracle, nil)

	out, err := e.Evaluate(context.Background(), inbound("hey"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !out.Respond {
		t.Error("oracle failure must fail open")
	}
	if out.Score != failOpenScore {
		t.Errorf("Score = %d, want %d", out.Score, failOpenScore)
	}
	if !strings.Contains(out.Reasoning, "api down") {
		t.Errorf("Reasoning = %q, want error description", out.Reasoning)
	}
	if _, ok := limiter.OldestLive("ch1"); !ok {
		t.Error("fail-open respond did not commit")
	}
}

func TestEvaluateCancelledContext(t *testing.T) {
	oracle := &stubOracle{err: context.Canceled}
	e, _ := newTestEngine(oracle, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Evaluate(ctx, inbound("hey"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled (no fail-open on shutdown)", err)
	}
}

func TestEvaluateRecordsDecision(t *testing.T) {
	log := &recordedLog{}
	oracle := &stubOracle{res: &scoring.Result{Score: 6, Reasoning: "sure", TopicChange: true}}
	e, _ := newTestEngine(oracle, log)

	out, err := e.Evaluate(context.Background(), inbound("hey"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.decisions) != 1 {
		t.Fatalf("recorded %d decisions, want 1", len(log.decisions))
	}
	d := log.decisions[0]
	if d.ID != out.ID || d.Score != 6 || !d.Respond || !d.TopicChange {
		t.Errorf("recorded = %+v, outcome = %+v", d, out)
	}
}

func TestEvaluatePassesSignalsToOracle(t *testing.T) {
	oracle := &stubOracle{res: &scoring.Result{Score: 5}}
	limiter := ratelimit.New(3, time.Minute)
	coord := presence.NewCoordinator(presence.CoordinatorOptions{Writer: nullWriter{}, Enabled: true})
	base := time.Now().Add(-time.Minute)
	history := &stubHistory{window: conversation.Window{
		{AuthorID: "u1", AuthorName: "alice", Content: "one", Timestamp: base},
		{AuthorID: "42", AuthorName: "Murmur", IsSelf: true, Content: "two", Timestamp: base.Add(time.Second)},
		{AuthorID: "u1", AuthorName: "alice", Content: "bored now", Timestamp: base.Add(2 * time.Second)},
	}}
	e := NewEngine(limiter, coord, history, oracle, nil, Options{
		SelfID:     "42",
		BotName:    "Murmur",
		SelfNames:  []string{"murmur"},
		Threshold:  5,
		RateWindow: time.Minute,
	})

	if _, err := e.Evaluate(context.Background(), inbound("murmur, i'm bored")); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	req := oracle.last
	if req.Flow.MessagesSinceSelf != 1 {
		t.Errorf("MessagesSinceSelf = %d, want 1", req.Flow.MessagesSinceSelf)
	}
	if req.Addressing != conversation.Me {
		t.Errorf("Addressing = %v, want Me", req.Addressing)
	}
	if !req.Topic.BoredomKeyword {
		t.Error("boredom keyword signal not passed")
	}
	if len(req.Window) != 3 {
		t.Errorf("window len = %d, want 3", len(req.Window))
	}
}
