// Package decision runs the turn-taking pipeline: one evaluation per
// incoming message deciding whether the agent should reply.
package decision

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/murmurhq/murmur/internal/conversation"
	"github.com/murmurhq/murmur/internal/memory"
	"github.com/murmurhq/murmur/internal/presence"
	"github.com/murmurhq/murmur/internal/ratelimit"
	"github.com/murmurhq/murmur/internal/scoring"
	"github.com/murmurhq/murmur/internal/tracer"
)

// failOpenScore is committed when the oracle is unreachable: high
// enough to respond, low enough to keep the hesitation delay sane.
const failOpenScore = 7

// Inbound is one message entering the pipeline.
type Inbound struct {
	ID          string
	ChannelID   string
	ChannelName string
	GuildName   string
	AuthorID    string
	AuthorName  string
	Content     string
	IsSelf      bool
	IsDM        bool
	Timestamp   time.Time
}

// Outcome is the pipeline's verdict for one message.
type Outcome struct {
	ID          string
	Respond     bool
	Score       int
	Reasoning   string
	TopicChange bool
	Activities  []string
	// SkipReason is set when Respond is false: "self", "dm",
	// "rate_limited", or "below_threshold".
	SkipReason string
}

// HistoryReader supplies recent channel history, oldest first, with the
// triggering message excluded.
type HistoryReader interface {
	Recent(ctx context.Context, channelID, beforeID string, limit int) (conversation.Window, error)
}

// Options carries the static configuration the pipeline needs.
type Options struct {
	SelfID          string
	BotName         string
	Personality     string
	Skills          []string
	SelfNames       []string // lowercase name variants, primary included
	HumanNames      []string
	Peers           []presence.Peer
	Threshold       int
	RateWindow      time.Duration
	PacingEnabled   bool
	PacingMin       time.Duration
	PacingMax       time.Duration
	HistoryLimit    int
	BoredomKeywords []string
}

// Engine evaluates messages. Pipelines for different messages run
// concurrently; all shared state lives in the limiter and coordinator.
type Engine struct {
	limiter     *ratelimit.Limiter
	coordinator *presence.Coordinator
	history     HistoryReader
	oracle      scoring.Oracle
	decisions   memory.DecisionLog // optional
	opts        Options

	mu     sync.RWMutex
	selfID string

	now func() time.Time
}

// NewEngine wires the pipeline. decisions may be nil to skip recording.
func NewEngine(limiter *ratelimit.Limiter, coord *presence.Coordinator, history HistoryReader, oracle scoring.Oracle, decisions memory.DecisionLog, opts Options) *Engine {
	if opts.Threshold <= 0 {
		opts.Threshold = 5
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = conversation.DefaultWindowSize
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}
	return &Engine{
		limiter:     limiter,
		coordinator: coord,
		history:     history,
		oracle:      oracle,
		decisions:   decisions,
		opts:        opts,
		selfID:      opts.SelfID,
		now:         time.Now,
	}
}

// SetSelfID updates our own user ID once the transport knows it.
func (e *Engine) SetSelfID(id string) {
	e.mu.Lock()
	e.selfID = id
	e.mu.Unlock()
}

func (e *Engine) getSelfID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.selfID
}

// Evaluate runs the full pipeline for one message. The returned Outcome
// is never nil on a nil error; an error means the pipeline was aborted
// (context cancelled), not that the agent decided to stay quiet.
func (e *Engine) Evaluate(ctx context.Context, in Inbound) (*Outcome, error) {
	ctx, span := tracer.StartSpan(ctx, "decision.evaluate")
	defer span.End()
	span.SetAttributes(
		tracer.StringAttr("channel.id", in.ChannelID),
		tracer.StringAttr("author.id", in.AuthorID),
	)

	out := &Outcome{ID: uuid.NewString()}
	defer func() { e.record(in, out) }()

	// Step 1: self-authored and DM traffic never enters the pipeline.
	if in.IsSelf {
		out.SkipReason = "self"
		return out, nil
	}
	if in.IsDM {
		out.SkipReason = "dm"
		return out, nil
	}

	// Step 2: admission. The arrival timestamp is captured here and
	// committed only if we decide to respond.
	arrival := in.Timestamp
	if arrival.IsZero() {
		arrival = e.now()
	}
	if adm := e.limiter.Admit(in.ChannelID); !adm.Allowed {
		out.SkipReason = "rate_limited"
		e.coordinator.Reconcile(ctx, true, e.freesAt(in.ChannelID))
		slog.Info("skipped: rate limited",
			"channel", in.ChannelID, "count", adm.WindowCount, "limit", adm.Limit)
		return out, nil
	}

	// Step 3: pacing. A short randomized pause so replies do not land
	// with inhuman immediacy. Aborts cleanly on shutdown.
	if err := e.pace(ctx); err != nil {
		return nil, err
	}

	// Step 4: gather context.
	window, err := e.history.Recent(ctx, in.ChannelID, in.ID, e.opts.HistoryLimit)
	if err != nil {
		slog.Warn("history read failed, scoring without window", "channel", in.ChannelID, "error", err)
		window = nil
	}
	current := conversation.Message{
		AuthorID:   in.AuthorID,
		AuthorName: in.AuthorName,
		Content:    in.Content,
		Timestamp:  arrival,
	}
	flow := conversation.AnalyzeFlow(window, e.now())
	addressing := conversation.AnalyzeAddressing(current, e.getSelfID(), e.opts.SelfNames, e.opts.HumanNames)
	topic := conversation.BoredomSignals(window, current, e.opts.BoredomKeywords)
	peerSummary := e.peerSummary(ctx, in.ChannelID)

	// Step 5: score. Oracle failures fail open, they never silence the
	// agent.
	res, err := e.oracle.Score(ctx, scoring.Request{
		BotName:      e.opts.BotName,
		Personality:  e.opts.Personality,
		Skills:       e.opts.Skills,
		ServerName:   in.GuildName,
		ChannelName:  in.ChannelName,
		PeerSummary:  peerSummary,
		HumanSummary: strings.Join(e.opts.HumanNames, ", "),
		Window:       window,
		Current:      current,
		Flow:         flow,
		Addressing:   addressing,
		Topic:        topic,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Error("oracle failed, failing open", "error", err)
		tracer.RecordError(span, err)
		span.SetAttributes(tracer.BoolAttr("oracle.failed", true))
		res = &scoring.Result{
			Score:     failOpenScore,
			Reasoning: fmt.Sprintf("oracle error: %v", err),
		}
	}

	out.Score = res.Score
	out.Reasoning = res.Reasoning
	out.TopicChange = res.TopicChange
	out.Activities = res.Activities

	// Step 6: threshold, inclusive.
	out.Respond = res.Score >= e.opts.Threshold
	if !out.Respond {
		out.SkipReason = "below_threshold"
	}

	// Step 7: commit the pre-captured timestamp before any reply work.
	if out.Respond {
		e.limiter.Commit(in.ChannelID, arrival)
		e.coordinator.Reconcile(ctx, false, time.Time{})
	}

	span.SetAttributes(
		tracer.IntAttr("decision.score", out.Score),
		tracer.BoolAttr("decision.respond", out.Respond),
		tracer.BoolAttr("decision.topic_change", out.TopicChange),
	)
	slog.Info("decision",
		"channel", in.ChannelID,
		"author", in.AuthorName,
		"score", out.Score,
		"respond", out.Respond,
		"topic_change", out.TopicChange,
		"addressing", addressing.String())
	return out, nil
}

func (e *Engine) pace(ctx context.Context) error {
	if !e.opts.PacingEnabled || e.opts.PacingMax <= 0 {
		return nil
	}
	min, max := e.opts.PacingMin, e.opts.PacingMax
	if min < 0 {
		min = 0
	}
	delay := min
	if max > min {
		delay += time.Duration(rand.Int63n(int64(max - min)))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// freesAt is when the oldest live slot for the channel expires, zero if
// none.
func (e *Engine) freesAt(channelID string) time.Time {
	oldest, ok := e.limiter.OldestLive(channelID)
	if !ok {
		return time.Time{}
	}
	return oldest.Add(e.opts.RateWindow)
}

func (e *Engine) peerSummary(ctx context.Context, channelID string) string {
	if len(e.opts.Peers) == 0 {
		return ""
	}
	parts := make([]string, 0, len(e.opts.Peers))
	for _, p := range e.opts.Peers {
		s := e.coordinator.PeerStatus(ctx, channelID, p.ID)
		parts = append(parts, fmt.Sprintf("%s (%s)", p.Name, s))
	}
	return strings.Join(parts, ", ")
}

func (e *Engine) record(in Inbound, out *Outcome) {
	if e.decisions == nil {
		return
	}
	// Detached short deadline: recording never blocks the pipeline.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := e.decisions.RecordDecision(ctx, memory.Decision{
		ID:          out.ID,
		ChannelID:   in.ChannelID,
		AuthorID:    in.AuthorID,
		Respond:     out.Respond,
		Score:       out.Score,
		Reasoning:   out.Reasoning,
		TopicChange: out.TopicChange,
		SkipReason:  out.SkipReason,
		CreatedAt:   e.now().UTC(),
	})
	if err != nil {
		slog.Warn("decision record failed", "error", err)
	}
}
