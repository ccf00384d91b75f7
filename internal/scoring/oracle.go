// Package scoring asks a language model whether we should take a turn
// in the conversation, and how eagerly.
package scoring

import (
	"context"

	"github.com/murmurhq/murmur/internal/conversation"
)

// Request carries everything the oracle needs to judge one message.
type Request struct {
	// Identity.
	BotName     string
	Personality string
	Skills      []string

	// Where we are.
	ServerName  string
	ChannelName string

	// Who else is around, preformatted ("name (status), ...").
	PeerSummary  string
	HumanSummary string

	// What was said.
	Window  conversation.Window
	Current conversation.Message

	// Derived signals.
	Flow       conversation.FlowSignal
	Addressing conversation.Target
	Topic      conversation.TopicSignals
}

// Result is the oracle's verdict.
type Result struct {
	// Score is the eagerness to respond, 0 (stay quiet) to 9 (must reply).
	Score     int
	Reasoning string
	// TopicChange suggests pivoting the conversation; Activities are the
	// suggested pivots, at most four.
	TopicChange bool
	Activities  []string
	// Malformed is set when the reply did not follow the response format
	// and defaults were substituted; Raw preserves the reply for
	// diagnostics.
	Malformed bool
	Raw       string
}

// Oracle scores a single message. Implementations must honor ctx
// cancellation; callers treat any error as a transient failure.
type Oracle interface {
	Score(ctx context.Context, req Request) (*Result, error)
}
