package conversation

import (
	"strings"
	"time"
)

// Target says who the current message is addressed to.
type Target int

const (
	Nobody Target = iota
	Me
	SomeoneElse
)

func (t Target) String() string {
	switch t {
	case Me:
		return "me"
	case SomeoneElse:
		return "someone_else"
	default:
		return "nobody"
	}
}

// FlowSignal describes the rhythm of the conversation relative to us.
type FlowSignal struct {
	// MessagesSinceSelf counts messages after our most recent one; the
	// full window length when we never spoke.
	MessagesSinceSelf int
	// SecondsSinceSelf is the age of our most recent message, nil when
	// we never spoke or its timestamp is unusable.
	SecondsSinceSelf *float64
	// ActiveConversation is true when the last 3 messages involve at
	// most 2 distinct authors and at least 2 messages exist.
	ActiveConversation bool
}

// AnalyzeFlow scans the window newest to oldest for our last message and
// derives how long we have been quiet.
func AnalyzeFlow(w Window, now time.Time) FlowSignal {
	sig := FlowSignal{MessagesSinceSelf: len(w)}
	for i := len(w) - 1; i >= 0; i-- {
		if !w[i].IsSelf {
			continue
		}
		sig.MessagesSinceSelf = len(w) - 1 - i
		if !w[i].Timestamp.IsZero() {
			secs := now.Sub(w[i].Timestamp).Seconds()
			sig.SecondsSinceSelf = &secs
		}
		break
	}

	tail := w.Tail(3)
	sig.ActiveConversation = len(tail) >= 2 && len(tail.Authors()) <= 2
	return sig
}

// AnalyzeAddressing decides who the current message is talking to.
// Precedence, first match wins:
//  1. explicit mention of us
//  2. explicit mention of another user
//  3. our name as plain text
//  4. a known human's name as plain text
//  5. nobody
func AnalyzeAddressing(current Message, selfID string, selfNames, humanNames []string) Target {
	mentions := ExtractMentions(current.Content)
	for _, id := range mentions {
		if id == selfID {
			return Me
		}
	}
	if len(mentions) > 0 {
		return SomeoneElse
	}

	plain := strings.ToLower(StripMentions(current.Content))
	for _, name := range selfNames {
		if name != "" && strings.Contains(plain, strings.ToLower(name)) {
			return Me
		}
	}
	for _, name := range humanNames {
		if name != "" && strings.Contains(plain, strings.ToLower(name)) {
			return SomeoneElse
		}
	}
	return Nobody
}
