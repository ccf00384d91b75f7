// Package conversation derives addressing and flow signals from a short
// window of recent channel messages. Everything here is a pure function
// over values; transports build the window, this package interprets it.
package conversation

import "time"

// Message is one entry in a conversation window.
type Message struct {
	AuthorID   string
	AuthorName string
	IsSelf     bool
	Content    string
	Timestamp  time.Time
}

// Window is a bounded slice of recent messages, oldest first.
type Window []Message

// DefaultWindowSize bounds how much history feeds a decision.
const DefaultWindowSize = 10

// Tail returns the last n messages (all of them when the window is
// shorter).
func (w Window) Tail(n int) Window {
	if len(w) <= n {
		return w
	}
	return w[len(w)-n:]
}

// Authors returns the distinct author IDs in the window, in first-seen
// order.
func (w Window) Authors() []string {
	seen := make(map[string]struct{}, len(w))
	var out []string
	for _, m := range w {
		if _, ok := seen[m.AuthorID]; ok {
			continue
		}
		seen[m.AuthorID] = struct{}{}
		out = append(out, m.AuthorID)
	}
	return out
}
