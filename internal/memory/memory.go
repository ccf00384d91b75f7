// Package memory persists the per-peer conversation log and the record
// of turn-taking decisions.
package memory

import (
	"context"
	"time"
)

// Entry is one logged message.
type Entry struct {
	Content   string    `json:"content"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
}

// Key identifies one conversation log.
type Key struct {
	Scope     string `json:"scope"` // our agent identity
	PeerID    string `json:"peerId"`
	ChannelID string `json:"channelId"`
}

// String renders the key in scope:peer:channel form.
func (k Key) String() string {
	return k.Scope + ":" + k.PeerID + ":" + k.ChannelID
}

// Store is an append-only conversation log.
type Store interface {
	// Append adds entries to the log for key.
	Append(ctx context.Context, key Key, entries ...Entry) error
	// Recent returns the most recent n entries, oldest first.
	Recent(ctx context.Context, key Key, n int) ([]Entry, error)
	// Reset drops the log for key.
	Reset(ctx context.Context, key Key) error
	Close() error
}

// Decision is one recorded pipeline outcome.
type Decision struct {
	ID          string
	ChannelID   string
	AuthorID    string
	Respond     bool
	Score       int
	Reasoning   string
	TopicChange bool
	SkipReason  string
	CreatedAt   time.Time
}

// DecisionLog records pipeline outcomes for later inspection.
type DecisionLog interface {
	RecordDecision(ctx context.Context, d Decision) error
	RecentDecisions(ctx context.Context, limit int) ([]Decision, error)
}
