// Package respond turns a positive decision into reply text.
package respond

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/murmurhq/murmur/internal/conversation"
	"github.com/murmurhq/murmur/internal/decision"
	"github.com/murmurhq/murmur/internal/memory"
	"github.com/murmurhq/murmur/internal/providers"
)

// historyTurns bounds how much of the memory log feeds the reply.
const historyTurns = 20

// Composer generates reply text with the model provider, drawing on the
// per-peer memory log for continuity.
type Composer struct {
	provider providers.Provider
	store    memory.Store
	model    string

	botName     string
	personality string
	maxChars    int
	scope       string
}

// ComposerOptions configures a Composer.
type ComposerOptions struct {
	Model       string
	BotName     string
	Personality string
	MaxChars    int // soft cap passed to the model (default 1200)
	Scope       string
}

// NewComposer creates a Composer. store may be nil to compose without
// memory.
func NewComposer(p providers.Provider, store memory.Store, opts ComposerOptions) *Composer {
	if opts.MaxChars <= 0 {
		opts.MaxChars = 1200
	}
	return &Composer{
		provider:    p,
		store:       store,
		model:       opts.Model,
		botName:     opts.BotName,
		personality: opts.Personality,
		maxChars:    opts.MaxChars,
		scope:       opts.Scope,
	}
}

// Compose generates a reply to the current message, guided by the
// decision outcome. The topic-change flag turns the reply into a pivot
// toward the first suggested activity.
func (c *Composer) Compose(ctx context.Context, out *decision.Outcome, in decision.Inbound, window conversation.Window) (string, error) {
	msgs := []providers.Message{
		{Role: "system", Content: c.systemPrompt(out)},
	}
	msgs = append(msgs, c.historyMessages(ctx, in)...)
	msgs = append(msgs, providers.Message{
		Role:    "user",
		Content: formatTurn(in.AuthorName, in.Content, window),
	})

	resp, err := c.provider.Chat(ctx, providers.ChatRequest{
		Model:    c.model,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("compose reply: %w", err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("compose reply: model returned empty text")
	}

	if c.store != nil {
		key := memory.Key{Scope: c.scope, PeerID: in.AuthorID, ChannelID: in.ChannelID}
		err := c.store.Append(ctx, key,
			memory.Entry{Content: in.Content, IsUser: true, Timestamp: in.Timestamp},
			memory.Entry{Content: text, IsUser: false, Timestamp: time.Now().UTC()},
		)
		if err != nil {
			slog.Warn("memory append failed", "peer", in.AuthorID, "error", err)
		}
	}
	return text, nil
}

func (c *Composer) systemPrompt(out *decision.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, chatting in a shared Discord channel.\n\n", c.botName)
	if c.personality != "" {
		fmt.Fprintf(&b, "PERSONALITY: %s\n\n", c.personality)
	}
	fmt.Fprintf(&b, "Keep replies under %d characters. One or two short paragraphs at most; this is chat, not an essay.\n", c.maxChars)
	b.WriteString("Never use @mentions unless the conversation genuinely needs someone's attention.\n")

	if out != nil && out.TopicChange && len(out.Activities) > 0 {
		fmt.Fprintf(&b, "\nThe conversation has gone stale. Steer it somewhere new: suggest %q (or riff on it) naturally, without announcing a topic change.\n", out.Activities[0])
	}
	return b.String()
}

// historyMessages replays the recent memory log as alternating turns.
func (c *Composer) historyMessages(ctx context.Context, in decision.Inbound) []providers.Message {
	if c.store == nil {
		return nil
	}
	key := memory.Key{Scope: c.scope, PeerID: in.AuthorID, ChannelID: in.ChannelID}
	entries, err := c.store.Recent(ctx, key, historyTurns)
	if err != nil {
		slog.Warn("memory read failed", "peer", in.AuthorID, "error", err)
		return nil
	}
	msgs := make([]providers.Message, 0, len(entries))
	for _, e := range entries {
		role := "assistant"
		if e.IsUser {
			role = "user"
		}
		msgs = append(msgs, providers.Message{Role: role, Content: e.Content})
	}
	return msgs
}

// formatTurn renders the current message with a little surrounding
// channel context so the model sees the room, not just one line.
func formatTurn(author, content string, window conversation.Window) string {
	if len(window) == 0 {
		return fmt.Sprintf("%s: %s", author, content)
	}
	var b strings.Builder
	b.WriteString("Recent channel messages:\n")
	for _, m := range window.Tail(5) {
		fmt.Fprintf(&b, "%s: %s\n", m.AuthorName, m.Content)
	}
	fmt.Fprintf(&b, "\n%s: %s", author, content)
	return b.String()
}

// HesitationDelay maps decision eagerness to a pre-send pause: eager
// replies land fast, marginal ones linger.
func HesitationDelay(score int) time.Duration {
	switch {
	case score >= 8:
		return 0
	case score >= 6:
		return 500 * time.Millisecond
	case score >= 4:
		return time.Second
	default:
		return 2 * time.Second
	}
}

// SplitMessage breaks text into chunks of at most limit characters,
// preferring newline boundaries so code blocks and paragraphs survive.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
