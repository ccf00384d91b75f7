package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/murmurhq/murmur/internal/conversation"
)

// History reads recent channel messages for the decision pipeline.
type History struct {
	session   *discordgo.Session
	botUserID func() string
}

// NewHistory wraps a session. botUserID is deferred because the bot's
// identity is only known after the gateway connects.
func NewHistory(session *discordgo.Session, botUserID func() string) *History {
	return &History{session: session, botUserID: botUserID}
}

// Recent returns up to limit messages before beforeID, oldest first.
// The Discord API returns newest first; the window is reversed so the
// analyzer sees chronological order.
func (h *History) Recent(ctx context.Context, channelID, beforeID string, limit int) (conversation.Window, error) {
	msgs, err := h.session.ChannelMessages(channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("read channel history: %w", err)
	}

	selfID := h.botUserID()
	window := make(conversation.Window, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Author == nil {
			continue
		}
		window = append(window, conversation.Message{
			AuthorID:   m.Author.ID,
			AuthorName: displayName(m),
			IsSelf:     m.Author.ID == selfID,
			Content:    m.Content,
			Timestamp:  m.Timestamp,
		})
	}
	return window, nil
}

// displayName returns the best available name for a message author:
// server nickname, then global display name, then username.
func displayName(m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
