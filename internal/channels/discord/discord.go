// Package discord connects the decision pipeline to a Discord guild:
// gateway events in, paced and filtered replies out.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/murmurhq/murmur/internal/conversation"
	"github.com/murmurhq/murmur/internal/decision"
	"github.com/murmurhq/murmur/internal/presence"
	"github.com/murmurhq/murmur/internal/respond"
)

const maxMessageLen = 2000

// NewSession creates a gateway session with the intents this bot needs:
// guild messages plus presence and member state for peer coordination.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildPresences |
		discordgo.IntentsGuildMembers
	session.StateEnabled = true
	return session, nil
}

// Options configures a Channel.
type Options struct {
	GuildID      string // restrict to one guild when set
	Peers        []presence.Peer
	MentionOpts  presence.FilterMentionsOptions
	SendRate     float64 // outbound messages per second (default 1)
	HistoryLimit int
}

// Channel receives guild messages, runs each through the decision
// engine on its own goroutine, and delivers replies.
type Channel struct {
	session     *discordgo.Session
	engine      *decision.Engine
	composer    *respond.Composer
	coordinator *presence.Coordinator
	history     *History
	opts        Options

	sendLimiter *rate.Limiter

	mu        sync.Mutex
	botUserID string
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	pipelines sync.WaitGroup
}

// New wires a Channel over an existing session.
func New(session *discordgo.Session, engine *decision.Engine, composer *respond.Composer, coord *presence.Coordinator, history *History, opts Options) *Channel {
	if opts.SendRate <= 0 {
		opts.SendRate = 1
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = conversation.DefaultWindowSize
	}
	return &Channel{
		session:     session,
		engine:      engine,
		composer:    composer,
		coordinator: coord,
		history:     history,
		opts:        opts,
		sendLimiter: rate.NewLimiter(rate.Limit(opts.SendRate), 1),
	}
}

// BotUserID returns our own user ID, empty before Start completes.
func (c *Channel) BotUserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.botUserID
}

// Start opens the gateway connection and begins receiving events.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting discord bot")

	c.mu.Lock()
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.session.AddHandler(c.handleMessage)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	user, err := c.session.User("@me")
	if err != nil {
		c.session.Close()
		return fmt.Errorf("fetch discord bot identity: %w", err)
	}

	c.mu.Lock()
	c.botUserID = user.ID
	c.running = true
	c.mu.Unlock()

	slog.Info("discord bot connected", "username", user.Username, "id", user.ID)
	c.surveyPeers(ctx)
	return nil
}

// Stop closes the gateway and waits briefly for in-flight pipelines.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping discord bot")

	c.mu.Lock()
	c.running = false
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		c.pipelines.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		slog.Warn("pipelines still running at shutdown")
	}
	return c.session.Close()
}

// surveyPeers warms the presence cache so the first decisions already
// know who is around.
func (c *Channel) surveyPeers(ctx context.Context) {
	if c.opts.GuildID == "" || len(c.opts.Peers) == 0 {
		return
	}
	summary := c.coordinator.StatusSummary(ctx, c.opts.GuildID, c.opts.Peers)
	if summary != "" {
		slog.Info("peer survey", "summary", summary)
	}
}

// handleMessage dispatches each gateway message to its own pipeline
// goroutine so one slow decision never blocks the event stream.
func (c *Channel) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}

	c.mu.Lock()
	running := c.running
	ctx := c.ctx
	selfID := c.botUserID
	c.mu.Unlock()
	if !running {
		return
	}

	if c.opts.GuildID != "" && m.GuildID != "" && m.GuildID != c.opts.GuildID {
		return
	}

	in := decision.Inbound{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		ChannelName: c.channelName(m.ChannelID),
		GuildName:   c.guildName(m.GuildID),
		AuthorID:    m.Author.ID,
		AuthorName:  resolveDisplayName(m),
		Content:     m.Content,
		IsSelf:      m.Author.ID == selfID,
		IsDM:        m.GuildID == "",
		Timestamp:   m.Timestamp,
	}

	c.pipelines.Add(1)
	go func() {
		defer c.pipelines.Done()
		c.runPipeline(ctx, in)
	}()
}

func (c *Channel) runPipeline(ctx context.Context, in decision.Inbound) {
	out, err := c.engine.Evaluate(ctx, in)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("pipeline failed", "channel", in.ChannelID, "error", err)
		}
		return
	}
	if !out.Respond {
		return
	}

	// Eager decisions reply immediately; marginal ones hang back.
	if delay := respond.HesitationDelay(out.Score); delay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	if err := c.session.ChannelTyping(in.ChannelID); err != nil {
		slog.Debug("typing indicator failed", "channel", in.ChannelID, "error", err)
	}

	window, err := c.history.Recent(ctx, in.ChannelID, in.ID, c.opts.HistoryLimit)
	if err != nil {
		slog.Warn("history read for composer failed", "channel", in.ChannelID, "error", err)
	}

	text, err := c.composer.Compose(ctx, out, in, window)
	if err != nil {
		// A failed composition is a silent skip, never an error message
		// in the channel.
		slog.Error("compose failed", "channel", in.ChannelID, "error", err)
		return
	}

	text = c.coordinator.FilterMentions(ctx, in.ChannelID, text, conversation.MentionTokens(text), c.opts.MentionOpts)
	if text == "" {
		slog.Info("reply empty after mention filtering, skipping", "channel", in.ChannelID)
		return
	}

	if err := c.send(ctx, in.ChannelID, text); err != nil {
		slog.Error("send failed", "channel", in.ChannelID, "error", err)
	}
}

// send delivers text in 2000-char chunks under the outbound throttle.
func (c *Channel) send(ctx context.Context, channelID, text string) error {
	for _, chunk := range respond.SplitMessage(text, maxMessageLen) {
		if err := c.sendLimiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := c.session.ChannelMessageSend(channelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}
	}
	return nil
}

func (c *Channel) channelName(channelID string) string {
	if ch, err := c.session.State.Channel(channelID); err == nil {
		return ch.Name
	}
	return ""
}

func (c *Channel) guildName(guildID string) string {
	if guildID == "" {
		return ""
	}
	if g, err := c.session.State.Guild(guildID); err == nil {
		return g.Name
	}
	return ""
}

// resolveDisplayName returns the best available display name for a
// message author: server nickname, then global name, then username.
func resolveDisplayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
