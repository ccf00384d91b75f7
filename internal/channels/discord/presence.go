package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/murmurhq/murmur/internal/presence"
)

// Presence adapts a discordgo session to the coordinator's Writer and
// Lookup interfaces.
type Presence struct {
	session *discordgo.Session
	guildID string
}

// NewPresence wraps a session. guildID scopes member lookups; empty
// means lookups resolve against whatever guild the scope channel is in.
func NewPresence(session *discordgo.Session, guildID string) *Presence {
	return &Presence{session: session, guildID: guildID}
}

// SetPresence publishes our own status. Busy maps to do-not-disturb
// with the cooldown label as a watching activity.
func (p *Presence) SetPresence(_ context.Context, s presence.Status, activity string) error {
	data := discordgo.UpdateStatusData{Status: string(discordgo.StatusOnline)}
	if s == presence.Busy {
		data.Status = string(discordgo.StatusDoNotDisturb)
	}
	if activity != "" {
		data.Activities = []*discordgo.Activity{{
			Name: activity,
			Type: discordgo.ActivityTypeWatching,
		}}
	}
	if err := p.session.UpdateStatusComplex(data); err != nil {
		return fmt.Errorf("update discord status: %w", err)
	}
	return nil
}

// PeerStatus resolves a peer's availability from gateway presence state.
func (p *Presence) PeerStatus(ctx context.Context, scope, peerID string) (presence.Status, error) {
	guildID, err := p.resolveGuild(scope)
	if err != nil {
		return presence.Unknown, err
	}

	pr, err := p.session.State.Presence(guildID, peerID)
	if err != nil {
		// No presence event seen yet. A member that exists but has no
		// presence is offline; a missing member is unknown.
		if _, merr := p.member(ctx, guildID, peerID); merr != nil {
			return presence.Unknown, fmt.Errorf("resolve peer %s: %w", peerID, merr)
		}
		return presence.Offline, nil
	}
	return presence.ParseStatus(string(pr.Status)), nil
}

// PeerName resolves a peer's display name: server nickname first, then
// global name, then username.
func (p *Presence) PeerName(ctx context.Context, scope, peerID string) (string, error) {
	guildID, err := p.resolveGuild(scope)
	if err != nil {
		return "", err
	}
	m, err := p.member(ctx, guildID, peerID)
	if err != nil {
		return "", err
	}
	if m.Nick != "" {
		return m.Nick, nil
	}
	if m.User != nil {
		if m.User.GlobalName != "" {
			return m.User.GlobalName, nil
		}
		return m.User.Username, nil
	}
	return "", fmt.Errorf("member %s has no user record", peerID)
}

func (p *Presence) member(ctx context.Context, guildID, peerID string) (*discordgo.Member, error) {
	if m, err := p.session.State.Member(guildID, peerID); err == nil {
		return m, nil
	}
	m, err := p.session.GuildMember(guildID, peerID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch member: %w", err)
	}
	return m, nil
}

// resolveGuild maps a scope (channel ID) to its guild, preferring the
// configured guild when set.
func (p *Presence) resolveGuild(scope string) (string, error) {
	if p.guildID != "" {
		return p.guildID, nil
	}
	ch, err := p.session.State.Channel(scope)
	if err != nil {
		ch, err = p.session.Channel(scope)
		if err != nil {
			return "", fmt.Errorf("resolve channel %s: %w", scope, err)
		}
	}
	if ch.GuildID == "" {
		return "", fmt.Errorf("channel %s is not in a guild", scope)
	}
	return ch.GuildID, nil
}
