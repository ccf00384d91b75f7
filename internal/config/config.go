package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the root configuration for the murmur agent.
type Config struct {
	Identity  IdentityConfig  `json:"identity"`
	Discord   DiscordConfig   `json:"discord"`
	Rate      RateConfig      `json:"rate"`
	Presence  PresenceConfig  `json:"presence"`
	Scoring   ScoringConfig   `json:"scoring"`
	Pacing    PacingConfig    `json:"pacing"`
	Reply     ReplyConfig     `json:"reply"`
	Memory    MemoryConfig    `json:"memory"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	Providers ProvidersConfig `json:"providers"`
}

// IdentityConfig defines who this agent is in the channel.
type IdentityConfig struct {
	Name            string      `json:"name"`
	NameVariants    []string    `json:"nameVariants,omitempty"`    // nicknames matched as plain text
	Personality     string      `json:"personality,omitempty"`
	PersonalityFile string      `json:"personalityFile,omitempty"` // overrides Personality when readable
	Skills          []string    `json:"skills,omitempty"`
	KnownPeers      []PeerEntry `json:"knownPeers,omitempty"`  // other agents sharing the channel
	KnownHumans     []string    `json:"knownHumans,omitempty"` // display names matched as plain text
}

// PeerEntry identifies another agent by platform ID and display name.
type PeerEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DiscordConfig configures the Discord connection.
// Token is NEVER read from the config file — only from env MURMUR_DISCORD_TOKEN.
type DiscordConfig struct {
	Token   string `json:"-"`
	GuildID string `json:"guildId,omitempty"` // optional: restrict to one guild
}

// RateConfig bounds how often the agent may respond per channel.
type RateConfig struct {
	Limit         int `json:"limit,omitempty"`         // responses per window (default 3)
	WindowSeconds int `json:"windowSeconds,omitempty"` // sliding window length (default 60)
}

func (r RateConfig) ResolvedLimit() int {
	if r.Limit > 0 {
		return r.Limit
	}
	return 3
}

func (r RateConfig) Window() time.Duration {
	if r.WindowSeconds > 0 {
		return time.Duration(r.WindowSeconds) * time.Second
	}
	return 60 * time.Second
}

// PresenceConfig controls status coordination with peer agents.
type PresenceConfig struct {
	Enabled         *bool `json:"enabled,omitempty"`         // default true (nil = enabled)
	CacheTTLSeconds int   `json:"cacheTtlSeconds,omitempty"` // peer status cache TTL (default 30)
	MentionBusy     bool  `json:"mentionBusy,omitempty"`     // keep @mentions of busy peers (default false)
	MentionOffline  bool  `json:"mentionOffline,omitempty"`  // keep @mentions of offline peers (default false)
}

func (p PresenceConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

func (p PresenceConfig) CacheTTL() time.Duration {
	if p.CacheTTLSeconds > 0 {
		return time.Duration(p.CacheTTLSeconds) * time.Second
	}
	return 30 * time.Second
}

// ScoringConfig configures the turn-taking oracle.
type ScoringConfig struct {
	Provider        string   `json:"provider,omitempty"`        // "anthropic" (default) or "openai"
	Model           string   `json:"model,omitempty"`           // provider default when empty
	Threshold       int      `json:"threshold,omitempty"`       // respond when score >= threshold (default 5)
	TimeoutSeconds  int      `json:"timeoutSeconds,omitempty"`  // oracle call timeout (default 15)
	BoredomKeywords []string `json:"boredomKeywords,omitempty"` // extra topic-change trigger words
}

func (s ScoringConfig) ResolvedThreshold() int {
	if s.Threshold > 0 {
		return s.Threshold
	}
	return 5
}

func (s ScoringConfig) Timeout() time.Duration {
	if s.TimeoutSeconds > 0 {
		return time.Duration(s.TimeoutSeconds) * time.Second
	}
	return 15 * time.Second
}

// PacingConfig inserts a humanizing delay before context gathering.
type PacingConfig struct {
	Enabled    *bool `json:"enabled,omitempty"` // default true
	MinSeconds int   `json:"minSeconds,omitempty"`
	MaxSeconds int   `json:"maxSeconds,omitempty"`
}

func (p PacingConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// Bounds returns the delay range, defaulting to 1–3s and repairing
// an inverted range.
func (p PacingConfig) Bounds() (time.Duration, time.Duration) {
	lo, hi := 1, 3
	if p.MinSeconds > 0 {
		lo = p.MinSeconds
	}
	if p.MaxSeconds > 0 {
		hi = p.MaxSeconds
	}
	if hi < lo {
		hi = lo
	}
	return time.Duration(lo) * time.Second, time.Duration(hi) * time.Second
}

// ReplyConfig shapes response composition and delivery.
type ReplyConfig struct {
	MaxChars          int     `json:"maxChars,omitempty"`          // soft cap fed to the model (default 1200)
	SendRatePerSecond float64 `json:"sendRatePerSecond,omitempty"` // outbound send throttle (default 1)
}

func (r ReplyConfig) ResolvedMaxChars() int {
	if r.MaxChars > 0 {
		return r.MaxChars
	}
	return 1200
}

func (r ReplyConfig) ResolvedSendRate() float64 {
	if r.SendRatePerSecond > 0 {
		return r.SendRatePerSecond
	}
	return 1
}

// MemoryConfig selects the conversation log backend.
type MemoryConfig struct {
	Backend string `json:"backend,omitempty"` // "sqlite" (default) or "file"
	Path    string `json:"path,omitempty"`    // db file or directory (default under ~/.murmur)
}

func (m MemoryConfig) ResolvedBackend() string {
	if m.Backend == "file" {
		return "file"
	}
	return "sqlite"
}

// TelemetryConfig enables OpenTelemetry span export to stdout.
type TelemetryConfig struct {
	Enabled bool `json:"enabled,omitempty"`
}

// ProvidersConfig holds LLM provider credentials and model defaults.
// API keys come from env only (MURMUR_ANTHROPIC_API_KEY, MURMUR_OPENAI_API_KEY).
type ProvidersConfig struct {
	Anthropic ProviderConfig `json:"anthropic,omitempty"`
	OpenAI    ProviderConfig `json:"openai,omitempty"`
}

// ProviderConfig configures one LLM provider.
type ProviderConfig struct {
	APIKey  string `json:"-"`
	Model   string `json:"model,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"`
}

// AllNameVariants returns all lowercase name forms matched as plain text,
// always including the primary name.
func (i IdentityConfig) AllNameVariants() []string {
	variants := make([]string, 0, len(i.NameVariants)+1)
	seen := map[string]bool{}
	for _, v := range append([]string{i.Name}, i.NameVariants...) {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" && !seen[v] {
			variants = append(variants, v)
			seen[v] = true
		}
	}
	return variants
}

// ResolvedPersonality loads the personality file when configured,
// falling back to the inline string, then to a generic default.
func (i IdentityConfig) ResolvedPersonality() string {
	if i.PersonalityFile != "" {
		if data, err := os.ReadFile(ExpandHome(i.PersonalityFile)); err == nil {
			if p := strings.TrimSpace(string(data)); p != "" {
				return p
			}
		}
	}
	if i.Personality != "" {
		return i.Personality
	}
	return "A curious, friendly conversationalist who speaks up when genuinely interested."
}

// PeerIDs returns the IDs of all known peers.
func (i IdentityConfig) PeerIDs() []string {
	ids := make([]string, 0, len(i.KnownPeers))
	for _, p := range i.KnownPeers {
		ids = append(ids, p.ID)
	}
	return ids
}

// Validate reports fatal configuration problems. Config errors are
// fatal at startup, never recoverable per-message.
func (c *Config) Validate() error {
	if c.Identity.Name == "" {
		return fmt.Errorf("identity.name is required")
	}
	if c.Discord.Token == "" {
		return fmt.Errorf("discord token missing (set MURMUR_DISCORD_TOKEN)")
	}
	switch c.Scoring.Provider {
	case "", "anthropic":
		if c.Providers.Anthropic.APIKey == "" {
			return fmt.Errorf("anthropic API key missing (set MURMUR_ANTHROPIC_API_KEY)")
		}
	case "openai":
		if c.Providers.OpenAI.APIKey == "" {
			return fmt.Errorf("openai API key missing (set MURMUR_OPENAI_API_KEY)")
		}
	default:
		return fmt.Errorf("unknown scoring provider %q", c.Scoring.Provider)
	}
	return nil
}
