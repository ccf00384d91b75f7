package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Identity: IdentityConfig{
			Name: "Murmur",
		},
		Rate: RateConfig{
			Limit:         3,
			WindowSeconds: 60,
		},
		Presence: PresenceConfig{
			CacheTTLSeconds: 30,
		},
		Scoring: ScoringConfig{
			Provider:       "anthropic",
			Threshold:      5,
			TimeoutSeconds: 15,
		},
		Pacing: PacingConfig{
			MinSeconds: 1,
			MaxSeconds: 3,
		},
		Reply: ReplyConfig{
			MaxChars:          1200,
			SendRatePerSecond: 1,
		},
		Memory: MemoryConfig{
			Backend: "sqlite",
			Path:    "~/.murmur/memory.db",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values; secrets are env-only.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("MURMUR_DISCORD_TOKEN", &c.Discord.Token)
	envStr("MURMUR_ANTHROPIC_API_KEY", &c.Providers.Anthropic.APIKey)
	envStr("MURMUR_OPENAI_API_KEY", &c.Providers.OpenAI.APIKey)
	envStr("MURMUR_NAME", &c.Identity.Name)
	envStr("MURMUR_PERSONALITY_FILE", &c.Identity.PersonalityFile)
	envStr("MURMUR_MEMORY_PATH", &c.Memory.Path)

	if v := os.Getenv("MURMUR_SKILLS"); v != "" {
		c.Identity.Skills = splitCSV(v)
	}
	if v := os.Getenv("MURMUR_NAME_VARIANTS"); v != "" {
		c.Identity.NameVariants = splitCSV(v)
	}
	if v := os.Getenv("MURMUR_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Rate.Limit = n
		}
	}
	if v := os.Getenv("MURMUR_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 9 {
			c.Scoring.Threshold = n
		}
	}
	if v := os.Getenv("MURMUR_PRESENCE"); v != "" {
		b := strings.EqualFold(v, "true") || v == "1"
		c.Presence.Enabled = &b
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}
