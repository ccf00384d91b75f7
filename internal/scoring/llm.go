package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/murmurhq/murmur/internal/providers"
)

// LLMOracle scores messages by asking a model provider.
type LLMOracle struct {
	provider providers.Provider
	model    string
	timeout  time.Duration
}

// NewLLMOracle wraps a provider. model may be empty to use the
// provider's default; timeout bounds each Score call (default 15s).
func NewLLMOracle(p providers.Provider, model string, timeout time.Duration) *LLMOracle {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &LLMOracle{provider: p, model: model, timeout: timeout}
}

// Score builds the turn-taking prompt, calls the provider, and parses
// the reply. Transport and timeout errors propagate to the caller, who
// owns the fail-open policy; format problems do not error, they come
// back as a Malformed result.
func (o *LLMOracle) Score(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	prompt := BuildPrompt(req)
	start := time.Now()

	resp, err := o.provider.Chat(ctx, providers.ChatRequest{
		Model:     o.model,
		MaxTokens: 300,
		Messages: []providers.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scoring oracle: %w", err)
	}

	res := ParseResult(resp.Content)
	slog.Debug("oracle scored message",
		"score", res.Score,
		"topic_change", res.TopicChange,
		"malformed", res.Malformed,
		"duration", time.Since(start).Round(time.Millisecond),
		"provider", o.provider.Name())
	if res.Malformed {
		slog.Warn("oracle reply missing score line", "raw", truncate(resp.Content, 200))
	}
	return res, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
