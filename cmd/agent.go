package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/murmurhq/murmur/internal/channels/discord"
	"github.com/murmurhq/murmur/internal/config"
	"github.com/murmurhq/murmur/internal/decision"
	"github.com/murmurhq/murmur/internal/memory"
	"github.com/murmurhq/murmur/internal/presence"
	"github.com/murmurhq/murmur/internal/providers"
	"github.com/murmurhq/murmur/internal/ratelimit"
	"github.com/murmurhq/murmur/internal/respond"
	"github.com/murmurhq/murmur/internal/scoring"
	"github.com/murmurhq/murmur/internal/tracer"
)

const sweepInterval = 30 * time.Second

func agentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Run the agent (connect to Discord and participate)",
		Run: func(cmd *cobra.Command, args []string) {
			runAgent()
		},
	}
}

func runAgent() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := tracer.Setup(cfg.Telemetry.Enabled)
	if err != nil {
		slog.Error("tracer setup failed", "error", err)
		os.Exit(1)
	}

	provider := buildProvider(cfg)

	store, decisions, err := buildStore(cfg)
	if err != nil {
		slog.Error("storage setup failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		slog.Error("discord session setup failed", "error", err)
		os.Exit(1)
	}

	limiter := ratelimit.New(cfg.Rate.ResolvedLimit(), cfg.Rate.Window())
	coord := presence.NewCoordinator(presence.CoordinatorOptions{
		Writer:   discord.NewPresence(session, cfg.Discord.GuildID),
		Lookup:   discord.NewPresence(session, cfg.Discord.GuildID),
		CacheTTL: cfg.Presence.CacheTTL(),
		Enabled:  cfg.Presence.IsEnabled(),
	})

	peers := make([]presence.Peer, 0, len(cfg.Identity.KnownPeers))
	for _, p := range cfg.Identity.KnownPeers {
		peers = append(peers, presence.Peer{ID: p.ID, Name: p.Name})
	}

	oracle := scoring.NewLLMOracle(provider, cfg.Scoring.Model, cfg.Scoring.Timeout())

	var ch *discord.Channel
	history := discord.NewHistory(session, func() string { return ch.BotUserID() })

	pacingMin, pacingMax := cfg.Pacing.Bounds()
	engine := decision.NewEngine(limiter, coord, history, oracle, decisions, decision.Options{
		SelfID:          "", // filled from the session below
		BotName:         cfg.Identity.Name,
		Personality:     cfg.Identity.ResolvedPersonality(),
		Skills:          cfg.Identity.Skills,
		SelfNames:       cfg.Identity.AllNameVariants(),
		HumanNames:      cfg.Identity.KnownHumans,
		Peers:           peers,
		Threshold:       cfg.Scoring.ResolvedThreshold(),
		RateWindow:      cfg.Rate.Window(),
		PacingEnabled:   cfg.Pacing.IsEnabled(),
		PacingMin:       pacingMin,
		PacingMax:       pacingMax,
		BoredomKeywords: cfg.Scoring.BoredomKeywords,
	})

	composer := respond.NewComposer(provider, store, respond.ComposerOptions{
		Model:       cfg.Scoring.Model,
		BotName:     cfg.Identity.Name,
		Personality: cfg.Identity.ResolvedPersonality(),
		MaxChars:    cfg.Reply.ResolvedMaxChars(),
		Scope:       cfg.Identity.Name,
	})

	ch = discord.New(session, engine, composer, coord, history, discord.Options{
		GuildID:  cfg.Discord.GuildID,
		Peers:    peers,
		SendRate: cfg.Reply.ResolvedSendRate(),
		MentionOpts: presence.FilterMentionsOptions{
			KeepBusy:    cfg.Presence.MentionBusy,
			KeepOffline: cfg.Presence.MentionOffline,
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ch.Start(ctx); err != nil {
		slog.Error("discord start failed", "error", err)
		os.Exit(1)
	}
	engine.SetSelfID(ch.BotUserID())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return decision.NewSweeper(limiter, coord, sweepInterval).Run(gctx)
	})

	slog.Info("murmur running", "name", cfg.Identity.Name, "peers", len(peers))
	<-gctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ch.Stop(shutdownCtx); err != nil {
		slog.Warn("discord stop failed", "error", err)
	}
	_ = g.Wait()
	if err := shutdownTracer(shutdownCtx); err != nil {
		slog.Warn("tracer shutdown failed", "error", err)
	}
	slog.Info("murmur stopped")
}

func buildProvider(cfg *config.Config) providers.Provider {
	switch cfg.Scoring.Provider {
	case "openai":
		pc := cfg.Providers.OpenAI
		return providers.NewOpenAIProvider("openai", pc.APIKey, pc.BaseURL, pc.Model)
	default:
		pc := cfg.Providers.Anthropic
		return providers.NewAnthropicProvider(pc.APIKey,
			providers.WithAnthropicModel(pc.Model),
			providers.WithAnthropicBaseURL(pc.BaseURL))
	}
}

// buildStore opens the memory backend. The sqlite backend doubles as
// the decision log; the file backend has none.
func buildStore(cfg *config.Config) (memory.Store, memory.DecisionLog, error) {
	path := config.ExpandHome(cfg.Memory.Path)
	if cfg.Memory.ResolvedBackend() == "file" {
		s, err := memory.NewFileStore(path)
		return s, nil, err
	}
	s, err := memory.NewSQLiteStore(path)
	if err != nil {
		return nil, nil, err
	}
	return s, s, nil
}
