package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/murmurhq/murmur/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("murmur doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, defaults + env apply)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Identity:")
	fmt.Printf("    %-12s %s\n", "Name:", cfg.Identity.Name)
	fmt.Printf("    %-12s %d\n", "Peers:", len(cfg.Identity.KnownPeers))
	fmt.Printf("    %-12s %d\n", "Humans:", len(cfg.Identity.KnownHumans))

	fmt.Println()
	fmt.Println("  Secrets:")
	fmt.Printf("    %-24s %s\n", "MURMUR_DISCORD_TOKEN:", present(cfg.Discord.Token))
	fmt.Printf("    %-24s %s\n", "MURMUR_ANTHROPIC_API_KEY:", present(cfg.Providers.Anthropic.APIKey))
	fmt.Printf("    %-24s %s\n", "MURMUR_OPENAI_API_KEY:", present(cfg.Providers.OpenAI.APIKey))

	fmt.Println()
	fmt.Println("  Behavior:")
	fmt.Printf("    %-12s %d per %s\n", "Rate:", cfg.Rate.ResolvedLimit(), cfg.Rate.Window())
	fmt.Printf("    %-12s %d\n", "Threshold:", cfg.Scoring.ResolvedThreshold())
	fmt.Printf("    %-12s %v\n", "Presence:", cfg.Presence.IsEnabled())
	fmt.Printf("    %-12s %s\n", "Provider:", cfg.Scoring.Provider)

	fmt.Println()
	fmt.Println("  Storage:")
	path := config.ExpandHome(cfg.Memory.Path)
	fmt.Printf("    %-12s %s (%s)\n", "Path:", path, cfg.Memory.ResolvedBackend())
	dir := path
	if cfg.Memory.ResolvedBackend() == "sqlite" {
		dir = filepath.Dir(path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Printf("    %-12s NOT WRITABLE: %s\n", "Status:", err)
	} else {
		fmt.Printf("    %-12s writable\n", "Status:")
	}

	fmt.Println()
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  Validation: FAILED — %s\n", err)
		return
	}
	fmt.Println("  Validation: OK")
}

func present(secret string) string {
	if secret == "" {
		return "missing"
	}
	return "set"
}
