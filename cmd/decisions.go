package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/murmurhq/murmur/internal/config"
	"github.com/murmurhq/murmur/internal/memory"
)

func decisionsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "Show recent turn-taking decisions",
		Run: func(cmd *cobra.Command, args []string) {
			runDecisions(limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of decisions to show")
	return cmd
}

func runDecisions(limit int) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %s\n", err)
		os.Exit(1)
	}
	if cfg.Memory.ResolvedBackend() != "sqlite" {
		fmt.Fprintln(os.Stderr, "decision history requires the sqlite memory backend")
		os.Exit(1)
	}

	store, err := memory.NewSQLiteStore(config.ExpandHome(cfg.Memory.Path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %s\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	decisions, err := store.RecentDecisions(ctx, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read decisions: %s\n", err)
		os.Exit(1)
	}
	if len(decisions) == 0 {
		fmt.Println("no decisions recorded yet")
		return
	}

	fmt.Printf("%-20s  %-8s  %-5s  %-15s  %s\n", "WHEN", "VERDICT", "SCORE", "SKIP REASON", "REASONING")
	for _, d := range decisions {
		verdict := "skip"
		if d.Respond {
			verdict = "respond"
		}
		reasoning := d.Reasoning
		if len(reasoning) > 60 {
			reasoning = reasoning[:57] + "..."
		}
		fmt.Printf("%-20s  %-8s  %-5d  %-15s  %s\n",
			d.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			verdict, d.Score, d.SkipReason, reasoning)
	}
}
