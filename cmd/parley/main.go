// Command parley runs the village: seed a world, advance its clock, talk to
// its people and summarize what they said.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/parley/internal/config"
	"github.com/jwebster45206/parley/internal/logger"
)

var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "parley",
		Short: "Parley simulates conversations between villagers",
		Long: "Parley keeps a world of people who know things, want things and owe each other. " +
			"They gossip, ask, bargain and remember, and an LLM gives their lines a voice.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		seedCmd(),
		peopleCmd(),
		tickCmd(),
		talkCmd(),
		workerCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return logger.SetupWriter(cfg, os.Stderr)
}
