package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jwebster45206/parley/internal/conversation"
	"github.com/jwebster45206/parley/internal/logger"
)

func talkCmd() *cobra.Command {
	var (
		watch   bool
		logPath string
	)

	cmd := &cobra.Command{
		Use:   "talk <you> <them>",
		Short: "Start a conversation in the terminal",
		Long: "Talk as <you> to <them>, choosing each of your lines from the best few on offer. " +
			"With --watch, <you> is played by the engine too.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// the terminal belongs to the UI, so logs go to a file
			f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("talk: opening log file: %w", err)
			}
			defer func() { _ = f.Close() }()
			log := logger.SetupWriter(cfg, f)

			ctx := cmd.Context()
			a, err := newApp(ctx, log, true)
			if err != nil {
				return fmt.Errorf("talk: %w", err)
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Error("Error during shutdown", "error", err)
				}
			}()

			you, err := a.roster.ByName(ctx, args[0])
			if err != nil {
				return fmt.Errorf("talk: %s: %w", args[0], err)
			}
			them, err := a.roster.ByName(ctx, args[1])
			if err != nil {
				return fmt.Errorf("talk: %s: %w", args[1], err)
			}
			you.Player = !watch

			speaker := &ConsoleSpeaker{}
			conv, err := conversation.New(ctx, you, them, a.deps(speaker))
			if err != nil {
				return fmt.Errorf("talk: %w", err)
			}

			p := tea.NewProgram(NewConsoleUI(ctx, conv), tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
			speaker.Attach(p)
			_, runErr := p.Run()
			speaker.Attach(nil)

			if err := conv.Close(context.WithoutCancel(ctx)); err != nil {
				log.Warn("Conversation did not close cleanly", "error", err)
			}
			if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
				return fmt.Errorf("talk: %w", runErr)
			}
			for _, t := range conv.History() {
				fmt.Printf("%s: %s\n", t.Act.Speaker.Name, t.Act.Text())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Let the engine speak for both sides")
	cmd.Flags().StringVar(&logPath, "log", "parley.log", "Where to write logs while the console is open")
	return cmd
}
