package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/parley/internal/services/queue"
	"github.com/jwebster45206/parley/internal/worker"
)

func workerCmd() *cobra.Command {
	var (
		id          string
		pollTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Summarize finished conversations from the Redis queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Redis.URL == "" {
				return errors.New("worker: redis.url is required")
			}
			log := newLogger()
			ctx := cmd.Context()

			a, err := newApp(ctx, log, true)
			if err != nil {
				return fmt.Errorf("worker: %w", err)
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Error("Error during shutdown", "error", err)
				}
			}()

			if id == "" {
				id = os.Getenv("WORKER_ID")
			}
			rdb := a.redis.GetClient()
			w := worker.New(
				queue.NewSummaryQueue(rdb, log),
				worker.NewSummarizer(a.llm, a.roster, log),
				rdb,
				log,
				worker.Options{ID: id, PollTimeout: pollTimeout, SummaryTimeout: cfg.LLM.Timeout},
			)

			done := make(chan error, 1)
			go func() { done <- w.Start() }()
			log.Info("Worker started", "worker_id", w.ID(), "environment", cfg.Environment)

			select {
			case <-ctx.Done():
				log.Info("Shutting down worker")
				w.Stop()
				return <-done
			case err := <-done:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Worker ID used in locks and logs (default $WORKER_ID or random)")
	cmd.Flags().DurationVar(&pollTimeout, "poll", worker.DefaultPollTimeout, "How long each queue poll blocks")
	return cmd
}
