// Package worker turns finished conversations into stored summaries, either
// in-process or by draining the Redis summary queue.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/parley/internal/services/events"
	"github.com/jwebster45206/parley/internal/services/queue"
	queuePkg "github.com/jwebster45206/parley/pkg/queue"
)

const (
	// DefaultPollTimeout is how long one dequeue blocks before the worker
	// checks for shutdown
	DefaultPollTimeout = 5 * time.Second

	lockTTL    = 30 * time.Second
	retryDelay = time.Second
)

// releaseLock deletes the lock only if this worker still owns it
var releaseLock = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Options tune a Worker. Zero values pick the defaults.
type Options struct {
	ID             string
	PollTimeout    time.Duration
	SummaryTimeout time.Duration
}

// Worker processes summary requests from the queue
type Worker struct {
	id             string
	queue          *queue.SummaryQueue
	summarizer     *Summarizer
	broadcaster    *events.SpeakerBroadcaster
	redisClient    *redis.Client
	pollTimeout    time.Duration
	summaryTimeout time.Duration
	log            *slog.Logger
	ctx            context.Context
	cancel         context.CancelFunc
}

// New creates a new worker instance
func New(q *queue.SummaryQueue, summarizer *Summarizer, redisClient *redis.Client, log *slog.Logger, opts Options) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.ID == "" {
		opts.ID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.SummaryTimeout <= 0 {
		opts.SummaryTimeout = DefaultSummaryTimeout
	}

	return &Worker{
		id:             opts.ID,
		queue:          q,
		summarizer:     summarizer,
		broadcaster:    events.NewSpeakerBroadcaster(redisClient, log),
		redisClient:    redisClient,
		pollTimeout:    opts.PollTimeout,
		summaryTimeout: opts.SummaryTimeout,
		log:            log.With("worker_id", opts.ID),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// ID identifies the worker in locks and logs
func (w *Worker) ID() string {
	return w.id
}

// Start processes requests until Stop is called
func (w *Worker) Start() error {
	w.log.Info("Worker starting")

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down")
			return nil
		default:
			if err := w.processNextRequest(); err != nil {
				if w.ctx.Err() != nil {
					continue
				}
				w.log.Error("Error processing request", "error", err)
				select {
				case <-w.ctx.Done():
				case <-time.After(retryDelay):
				}
			}
		}
	}
}

// Stop gracefully shuts down the worker. The current request finishes first.
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested")
	w.cancel()
}

// processNextRequest pulls the next request from the queue and processes it
func (w *Worker) processNextRequest() error {
	req, err := w.queue.BlockingDequeue(w.ctx, w.pollTimeout)
	if err != nil {
		return fmt.Errorf("failed to dequeue request: %w", err)
	}
	if req == nil {
		return nil
	}

	w.log.Info("Received summary request",
		"request_id", req.RequestID,
		"agent_id", req.AgentID,
		"with_id", req.WithID,
	)

	// Two summaries of the same relationship edge never run at once
	locked, err := w.acquireLock(req)
	if err != nil {
		return fmt.Errorf("failed to acquire summary lock: %w", err)
	}
	if !locked {
		w.log.Info("Relationship already locked, re-queueing request",
			"request_id", req.RequestID,
			"agent_id", req.AgentID,
			"with_id", req.WithID,
		)
		if err := w.queue.Enqueue(w.ctx, req); err != nil {
			return fmt.Errorf("failed to re-queue request: %w", err)
		}
		return nil
	}

	defer w.releaseLock(req)
	return w.processRequest(req)
}

func lockKey(req *queuePkg.SummaryRequest) string {
	return fmt.Sprintf("summary-lock:%d:%d", req.AgentID, req.WithID)
}

// acquireLock reports false if another worker holds the edge
func (w *Worker) acquireLock(req *queuePkg.SummaryRequest) (bool, error) {
	return w.redisClient.SetNX(w.ctx, lockKey(req), w.id, lockTTL).Result()
}

func (w *Worker) releaseLock(req *queuePkg.SummaryRequest) {
	ctx := context.WithoutCancel(w.ctx)
	if err := releaseLock.Run(ctx, w.redisClient, []string{lockKey(req)}, w.id).Err(); err != nil {
		w.log.Error("Failed to release summary lock", "error", err, "key", lockKey(req))
	}
}

// processRequest summarizes one conversation and announces the outcome on
// the agent's channel
func (w *Worker) processRequest(req *queuePkg.SummaryRequest) error {
	start := time.Now()

	// A stop request lets the summary in hand finish
	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), w.summaryTimeout)
	defer cancel()

	summary, err := w.summarizer.Summarize(ctx, req)
	if err != nil {
		w.log.Error("Failed to summarize conversation",
			"error", err,
			"request_id", req.RequestID,
			"agent_id", req.AgentID,
		)
		if pubErr := w.broadcaster.PublishSummaryFailed(ctx, req.AgentID, req.WithID, err.Error()); pubErr != nil {
			w.log.Error("Failed to publish failure event", "error", pubErr)
		}
		return fmt.Errorf("failed to process summary request: %w", err)
	}

	w.log.Info("Summary request processed successfully",
		"request_id", req.RequestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if err := w.broadcaster.PublishSummaryCompleted(ctx, req.AgentID, req.WithID, summary); err != nil {
		w.log.Error("Failed to publish completion event", "error", err)
	}
	return nil
}
