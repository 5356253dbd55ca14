package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/parley/pkg/queue"
)

const summaryQueueKey = "summaries"

// SummaryQueue is a Redis list of pending conversation summaries
type SummaryQueue struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewSummaryQueue creates a queue over an existing Redis client
func NewSummaryQueue(rdb *redis.Client, logger *slog.Logger) *SummaryQueue {
	return &SummaryQueue{
		rdb:    rdb,
		logger: logger,
	}
}

// Enqueue appends req, filling in its ID and timestamp if unset
func (q *SummaryQueue) Enqueue(ctx context.Context, req *queue.SummaryRequest) error {
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	if req.EnqueuedAt.IsZero() {
		req.EnqueuedAt = time.Now().UTC()
	}

	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize summary request: %w", err)
	}
	if err := q.rdb.RPush(ctx, summaryQueueKey, data).Err(); err != nil {
		q.logger.Error("Failed to enqueue summary request",
			"error", err,
			"agent_id", req.AgentID,
			"with_id", req.WithID)
		return fmt.Errorf("failed to enqueue summary request: %w", err)
	}

	q.logger.Debug("Enqueued summary request",
		"request_id", req.RequestID,
		"agent_id", req.AgentID,
		"with_id", req.WithID)
	return nil
}

// BlockingDequeue waits up to timeout for the next request. It returns nil
// with no error when the wait expires.
func (q *SummaryQueue) BlockingDequeue(ctx context.Context, timeout time.Duration) (*queue.SummaryRequest, error) {
	result, err := q.rdb.BLPop(ctx, timeout, summaryQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue summary request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}

	req, err := queue.FromJSON([]byte(result[1]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse summary request: %w", err)
	}
	return req, nil
}

// Depth returns the number of pending requests
func (q *SummaryQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.rdb.LLen(ctx, summaryQueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get summary queue depth: %w", err)
	}
	return int(count), nil
}
