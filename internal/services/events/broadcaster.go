package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/parley/internal/services"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeSpeak             EventType = "speaker.speak"
	EventTypePossibleResponses EventType = "speaker.possible_responses"
	EventTypeCloseChat         EventType = "speaker.close_chat"
	EventTypeSummaryCompleted  EventType = "summary.completed"
	EventTypeSummaryFailed     EventType = "summary.failed"
)

// Event represents a generic event structure
type Event struct {
	Type     EventType              `json:"type"`
	AgentID  int64                  `json:"agent_id"`
	TargetID int64                  `json:"target_id,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// Channel is the pub/sub channel carrying events for agentID
func Channel(agentID int64) string {
	return fmt.Sprintf("speaker:%d", agentID)
}

// SpeakerBroadcaster publishes speaker events to Redis Pub/Sub. It satisfies
// services.SpeakerService so remote clients can render conversations.
type SpeakerBroadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

var _ services.SpeakerService = (*SpeakerBroadcaster)(nil)

// NewSpeakerBroadcaster creates a new event broadcaster
func NewSpeakerBroadcaster(redisClient *redis.Client, logger *slog.Logger) *SpeakerBroadcaster {
	return &SpeakerBroadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Subscribe listens to agentID's channel. Callers close the returned PubSub.
func (b *SpeakerBroadcaster) Subscribe(ctx context.Context, agentID int64) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(agentID))
}

// CloseChat publishes a speaker.close_chat event
func (b *SpeakerBroadcaster) CloseChat(ctx context.Context, agentID, targetID int64) error {
	return b.publish(ctx, Event{
		Type:     EventTypeCloseChat,
		AgentID:  agentID,
		TargetID: targetID,
	})
}

// PossibleResponses publishes a speaker.possible_responses event
func (b *SpeakerBroadcaster) PossibleResponses(ctx context.Context, agentID int64, texts []string) error {
	return b.publish(ctx, Event{
		Type:    EventTypePossibleResponses,
		AgentID: agentID,
		Data: map[string]interface{}{
			"options": texts,
		},
	})
}

// Speak publishes a speaker.speak event
func (b *SpeakerBroadcaster) Speak(ctx context.Context, agentID int64, text string) error {
	return b.publish(ctx, Event{
		Type:    EventTypeSpeak,
		AgentID: agentID,
		Data: map[string]interface{}{
			"text": text,
		},
	})
}

// PublishSummaryCompleted publishes a summary.completed event
func (b *SpeakerBroadcaster) PublishSummaryCompleted(ctx context.Context, agentID, withID int64, summary string) error {
	return b.publish(ctx, Event{
		Type:     EventTypeSummaryCompleted,
		AgentID:  agentID,
		TargetID: withID,
		Data: map[string]interface{}{
			"summary": summary,
		},
	})
}

// PublishSummaryFailed publishes a summary.failed event
func (b *SpeakerBroadcaster) PublishSummaryFailed(ctx context.Context, agentID, withID int64, errorMsg string) error {
	return b.publish(ctx, Event{
		Type:     EventTypeSummaryFailed,
		AgentID:  agentID,
		TargetID: withID,
		Data: map[string]interface{}{
			"error": errorMsg,
		},
	})
}

// publish sends an event to the agent's channel
func (b *SpeakerBroadcaster) publish(ctx context.Context, event Event) error {
	channel := Channel(event.AgentID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event", event)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
	)
	return nil
}
