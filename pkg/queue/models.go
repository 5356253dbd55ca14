package queue

import (
	"encoding/json"
	"time"

	"github.com/jwebster45206/parley/pkg/chat"
)

// SummaryRequest asks for agentID's memory of a conversation with withID to
// be condensed into the relationship's summary
type SummaryRequest struct {
	RequestID  string          `json:"request_id"`
	AgentID    int64           `json:"agent_id"`
	WithID     int64           `json:"with_id"`
	AgentName  string          `json:"agent_name"`
	WithName   string          `json:"with_name"`
	Previous   string          `json:"previous,omitempty"`
	Transcript chat.Transcript `json:"transcript"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// ToJSON converts the request to JSON bytes for Redis
func (r *SummaryRequest) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*SummaryRequest, error) {
	var req SummaryRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
