package services

import (
	"context"
	"sync"
)

// MockSpeaker is a mock implementation of SpeakerService for testing
type MockSpeaker struct {
	SpeakFunc func(ctx context.Context, agentID int64, text string) error

	// Track calls for testing
	CloseChatCalls         []CloseChatCall
	PossibleResponsesCalls []PossibleResponsesCall
	SpeakCalls             []SpeakCall

	mu sync.Mutex // protects all fields above
}

type CloseChatCall struct {
	AgentID  int64
	TargetID int64
}

type PossibleResponsesCall struct {
	AgentID int64
	Texts   []string
}

type SpeakCall struct {
	AgentID int64
	Text    string
}

var _ SpeakerService = (*MockSpeaker)(nil)

// NewMockSpeaker creates a new mock speaker
func NewMockSpeaker() *MockSpeaker {
	return &MockSpeaker{}
}

func (m *MockSpeaker) CloseChat(ctx context.Context, agentID, targetID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseChatCalls = append(m.CloseChatCalls, CloseChatCall{AgentID: agentID, TargetID: targetID})
	return nil
}

func (m *MockSpeaker) PossibleResponses(ctx context.Context, agentID int64, texts []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PossibleResponsesCalls = append(m.PossibleResponsesCalls, PossibleResponsesCall{
		AgentID: agentID,
		Texts:   append([]string(nil), texts...),
	})
	return nil
}

func (m *MockSpeaker) Speak(ctx context.Context, agentID int64, text string) error {
	m.mu.Lock()
	m.SpeakCalls = append(m.SpeakCalls, SpeakCall{AgentID: agentID, Text: text})
	fn := m.SpeakFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, agentID, text)
	}
	return nil
}

// GetCalls returns a copy of the call tracking data in a thread-safe way
func (m *MockSpeaker) GetCalls() ([]CloseChatCall, []PossibleResponsesCall, []SpeakCall) {
	m.mu.Lock()
	defer m.mu.Unlock()

	closes := append([]CloseChatCall(nil), m.CloseChatCalls...)
	options := append([]PossibleResponsesCall(nil), m.PossibleResponsesCalls...)
	speaks := append([]SpeakCall(nil), m.SpeakCalls...)
	return closes, options, speaks
}
