package services

import (
	"context"
	"errors"
)

// SpeakerService shows conversations to whoever is watching: a terminal, a
// game client, an event bus.
type SpeakerService interface {
	// CloseChat ends the chat UI agentID has open with targetID
	CloseChat(ctx context.Context, agentID, targetID int64) error

	// PossibleResponses offers agentID a choice of lines
	PossibleResponses(ctx context.Context, agentID int64, texts []string) error

	// Speak shows agentID saying text
	Speak(ctx context.Context, agentID int64, text string) error
}

// Speakers fans every call out to each service in order
type Speakers []SpeakerService

var _ SpeakerService = Speakers(nil)

func (s Speakers) CloseChat(ctx context.Context, agentID, targetID int64) error {
	var errs []error
	for _, sp := range s {
		errs = append(errs, sp.CloseChat(ctx, agentID, targetID))
	}
	return errors.Join(errs...)
}

func (s Speakers) PossibleResponses(ctx context.Context, agentID int64, texts []string) error {
	var errs []error
	for _, sp := range s {
		errs = append(errs, sp.PossibleResponses(ctx, agentID, texts))
	}
	return errors.Join(errs...)
}

func (s Speakers) Speak(ctx context.Context, agentID int64, text string) error {
	var errs []error
	for _, sp := range s {
		errs = append(errs, sp.Speak(ctx, agentID, text))
	}
	return errors.Join(errs...)
}
