// Package agent holds the persistent state of a conversational participant:
// personality, relationships, obligations and goal, plus the handle that
// keeps an agent in at most one conversation at a time.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/parley/internal/storage"
	"github.com/jwebster45206/parley/pkg/negotiation"
	"github.com/jwebster45206/parley/pkg/personality"
	"github.com/jwebster45206/parley/pkg/world"
)

const (
	// RepaymentBonus is granted to a creditor when a debt is fully repaid
	RepaymentBonus = 10.0

	// DefaultPenalty is applied to a creditor for every obligation that expires
	DefaultPenalty = -20.0
)

// ErrAlreadyConversing is returned when an engaged agent is asked to join
// another conversation
var ErrAlreadyConversing = errors.New("agent is already in a conversation")

// Conveyance is what a listener takes away from a spoken turn
type Conveyance interface {
	// MemoryCount is the number of beliefs the turn conveyed
	MemoryCount() int
	// BenefitTo is the turn's value to listener
	BenefitTo(listener int64) float64
}

// Agent is an NPC or the player. Name and ID mirror the underlying noun.
type Agent struct {
	ID     int64
	Name   string
	Player bool

	store *storage.Store

	mu           sync.Mutex
	conversation uuid.UUID
}

// New binds an agent to its noun in store
func New(store *storage.Store, noun world.Noun, player bool) *Agent {
	return &Agent{ID: noun.ID, Name: noun.Name, Player: player, store: store}
}

// Noun is the agent's identity as a world noun
func (a *Agent) Noun() world.Noun {
	return world.Noun{ID: a.ID, Name: a.Name, Type: world.NounPerson}
}

func (a *Agent) String() string {
	return a.Name
}

// Engage claims the agent for conversation id. It fails if the agent already
// belongs to a conversation.
func (a *Agent) Engage(id uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conversation != uuid.Nil {
		return fmt.Errorf("%s: %w", a.Name, ErrAlreadyConversing)
	}
	a.conversation = id
	return nil
}

// Release frees the agent if it is held by conversation id
func (a *Agent) Release(id uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conversation == id {
		a.conversation = uuid.Nil
	}
}

// Conversation returns the current conversation handle, if any
func (a *Agent) Conversation() (uuid.UUID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conversation, a.conversation != uuid.Nil
}

// Personality loads the agent's current trait vector
func (a *Agent) Personality(ctx context.Context) (personality.Personality, error) {
	return a.store.Personality(ctx, a.ID)
}

// ReinforceTraits strengthens the listed traits. An empty list does nothing.
func (a *Agent) ReinforceTraits(ctx context.Context, traits ...personality.Trait) error {
	if len(traits) == 0 {
		return nil
	}
	_, err := a.store.ReinforcePersonality(ctx, a.ID, traits...)
	return err
}

// Goal is the agent's single target of interest
func (a *Agent) Goal(ctx context.Context) (world.Goal, bool, error) {
	return a.store.Goal(ctx, a.ID)
}

// Introduce creates the agent's relationship edge toward other
func (a *Agent) Introduce(ctx context.Context, other int64) error {
	return a.store.Introduce(ctx, a.ID, other)
}

// Affinity is the agent's bounded affinity toward other, in (-1, 1)
func (a *Agent) Affinity(ctx context.Context, other int64) (float64, error) {
	r, err := a.store.Relationship(ctx, a.ID, other)
	if err != nil {
		return 0, err
	}
	return r.Affinity(), nil
}

// ModifyRelationship adds delta to the agent's raw affinity toward other
func (a *Agent) ModifyRelationship(ctx context.Context, other int64, delta float64) error {
	if delta == 0 {
		return nil
	}
	return a.store.ModifyRelationship(ctx, a.ID, other, delta)
}

// ListenTo updates the agent's feelings toward speaker after hearing c
func (a *Agent) ListenTo(ctx context.Context, speaker int64, c Conveyance) error {
	delta := float64(c.MemoryCount()) + c.BenefitTo(a.ID)
	return a.ModifyRelationship(ctx, speaker, delta)
}

// ConversationSummaryWith is the stored summary of past talks with other
func (a *Agent) ConversationSummaryWith(ctx context.Context, other int64) (string, error) {
	r, err := a.store.Relationship(ctx, a.ID, other)
	if err != nil {
		return "", err
	}
	return r.Summary, nil
}

// UpdateConversationSummary replaces the stored summary of talks with other
func (a *Agent) UpdateConversationSummary(ctx context.Context, other int64, summary string) error {
	return a.store.SetSummary(ctx, a.ID, other, summary)
}

// Obligate promises owed amount of item within byTick ticks from now
func (a *Agent) Obligate(ctx context.Context, owed int64, amount int, item int64, byTick int64) error {
	now, err := a.store.CurrentTick(ctx)
	if err != nil {
		return err
	}
	return a.store.Obligate(ctx, world.Obligation{
		OwedID:  owed,
		OwingID: a.ID,
		ItemID:  item,
		Amount:  amount,
		ByTick:  now + byTick,
	})
}

// Given records that givenBy handed the agent amount of item. It returns the
// amount credited against the outstanding obligation.
func (a *Agent) Given(ctx context.Context, givenBy, item int64, amount int) (int, error) {
	credited, _, err := a.store.Repay(ctx, a.ID, givenBy, item, amount, RepaymentBonus)
	return credited, err
}

// Tick expires every overdue obligation the agent owes. Each creditor loses
// affinity toward the agent.
func (a *Agent) Tick(ctx context.Context) ([]world.Obligation, error) {
	now, err := a.store.CurrentTick(ctx)
	if err != nil {
		return nil, err
	}
	return a.store.ExpireObligations(ctx, a.ID, now, DefaultPenalty)
}

// Obligations lists what the agent still owes
func (a *Agent) Obligations(ctx context.Context) ([]world.Obligation, error) {
	return a.store.ObligationsOwedBy(ctx, a.ID)
}

// AcceptProposal turns every term of p into an obligation due
// negotiation.CompletionWindow ticks from now. Either every term is recorded
// or none is.
func (a *Agent) AcceptProposal(ctx context.Context, p negotiation.Proposal) ([]world.Obligation, error) {
	if !p.Involves(a.ID) {
		return nil, fmt.Errorf("%s is not a party to the proposal", a.Name)
	}
	now, err := a.store.CurrentTick(ctx)
	if err != nil {
		return nil, err
	}
	obligations := p.Obligations(negotiation.CompletionWindow)
	for i := range obligations {
		obligations[i].ByTick += now
	}
	if err := a.store.ObligateAll(ctx, obligations); err != nil {
		return nil, err
	}
	return obligations, nil
}
