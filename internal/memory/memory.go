// Package memory answers the questions agents ask of the shared knowledge
// store: what they know, what they could learn, and what to ask.
package memory

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/jwebster45206/parley/internal/storage"
	"github.com/jwebster45206/parley/pkg/world"
)

// Question is a rendered question and the belief that would answer it
type Question struct {
	Belief world.Belief
	Text   string
}

// Service is the memory facade over the knowledge store. Lookups that find
// nothing return false rather than an error.
type Service struct {
	store *storage.Store

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService wraps store. rng drives every random pick the service makes.
func NewService(store *storage.Store, rng *rand.Rand) *Service {
	return &Service{store: store, rng: rng}
}

// Store exposes the underlying store
func (s *Service) Store() *storage.Store {
	return s.store
}

func (s *Service) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// Observe lets observer learn observed's description beliefs
func (s *Service) Observe(ctx context.Context, observer, observed int64) error {
	return s.store.ObserveDescriptions(ctx, observer, observed)
}

// AddKnowledge records that agent has learned every listed belief
func (s *Service) AddKnowledge(ctx context.Context, agent int64, beliefIDs ...int64) error {
	return s.store.AddKnowledge(ctx, agent, beliefIDs...)
}

// Knows reports whether knower has learned the belief
func (s *Service) Knows(ctx context.Context, knower, beliefID int64) (bool, error) {
	return s.store.Knows(ctx, knower, beliefID)
}

// FindFactAbout is the newest belief knower holds about subject
func (s *Service) FindFactAbout(ctx context.Context, knower, about int64) (world.Belief, bool, error) {
	return s.store.NewestKnownBelief(ctx, storage.KnowledgeQuery{KnownBy: knower, SubjectID: &about})
}

// LastLearned is the newest belief knower has learned at all
func (s *Service) LastLearned(ctx context.Context, knower int64) (world.Belief, bool, error) {
	return s.store.NewestKnownBelief(ctx, storage.KnowledgeQuery{KnownBy: knower})
}

// FindAnswer is FindFactAbout restricted to beliefs asker does not know yet
func (s *Service) FindAnswer(ctx context.Context, knower, asker, about int64) (world.Belief, bool, error) {
	return s.store.NewestKnownBelief(ctx, storage.KnowledgeQuery{KnownBy: knower, SubjectID: &about, NotKnownBy: &asker})
}

// RandomMemoryGap is the newest belief of concept that knownBy holds and
// notKnownBy lacks
func (s *Service) RandomMemoryGap(ctx context.Context, knownBy, notKnownBy int64, concept world.ConceptName) (world.Belief, bool, error) {
	return s.store.NewestKnownBelief(ctx, storage.KnowledgeQuery{KnownBy: knownBy, Concept: &concept, NotKnownBy: &notKnownBy})
}

// RandomUnknownFactRelatedTo picks a belief about noun that knower has not
// learned but could ask after, since noun is already in knower's web of
// knowledge. Beliefs askedOf is known to hold are preferred.
func (s *Service) RandomUnknownFactRelatedTo(ctx context.Context, knower, askedOf, noun int64) (world.Belief, bool, error) {
	candidates, err := s.store.UnknownBeliefsAbout(ctx, knower, noun, askedOf)
	if err != nil {
		return world.Belief{}, false, err
	}
	if len(candidates) == 0 {
		return world.Belief{}, false, nil
	}

	var preferred []world.Belief
	for _, c := range candidates {
		if c.KnownByAskedOf {
			preferred = append(preferred, c.Belief)
		}
	}
	if len(preferred) == 0 {
		for _, c := range candidates {
			preferred = append(preferred, c.Belief)
		}
	}
	return preferred[s.intN(len(preferred))], true, nil
}

// QuestionAbout renders the question knower would ask askedOf to learn
// something new about noun, addressed in the second person when noun is
// askedOf.
func (s *Service) QuestionAbout(ctx context.Context, knower, askedOf, noun int64) (Question, bool, error) {
	b, ok, err := s.RandomUnknownFactRelatedTo(ctx, knower, askedOf, noun)
	if err != nil || !ok {
		return Question{}, ok, err
	}
	text := b.Concept.Question(b.Subject.Name)
	if noun == askedOf {
		text = b.Concept.QuestionToListener()
	}
	return Question{Belief: b, Text: text}, true, nil
}

// BeliefAbout is a self belief of subject under concept
func (s *Service) BeliefAbout(ctx context.Context, subject int64, concept world.ConceptName) (world.Belief, bool, error) {
	return s.store.BeliefAbout(ctx, subject, concept)
}

// BeliefRelatedTo is subject's belief of concept regarding relatedTo
func (s *Service) BeliefRelatedTo(ctx context.Context, subject, relatedTo int64, concept world.ConceptName) (world.Belief, bool, error) {
	return s.store.BeliefRelatedTo(ctx, subject, relatedTo, concept)
}

// FindRandomDesire picks one of knownBy's desires valued above minValue that
// givenBy is not already obligated to hand over.
func (s *Service) FindRandomDesire(ctx context.Context, knownBy, givenBy int64, minValue float64) (world.Desire, bool, error) {
	candidates, err := s.store.DesireCandidates(ctx, knownBy, givenBy, minValue)
	if err != nil {
		return world.Desire{}, false, fmt.Errorf("failed to list desires of %d: %w", knownBy, err)
	}
	if len(candidates) == 0 {
		return world.Desire{}, false, nil
	}
	return candidates[s.intN(len(candidates))], true, nil
}

// BenefitOf is agent's benefit for qty units of item, 0 without a desire
func (s *Service) BenefitOf(ctx context.Context, agent, item int64, qty int) (float64, error) {
	d, ok, err := s.store.Desire(ctx, agent, item)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return d.BenefitOf(qty), nil
}
