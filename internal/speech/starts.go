package speech

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/jwebster45206/parley/pkg/negotiation"
	"github.com/jwebster45206/parley/pkg/personality"
	"github.com/jwebster45206/parley/pkg/world"
)

const maxAskSubjects = 3

func (f *Factory) starts(ctx context.Context, sit *situation) ([]*Part, error) {
	var out []*Part
	for _, kind := range StartKinds {
		parts, err := f.start(ctx, sit, kind)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		for _, p := range parts {
			p.Start = kind
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *Factory) start(ctx context.Context, sit *situation, kind StartKind) ([]*Part, error) {
	switch kind {
	case Goodbye:
		return f.goodbye(sit), nil
	case Gift:
		return f.offer(ctx, sit, personality.Kindness, sit.listener.ID, sit.speaker.ID, "I'd like to offer you something. %s.")
	case RequestTribute:
		return f.offer(ctx, sit, personality.Greed, sit.speaker.ID, sit.listener.ID, "I think you owe me something. %s.")
	case AskAbout:
		return f.askAbout(ctx, sit)
	case Gossip:
		return f.gossip(ctx, sit)
	case TalkAbout:
		return f.talkAbout(ctx, sit)
	case ExpressFeelings:
		return f.expressFeelings(ctx, sit)
	}
	return nil, fmt.Errorf("unknown start kind %d", kind)
}

func (f *Factory) goodbye(sit *situation) []*Part {
	p := sit.part(personality.Shyness)
	p.Prompt = fmt.Sprintf("Goodbye, %s.", sit.listener.Name)
	return []*Part{p}
}

// offer proposes that benefactor hand beneficiary something they desire
func (f *Factory) offer(ctx context.Context, sit *situation, trait personality.Trait, beneficiary, benefactor int64, format string) ([]*Part, error) {
	var (
		proposal negotiation.Proposal
		ok       bool
		err      error
	)
	base := negotiation.New(sit.speaker.ID, sit.listener.ID)
	f.withRNG(func(rng *rand.Rand) {
		proposal, ok, err = negotiation.AddRandomBenefit(ctx, f.mem, rng, base, beneficiary, benefactor)
	})
	if err != nil || !ok || !proposal.HasSubstance() {
		return nil, err
	}

	p := sit.part(trait)
	p.Proposal = &proposal
	if sit.covered.coversAny(p) {
		return nil, nil
	}
	p.Prompt = fmt.Sprintf(format, proposal.Describe(sit.name))
	return []*Part{p}, nil
}

// askAbout asks about the listener, the speaker's latest news and the
// speaker's goal target
func (f *Factory) askAbout(ctx context.Context, sit *situation) ([]*Part, error) {
	subjects := []int64{sit.listener.ID}
	last, ok, err := f.mem.LastLearned(ctx, sit.speaker.ID)
	if err != nil {
		return nil, err
	}
	if ok {
		subjects = append(subjects, last.Subject.ID)
	}
	if sit.hasGoal {
		subjects = append(subjects, sit.goal.InterestID)
	}

	seen := make(map[int64]bool, maxAskSubjects)
	var out []*Part
	for _, subject := range subjects {
		if seen[subject] || subject == sit.speaker.ID || len(out) == maxAskSubjects {
			continue
		}
		seen[subject] = true

		q, ok, err := f.mem.QuestionAbout(ctx, sit.speaker.ID, sit.listener.ID, subject)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		p := sit.part(personality.Curiosity)
		p.Question = &q
		if sit.covered.coversAny(p) || sit.covered.Has(BeliefTopic(q.Belief.ID)) {
			continue
		}
		p.Prompt = q.Text
		out = append(out, p)
	}
	return out, nil
}

// gossip shares a belief the listener lacks, if the speaker likes the
// listener at least as much as the belief demands
func (f *Factory) gossip(ctx context.Context, sit *situation) ([]*Part, error) {
	concepts := append([]world.ConceptName(nil), world.Concepts...)
	f.withRNG(func(rng *rand.Rand) {
		rng.Shuffle(len(concepts), func(i, j int) { concepts[i], concepts[j] = concepts[j], concepts[i] })
	})

	for _, concept := range concepts {
		b, ok, err := f.mem.RandomMemoryGap(ctx, sit.speaker.ID, sit.listener.ID, concept)
		if err != nil {
			return nil, err
		}
		if !ok || sit.affinity < b.Trust {
			continue
		}
		p := sit.part(personality.Talkativeness)
		p.Belief = &b
		if sit.covered.coversAny(p) {
			continue
		}
		p.Prompt = "Have you heard? " + b.Statement()
		return []*Part{p}, nil
	}
	return nil, nil
}

// talkAbout states something about the listener or the speaker's latest news
func (f *Factory) talkAbout(ctx context.Context, sit *situation) ([]*Part, error) {
	subjects := []int64{sit.listener.ID}
	last, ok, err := f.mem.LastLearned(ctx, sit.speaker.ID)
	if err != nil {
		return nil, err
	}
	if ok && last.Subject.ID != sit.listener.ID {
		subjects = append(subjects, last.Subject.ID)
	}

	var out []*Part
	for _, subject := range subjects {
		b, ok, err := f.mem.FindAnswer(ctx, sit.speaker.ID, sit.listener.ID, subject)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		p := sit.part(personality.Honesty)
		p.Belief = &b
		if sit.covered.coversAny(p) {
			continue
		}
		p.Prompt = "Let me tell you something. " + b.Statement()
		out = append(out, p)
	}
	return out, nil
}

// expressFeelings states the speaker's stored feeling about the listener
func (f *Factory) expressFeelings(ctx context.Context, sit *situation) ([]*Part, error) {
	b, ok, err := f.mem.BeliefRelatedTo(ctx, sit.speaker.ID, sit.listener.ID, world.ConceptFeeling)
	if err != nil || !ok {
		return nil, err
	}
	p := sit.part(personality.Sentimentality)
	p.Belief = &b
	if sit.covered.coversAny(p) {
		return nil, nil
	}
	p.Prompt = b.Statement()
	return []*Part{p}, nil
}
