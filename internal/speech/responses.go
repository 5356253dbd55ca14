package speech

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/jwebster45206/parley/pkg/negotiation"
	"github.com/jwebster45206/parley/pkg/personality"
)

const maxReactions = 2

func (f *Factory) responses(ctx context.Context, sit *situation, prior *Part) ([]*Part, error) {
	var out []*Part
	for _, kind := range ResponseKinds {
		parts, err := f.response(ctx, sit, prior, kind)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		for _, p := range parts {
			p.IsResponse = true
			p.Response = kind
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *Factory) response(ctx context.Context, sit *situation, prior *Part, kind ResponseKind) ([]*Part, error) {
	switch kind {
	case Answer:
		return f.answer(ctx, sit, prior)
	case React:
		return f.react(sit, prior), nil
	case CounterOffer:
		return f.mutateOffer(ctx, sit, prior, personality.Cunning, true, "How about this instead? %s.")
	case OfferMore:
		return f.mutateOffer(ctx, sit, prior, personality.Kindness, false, "I can do better. %s.")
	case AcceptOffer:
		return f.settle(sit, prior, personality.Loyalty, true), nil
	case RejectOffer:
		return f.settle(sit, prior, personality.Pride, false), nil
	}
	return nil, fmt.Errorf("unknown response kind %d", kind)
}

// answer replies to a question with the asked belief, a related fact, or a
// refusal
func (f *Factory) answer(ctx context.Context, sit *situation, prior *Part) ([]*Part, error) {
	if prior.Question == nil {
		return nil, nil
	}
	asked := prior.Question.Belief
	p := sit.part(personality.Honesty)

	knows, err := f.mem.Knows(ctx, sit.speaker.ID, asked.ID)
	if err != nil {
		return nil, err
	}
	answer := asked
	if !knows {
		found, ok, err := f.mem.FindAnswer(ctx, sit.speaker.ID, sit.listener.ID, asked.Subject.ID)
		if err != nil {
			return nil, err
		}
		if !ok || sit.covered.Has(BeliefTopic(found.ID)) {
			p.Prompt = "I don't know."
			return []*Part{p}, nil
		}
		answer = found
	}

	if sit.affinity < answer.Trust {
		p.Prompt = "I don't trust you enough to tell you that."
		return []*Part{p}, nil
	}
	p.Belief = &answer
	p.Prompt = answer.Statement()
	return []*Part{p}, nil
}

// react responds to a conveyed belief in the speaker's two favorite tones
func (f *Factory) react(sit *situation, prior *Part) []*Part {
	if !prior.IsStatement() {
		return nil
	}
	var tones []Tone
	f.withRNG(func(rng *rand.Rand) {
		tones = RankTones(sit.personality, sit.affinity, rng)
	})

	out := make([]*Part, 0, maxReactions)
	for _, t := range tones[:maxReactions] {
		p := sit.part(t.Trait())
		p.Tone = t
		p.HasTone = true
		p.Prompt = t.Reaction()
		out = append(out, p)
	}
	return out
}

// mutateOffer answers a proposal with the best untraversed mutation
func (f *Factory) mutateOffer(ctx context.Context, sit *situation, prior *Part, trait personality.Trait, forMe bool, format string) ([]*Part, error) {
	if prior.Proposal == nil {
		return nil, nil
	}
	traversed := func(hash uint64) bool { return sit.covered.Has(ProposalTopic(hash)) }

	var (
		proposal negotiation.Proposal
		ok       bool
		err      error
	)
	f.withRNG(func(rng *rand.Rand) {
		proposal, ok, err = negotiation.BestMutation(ctx, f.mem, rng, *prior.Proposal, sit.speaker.ID, forMe, traversed)
	})
	if err != nil || !ok {
		return nil, err
	}

	p := sit.part(trait)
	p.Proposal = &proposal
	p.Prompt = fmt.Sprintf(format, proposal.Describe(sit.name))
	return []*Part{p}, nil
}

// settle accepts or rejects a proposal outright
func (f *Factory) settle(sit *situation, prior *Part, trait personality.Trait, accept bool) []*Part {
	if prior.Proposal == nil {
		return nil
	}
	proposal := prior.Proposal.Clone()
	p := sit.part(trait)
	eval := proposal.Evaluate(sit.speaker.ID)
	if accept {
		p.Accepted = &proposal
		p.Negotiation = eval
		p.Prompt = "Deal."
	} else {
		p.Negotiation = -eval
		p.Prompt = "No deal."
	}
	return []*Part{p}
}
