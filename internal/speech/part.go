// Package speech generates the candidate things an agent could say on its
// turn: starts that open a topic, responses to what was just said, and the
// acts that combine them, each with a scalar value.
package speech

import (
	"fmt"

	"github.com/jwebster45206/parley/internal/memory"
	"github.com/jwebster45206/parley/pkg/negotiation"
	"github.com/jwebster45206/parley/pkg/personality"
	"github.com/jwebster45206/parley/pkg/world"
)

// GoalBonus is added to a part spoken to the speaker's goal target
const GoalBonus = 0.5

// StartKind enumerates the ways of opening a topic
type StartKind int

const (
	Goodbye StartKind = iota
	Gift
	RequestTribute
	AskAbout
	Gossip
	TalkAbout
	ExpressFeelings
)

// StartKinds lists every start in evaluation order
var StartKinds = []StartKind{Goodbye, Gift, RequestTribute, AskAbout, Gossip, TalkAbout, ExpressFeelings}

func (k StartKind) String() string {
	switch k {
	case Goodbye:
		return "goodbye"
	case Gift:
		return "gift"
	case RequestTribute:
		return "request_tribute"
	case AskAbout:
		return "ask_about"
	case Gossip:
		return "gossip"
	case TalkAbout:
		return "talk_about"
	case ExpressFeelings:
		return "express_feelings"
	}
	return "unknown"
}

// ResponseKind enumerates the ways of answering the previous part
type ResponseKind int

const (
	Answer ResponseKind = iota
	React
	CounterOffer
	OfferMore
	AcceptOffer
	RejectOffer
)

// ResponseKinds lists every response in evaluation order
var ResponseKinds = []ResponseKind{Answer, React, CounterOffer, OfferMore, AcceptOffer, RejectOffer}

func (k ResponseKind) String() string {
	switch k {
	case Answer:
		return "answer"
	case React:
		return "react"
	case CounterOffer:
		return "counter_offer"
	case OfferMore:
		return "offer_more"
	case AcceptOffer:
		return "accept_offer"
	case RejectOffer:
		return "reject_offer"
	}
	return "unknown"
}

// Chainable reports whether a response of this kind may be followed by a
// fresh start in the same act
func (k ResponseKind) Chainable() bool {
	return k != AcceptOffer && k != RejectOffer
}

// Part is one candidate conversational move
type Part struct {
	IsResponse bool
	Start      StartKind
	Response   ResponseKind

	SpeakerID  int64
	ListenerID int64

	// Prompt is the structural text, valid until phrasing resolves
	Prompt string

	Trait       personality.Trait
	TraitWeight float64

	// Belief is conveyed to the listener as a statement
	Belief *world.Belief
	// Question asks the listener for a belief
	Question *memory.Question
	// Proposal is a trade offered to the listener
	Proposal *negotiation.Proposal
	// Accepted is the listener's proposal this part agrees to
	Accepted *negotiation.Proposal

	Tone    Tone
	HasTone bool

	// Affinity is the speaker's affinity toward the listener at generation
	Affinity float64
	// Negotiation is the speaker's evaluation of the proposal answered
	Negotiation float64
	GoalBonus   float64
}

// Kind names the strategy that produced the part
func (p *Part) Kind() string {
	if p.IsResponse {
		return p.Response.String()
	}
	return p.Start.String()
}

// Chainable reports whether the part can share an act with a start
func (p *Part) Chainable() bool {
	return !p.IsResponse || p.Response.Chainable()
}

// IsStatement reports whether the part conveys a belief
func (p *Part) IsStatement() bool {
	return p.Belief != nil
}

// Value scores the part for its speaker
func (p *Part) Value() float64 {
	v := p.Negotiation + p.GoalBonus
	if p.Trait != personality.None {
		v += p.TraitWeight
	}
	if p.Belief != nil {
		v += p.Affinity - p.Belief.Trust
	}
	if p.Proposal != nil {
		v += p.Proposal.Utility(p.SpeakerID)
	}
	return v
}

// Topics are the keys this part adds to the conversation's covered set
func (p *Part) Topics() []string {
	var out []string
	if p.Belief != nil {
		out = append(out, BeliefTopic(p.Belief.ID))
	}
	if p.Question != nil {
		out = append(out, QuestionTopic(p.Question.Belief.ID))
	}
	if p.Proposal != nil {
		out = append(out, ProposalTopic(p.Proposal.Hash()))
	}
	return out
}

// BeliefTopic is the covered-set key of a stated belief
func BeliefTopic(id int64) string { return fmt.Sprintf("belief:%d", id) }

// QuestionTopic is the covered-set key of a question seeking a belief
func QuestionTopic(beliefID int64) string { return fmt.Sprintf("question:%d", beliefID) }

// ProposalTopic is the covered-set key of an offered proposal
func ProposalTopic(hash uint64) string { return fmt.Sprintf("proposal:%x", hash) }

// TopicSet holds the topics a conversation has covered. It only grows.
type TopicSet map[string]struct{}

// Has reports whether key is covered
func (s TopicSet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Add covers every key
func (s TopicSet) Add(keys ...string) {
	for _, k := range keys {
		s[k] = struct{}{}
	}
}

// coversAny reports whether any of p's topics is already covered
func (s TopicSet) coversAny(p *Part) bool {
	for _, k := range p.Topics() {
		if s.Has(k) {
			return true
		}
	}
	return false
}
