// Package negotiation implements multi-item trade proposals between two
// agents: construction from desires, stochastic mutation, evaluation and the
// conversion of an accepted proposal into obligations.
package negotiation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/jwebster45206/parley/pkg/world"
)

// CompletionWindow is the number of ticks an accepted proposal has to be honored
const CompletionWindow = 120

// Offer is one term of a proposal: Quantity units of Item handed from one
// party to the other, valued from both sides.
type Offer struct {
	Item          world.Noun `json:"item"`
	Quantity      int        `json:"quantity"`
	ReceiverValue float64    `json:"receiver_value"`
	GiverValue    float64    `json:"giver_value"`
}

// Proposal is a pair of offer sets. FromInitiator is what the initiator hands
// over, FromRespondent what the respondent hands over. Proposals are values:
// every mutation works on a clone.
type Proposal struct {
	InitiatorID    int64   `json:"initiator_id"`
	RespondentID   int64   `json:"respondent_id"`
	FromInitiator  []Offer `json:"from_initiator,omitempty"`
	FromRespondent []Offer `json:"from_respondent,omitempty"`
}

// New starts an empty proposal between two agents
func New(initiator, respondent int64) Proposal {
	return Proposal{InitiatorID: initiator, RespondentID: respondent}
}

// Clone returns a deep copy
func (p Proposal) Clone() Proposal {
	out := p
	out.FromInitiator = slices.Clone(p.FromInitiator)
	out.FromRespondent = slices.Clone(p.FromRespondent)
	return out
}

// Involves reports whether agent is a party to the proposal
func (p Proposal) Involves(agent int64) bool {
	return agent == p.InitiatorID || agent == p.RespondentID
}

// Counterparty returns the other party to agent
func (p Proposal) Counterparty(agent int64) int64 {
	if agent == p.InitiatorID {
		return p.RespondentID
	}
	return p.InitiatorID
}

// Gives returns the offers agent hands over
func (p Proposal) Gives(agent int64) []Offer {
	switch agent {
	case p.InitiatorID:
		return p.FromInitiator
	case p.RespondentID:
		return p.FromRespondent
	}
	return nil
}

// Receives returns the offers agent gets
func (p Proposal) Receives(agent int64) []Offer {
	switch agent {
	case p.InitiatorID:
		return p.FromRespondent
	case p.RespondentID:
		return p.FromInitiator
	}
	return nil
}

// Evaluate is what agent receives minus what agent gives, each offer valued
// at what it is worth to its receiver. Evaluate(a) == -Evaluate(b).
func (p Proposal) Evaluate(agent int64) float64 {
	var value float64
	for _, o := range p.Receives(agent) {
		value += o.ReceiverValue
	}
	for _, o := range p.Gives(agent) {
		value -= o.ReceiverValue
	}
	return value
}

// Utility is agent's private view: what it receives valued by itself minus
// what it gives valued by itself.
func (p Proposal) Utility(agent int64) float64 {
	var value float64
	for _, o := range p.Receives(agent) {
		value += o.ReceiverValue
	}
	for _, o := range p.Gives(agent) {
		value -= o.GiverValue
	}
	return value
}

// IsEmpty reports whether neither side offers anything
func (p Proposal) IsEmpty() bool {
	return len(p.FromInitiator) == 0 && len(p.FromRespondent) == 0
}

// HasSubstance is false when both sides are empty or an item appears on both sides
func (p Proposal) HasSubstance() bool {
	if p.IsEmpty() {
		return false
	}
	given := make(map[int64]bool, len(p.FromInitiator))
	for _, o := range p.FromInitiator {
		given[o.Item.ID] = true
	}
	for _, o := range p.FromRespondent {
		if given[o.Item.ID] {
			return false
		}
	}
	return true
}

// canonical renders the structural identity of the proposal: parties and
// the sorted (item, quantity) terms of each side. Valuations are excluded.
func (p Proposal) canonical() string {
	side := func(offers []Offer) string {
		terms := make([]string, 0, len(offers))
		for _, o := range offers {
			terms = append(terms, fmt.Sprintf("%d*%d", o.Item.ID, o.Quantity))
		}
		slices.Sort(terms)
		return strings.Join(terms, ",")
	}
	return fmt.Sprintf("%d[%s]<>%d[%s]", p.InitiatorID, side(p.FromInitiator), p.RespondentID, side(p.FromRespondent))
}

// Equal reports structural equality, ignoring term order
func (p Proposal) Equal(other Proposal) bool {
	return p.canonical() == other.canonical()
}

// Hash identifies the proposal's structure; equal proposals hash equally
func (p Proposal) Hash() uint64 {
	return xxhash.Sum64String(p.canonical())
}

// Obligations converts every offer into an obligation due window ticks from now.
// The caller adds the current tick.
func (p Proposal) Obligations(window int64) []world.Obligation {
	out := make([]world.Obligation, 0, len(p.FromInitiator)+len(p.FromRespondent))
	for _, o := range p.FromInitiator {
		out = append(out, world.Obligation{
			OwedID:  p.RespondentID,
			OwingID: p.InitiatorID,
			ItemID:  o.Item.ID,
			Amount:  o.Quantity,
			ByTick:  window,
		})
	}
	for _, o := range p.FromRespondent {
		out = append(out, world.Obligation{
			OwedID:  p.InitiatorID,
			OwingID: p.RespondentID,
			ItemID:  o.Item.ID,
			Amount:  o.Quantity,
			ByTick:  window,
		})
	}
	return out
}

// Describe renders the proposal as a short structural sentence, naming the
// parties with the given resolver.
func (p Proposal) Describe(name func(int64) string) string {
	side := func(offers []Offer) string {
		if len(offers) == 0 {
			return "nothing"
		}
		terms := make([]string, 0, len(offers))
		for _, o := range offers {
			terms = append(terms, fmt.Sprintf("%d %s", o.Quantity, o.Item.Name))
		}
		return strings.Join(terms, " and ")
	}
	return fmt.Sprintf("%s gives %s; %s gives %s",
		name(p.InitiatorID), side(p.FromInitiator),
		name(p.RespondentID), side(p.FromRespondent))
}

func (p *Proposal) side(giver int64) *[]Offer {
	if giver == p.InitiatorID {
		return &p.FromInitiator
	}
	return &p.FromRespondent
}
