package speech

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jwebster45206/parley/internal/agent"
	"github.com/jwebster45206/parley/internal/memory"
	"github.com/jwebster45206/parley/pkg/personality"
)

// Act is a whole turn: an optional response to the previous part followed by
// an optional fresh start. At least one of the two is set.
type Act struct {
	Speaker  *agent.Agent
	Listener *agent.Agent

	Response   *Part
	Initiative *Part

	noise float64

	mu   sync.Mutex
	text string
}

func newAct(speaker, listener *agent.Agent, response, initiative *Part, noise float64) *Act {
	return &Act{
		Speaker:    speaker,
		Listener:   listener,
		Response:   response,
		Initiative: initiative,
		noise:      noise,
	}
}

// Parts returns the response then the initiative, skipping absent ones
func (a *Act) Parts() []*Part {
	var out []*Part
	if a.Response != nil {
		out = append(out, a.Response)
	}
	if a.Initiative != nil {
		out = append(out, a.Initiative)
	}
	return out
}

// Pending are the parts the next speaker may respond to: the initiative,
// and the response as well when it puts a proposal on the table
func (a *Act) Pending() []*Part {
	var out []*Part
	if a.Response != nil && a.Response.Proposal != nil {
		out = append(out, a.Response)
	}
	if a.Initiative != nil {
		out = append(out, a.Initiative)
	}
	if len(out) == 0 && a.Response != nil {
		out = append(out, a.Response)
	}
	return out
}

// Value scores the act for its speaker. The immaturity noise is drawn once.
func (a *Act) Value() float64 {
	v := a.noise
	for _, p := range a.Parts() {
		v += p.Value()
	}
	return v
}

// IsGoodbye reports whether the act ends the conversation
func (a *Act) IsGoodbye() bool {
	return a.Initiative != nil && !a.Initiative.IsResponse && a.Initiative.Start == Goodbye
}

// Structural is the template text of the act
func (a *Act) Structural() string {
	parts := a.Parts()
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		lines = append(lines, p.Prompt)
	}
	return strings.Join(lines, " ")
}

// Text is the phrased text once available, else the structural text
func (a *Act) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.text != "" {
		return a.text
	}
	return a.Structural()
}

// SetText records the phrased text
func (a *Act) SetText(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.text = text
}

// Tone is the tone of the first toned part, if any
func (a *Act) Tone() (Tone, bool) {
	for _, p := range a.Parts() {
		if p.HasTone {
			return p.Tone, true
		}
	}
	return 0, false
}

// Traits are the personality traits the speaker exercised
func (a *Act) Traits() []personality.Trait {
	var out []personality.Trait
	for _, p := range a.Parts() {
		if p.Trait != personality.None {
			out = append(out, p.Trait)
		}
	}
	return out
}

// Topics are every topic key the act covers
func (a *Act) Topics() []string {
	var out []string
	for _, p := range a.Parts() {
		out = append(out, p.Topics()...)
	}
	return out
}

// MemoryCount is the number of beliefs the act conveys
func (a *Act) MemoryCount() int {
	n := 0
	for _, p := range a.Parts() {
		if p.IsStatement() {
			n++
		}
	}
	return n
}

// BenefitTo is the act's value to listener: the valence of its tone plus
// whatever an accepted proposal gives them.
func (a *Act) BenefitTo(listener int64) float64 {
	var v float64
	for _, p := range a.Parts() {
		if p.HasTone {
			v += p.Tone.Valence()
		}
		if p.Accepted != nil && p.Accepted.Involves(listener) {
			v += p.Accepted.Evaluate(listener)
		}
	}
	return v
}

// Apply performs the act's durable effects: the listener learns conveyed
// beliefs, accepted proposals become obligations and the listener's feelings
// toward the speaker shift.
func (a *Act) Apply(ctx context.Context, mem *memory.Service) error {
	for _, p := range a.Parts() {
		if p.Belief != nil {
			if err := mem.AddKnowledge(ctx, a.Listener.ID, p.Belief.ID); err != nil {
				return fmt.Errorf("failed to convey belief %d: %w", p.Belief.ID, err)
			}
		}
		if p.Accepted != nil {
			if _, err := a.Speaker.AcceptProposal(ctx, *p.Accepted); err != nil {
				return fmt.Errorf("failed to accept proposal: %w", err)
			}
		}
	}
	return a.Listener.ListenTo(ctx, a.Speaker.ID, a)
}
