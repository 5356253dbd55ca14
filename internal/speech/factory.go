package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/jwebster45206/parley/internal/agent"
	"github.com/jwebster45206/parley/internal/memory"
	"github.com/jwebster45206/parley/pkg/personality"
	"github.com/jwebster45206/parley/pkg/world"
)

// ErrNoStarts means generation produced no start at all. Goodbye is always
// available, so this signals a broken strategy set.
var ErrNoStarts = errors.New("no speech starts generated")

// Factory composes starts and responses into candidate acts
type Factory struct {
	mem    *memory.Service
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFactory builds a factory over mem. rng drives tone ranking, offer
// mutation and act noise.
func NewFactory(mem *memory.Service, rng *rand.Rand, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{mem: mem, rng: rng, logger: logger}
}

// situation is everything the strategies need about the speaking pair
type situation struct {
	speaker     *agent.Agent
	listener    *agent.Agent
	personality personality.Personality
	affinity    float64
	goal        world.Goal
	hasGoal     bool
	covered     TopicSet
}

func (s *situation) name(id int64) string {
	if id == s.speaker.ID {
		return s.speaker.Name
	}
	if id == s.listener.ID {
		return s.listener.Name
	}
	return fmt.Sprintf("#%d", id)
}

// part fills in the fields every part shares
func (s *situation) part(trait personality.Trait) *Part {
	p := &Part{
		SpeakerID:  s.speaker.ID,
		ListenerID: s.listener.ID,
		Trait:      trait,
		Affinity:   s.affinity,
	}
	if trait != personality.None {
		p.TraitWeight = s.personality.Trait(trait)
	}
	if s.hasGoal && s.goal.InterestID == s.listener.ID {
		p.GoalBonus = GoalBonus
	}
	return p
}

func (f *Factory) situation(ctx context.Context, speaker, listener *agent.Agent, covered TopicSet) (*situation, error) {
	p, err := speaker.Personality(ctx)
	if err != nil {
		return nil, err
	}
	affinity, err := speaker.Affinity(ctx, listener.ID)
	if err != nil {
		return nil, err
	}
	goal, hasGoal, err := speaker.Goal(ctx)
	if err != nil {
		return nil, err
	}
	if covered == nil {
		covered = TopicSet{}
	}
	return &situation{
		speaker:     speaker,
		listener:    listener,
		personality: p,
		affinity:    affinity,
		goal:        goal,
		hasGoal:     hasGoal,
		covered:     covered,
	}, nil
}

// Generate returns every candidate act speaker could perform toward
// listener, given the parts still open from the previous act (none at the
// start of a conversation) and the topics already covered.
func (f *Factory) Generate(ctx context.Context, speaker, listener *agent.Agent, priors []*Part, covered TopicSet) ([]*Act, error) {
	sit, err := f.situation(ctx, speaker, listener, covered)
	if err != nil {
		return nil, fmt.Errorf("failed to load speaker state: %w", err)
	}

	starts, err := f.starts(ctx, sit)
	if err != nil {
		return nil, err
	}
	if len(starts) == 0 {
		return nil, ErrNoStarts
	}

	var responses []*Part
	for _, prior := range priors {
		parts, err := f.responses(ctx, sit, prior)
		if err != nil {
			return nil, err
		}
		responses = append(responses, parts...)
	}

	var acts []*Act
	chained := false
	for _, r := range responses {
		if !r.Chainable() {
			acts = append(acts, f.act(sit, r, nil))
			continue
		}
		chained = true
		joined := false
		for _, s := range starts {
			// an offer followed by goodbye could never be answered
			if overlaps(r, s) || (r.Proposal != nil && s.Start == Goodbye) {
				continue
			}
			acts = append(acts, f.act(sit, r, s))
			joined = true
		}
		if !joined && r.Proposal != nil {
			acts = append(acts, f.act(sit, r, nil))
		}
	}
	if !chained {
		for _, s := range starts {
			acts = append(acts, f.act(sit, nil, s))
		}
	}

	f.logger.Debug("generated speech acts",
		"speaker", speaker.Name,
		"listener", listener.Name,
		"starts", len(starts),
		"responses", len(responses),
		"acts", len(acts))
	return acts, nil
}

func (f *Factory) act(sit *situation, response, initiative *Part) *Act {
	f.mu.Lock()
	noise := f.rng.Float64() * sit.personality.Immaturity()
	f.mu.Unlock()
	return newAct(sit.speaker, sit.listener, response, initiative, noise)
}

// overlaps reports whether two parts share a topic
func overlaps(a, b *Part) bool {
	for _, x := range a.Topics() {
		for _, y := range b.Topics() {
			if x == y {
				return true
			}
		}
	}
	return false
}

// Rank sorts acts best first, keeping generation order among equals
func Rank(acts []*Act) {
	sort.SliceStable(acts, func(i, j int) bool { return acts[i].Value() > acts[j].Value() })
}

// TopDistinct returns up to n acts with distinct structural text, best first
func TopDistinct(acts []*Act, n int) []*Act {
	ranked := append([]*Act(nil), acts...)
	Rank(ranked)

	seen := make(map[string]bool, n)
	var out []*Act
	for _, a := range ranked {
		if len(out) == n {
			break
		}
		key := a.Structural()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

// withRNG serializes access to the shared generator
func (f *Factory) withRNG(fn func(rng *rand.Rand)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.rng)
}
