// Package conversation runs the turn-taking state machine between two agents:
// it asks the speech factory for candidate acts, commits one per turn,
// applies its effects and tears everything down when someone says goodbye.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jwebster45206/parley/internal/agent"
	"github.com/jwebster45206/parley/internal/logger"
	"github.com/jwebster45206/parley/internal/memory"
	"github.com/jwebster45206/parley/internal/services"
	"github.com/jwebster45206/parley/internal/speech"
	"github.com/jwebster45206/parley/pkg/chat"
	"github.com/jwebster45206/parley/pkg/personality"
	"github.com/jwebster45206/parley/pkg/queue"
)

// PlayerOptions is how many distinct acts a player chooses between
const PlayerOptions = 3

var (
	// ErrInvariant marks a fatal violation. The conversation that hit it is
	// finished; nothing else is affected.
	ErrInvariant = errors.New("conversation invariant violated")

	// ErrInvalidOption is a selection outside the surfaced options
	ErrInvalidOption = fmt.Errorf("invalid option: %w", ErrInvariant)

	// ErrNotWaiting means there are no options to select from
	ErrNotWaiting = errors.New("conversation is not waiting for a selection")
)

// State is a conversation's position in its lifecycle
type State int

const (
	WaitingForResponse State = iota
	Processing
	Finished
)

func (s State) String() string {
	switch s {
	case WaitingForResponse:
		return "waiting_for_response"
	case Processing:
		return "processing"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Phraser turns structural lines into spoken ones in the background
type Phraser interface {
	SendPrompt(ctx context.Context, prompts []services.Prompt, onSuccess func([]string), onError func(error))
}

// Deps are a conversation's collaborators. Memory and Factory are required;
// the rest are optional.
type Deps struct {
	Memory  *memory.Service
	Factory *speech.Factory

	Speaker services.SpeakerService
	Phraser Phraser

	// Summarize receives one request per participant when a conversation
	// with at least one turn finishes
	Summarize func(ctx context.Context, req *queue.SummaryRequest) error

	Logger *slog.Logger
}

// Turn is one committed act
type Turn struct {
	Number int
	Act    *speech.Act
}

// Conversation is a live exchange between an initiator and a respondent
type Conversation struct {
	ID         uuid.UUID
	Initiator  *agent.Agent
	Respondent *agent.Agent

	deps   Deps
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	history []Turn
	options []*speech.Act
	covered speech.TopicSet
	traits  map[int64][]personality.Trait
}

// New starts a conversation. It fails with agent.ErrAlreadyConversing, and
// changes nothing, if either agent is already talking to someone.
func New(ctx context.Context, initiator, respondent *agent.Agent, deps Deps) (*Conversation, error) {
	if deps.Memory == nil || deps.Factory == nil {
		return nil, errors.New("conversation needs a memory service and a speech factory")
	}
	if initiator.ID == respondent.ID {
		return nil, fmt.Errorf("%s cannot converse with themselves", initiator.Name)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	id := uuid.New()
	if err := initiator.Engage(id); err != nil {
		return nil, err
	}
	if err := respondent.Engage(id); err != nil {
		initiator.Release(id)
		return nil, err
	}

	if err := introduce(ctx, initiator, respondent); err != nil {
		initiator.Release(id)
		respondent.Release(id)
		return nil, fmt.Errorf("failed to introduce %s and %s: %w", initiator.Name, respondent.Name, err)
	}

	c := &Conversation{
		ID:         id,
		Initiator:  initiator,
		Respondent: respondent,
		deps:       deps,
		logger:     logger.WithConversation(deps.Logger, id),
		state:      WaitingForResponse,
		covered:    speech.TopicSet{},
		traits:     make(map[int64][]personality.Trait, 2),
	}
	c.logger.Info("Conversation started", "initiator", initiator.Name, "respondent", respondent.Name)
	return c, nil
}

func introduce(ctx context.Context, a, b *agent.Agent) error {
	if err := a.Introduce(ctx, b.ID); err != nil {
		return err
	}
	return b.Introduce(ctx, a.ID)
}

// State reports the current lifecycle state
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// WhoseTurn is the agent to speak next. Turns alternate strictly, starting
// with the initiator.
func (c *Conversation) WhoseTurn() *agent.Agent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.whoseTurn()
}

func (c *Conversation) whoseTurn() *agent.Agent {
	if len(c.history)%2 == 0 {
		return c.Initiator
	}
	return c.Respondent
}

func (c *Conversation) other(a *agent.Agent) *agent.Agent {
	if a.ID == c.Initiator.ID {
		return c.Respondent
	}
	return c.Initiator
}

// PrepareNextResponse generates the next turn. An NPC's best act is
// committed at once; a player instead gets the top distinct options and must
// call SelectFromOptions. Outside WaitingForResponse it does nothing.
func (c *Conversation) PrepareNextResponse(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != WaitingForResponse || len(c.options) > 0 {
		return nil
	}
	c.state = Processing

	speaker := c.whoseTurn()
	listener := c.other(speaker)
	acts, err := c.deps.Factory.Generate(ctx, speaker, listener, c.pending(), c.covered)
	if err != nil {
		if errors.Is(err, speech.ErrNoStarts) {
			err = fmt.Errorf("%w: %w", ErrInvariant, err)
		}
		return c.fail(ctx, fmt.Errorf("failed to generate speech for %s: %w", speaker.Name, err))
	}
	if len(acts) == 0 {
		return c.fail(ctx, fmt.Errorf("%w: no speech acts for %s", ErrInvariant, speaker.Name))
	}

	if speaker.Player {
		c.options = speech.TopDistinct(acts, PlayerOptions)
		c.state = WaitingForResponse
		c.offerOptions(ctx, speaker, listener)
		return nil
	}

	speech.Rank(acts)
	return c.addTurn(ctx, acts[0])
}

// pending are the parts of the last turn still awaiting a response. Callers
// hold mu.
func (c *Conversation) pending() []*speech.Part {
	if n := len(c.history); n > 0 {
		return c.history[n-1].Act.Pending()
	}
	return nil
}

// Options are the acts surfaced to a player, best first
func (c *Conversation) Options() []*speech.Act {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*speech.Act(nil), c.options...)
}

// SelectFromOptions commits the player's choice. An index outside the
// surfaced options is fatal to the conversation.
func (c *Conversation) SelectFromOptions(ctx context.Context, i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != WaitingForResponse || len(c.options) == 0 {
		return ErrNotWaiting
	}
	if i < 0 || i >= len(c.options) {
		return c.fail(ctx, fmt.Errorf("%w: %d of %d", ErrInvalidOption, i, len(c.options)))
	}

	act := c.options[i]
	c.options = nil
	c.state = Processing
	return c.addTurn(ctx, act)
}

// addTurn commits act. Its effects apply immediately, whether or not
// phrasing has resolved. Callers hold mu.
func (c *Conversation) addTurn(ctx context.Context, act *speech.Act) error {
	c.history = append(c.history, Turn{Number: len(c.history) + 1, Act: act})
	c.traits[act.Speaker.ID] = append(c.traits[act.Speaker.ID], act.Traits()...)
	c.covered.Add(act.Topics()...)

	c.logger.Debug("Turn committed",
		"turn", len(c.history),
		"speaker", act.Speaker.Name,
		"text", act.Structural(),
		"value", act.Value())

	if err := act.Apply(ctx, c.deps.Memory); err != nil {
		return c.fail(ctx, fmt.Errorf("failed to apply turn %d: %w", len(c.history), err))
	}

	if act.IsGoodbye() {
		c.speak(ctx, act.Speaker.ID, act.Structural())
		return c.finish(ctx)
	}

	c.phraseTurn(ctx, act)
	c.state = WaitingForResponse
	return nil
}

// fail logs a fatal error and finishes the conversation. Callers hold mu.
func (c *Conversation) fail(ctx context.Context, err error) error {
	logger.WithError(c.logger, err).Error("Conversation failed")
	if ferr := c.finish(ctx); ferr != nil {
		c.logger.Warn("Cleanup after failure incomplete", "error", ferr)
	}
	return err
}

// Finish ends the conversation: both chat windows close, summaries are
// requested, each participant's exercised traits are reinforced and both
// agents are released. Finishing twice does nothing.
func (c *Conversation) Finish(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finish(ctx)
}

// Close forces the conversation to end
func (c *Conversation) Close(ctx context.Context) error {
	return c.Finish(ctx)
}

func (c *Conversation) finish(ctx context.Context) error {
	if c.state == Finished {
		return nil
	}
	c.state = Finished
	c.options = nil

	defer c.Initiator.Release(c.ID)
	defer c.Respondent.Release(c.ID)

	if c.deps.Speaker != nil {
		if err := c.deps.Speaker.CloseChat(ctx, c.Initiator.ID, c.Respondent.ID); err != nil {
			c.logger.Warn("Failed to close chat", "agent", c.Initiator.Name, "error", err)
		}
		if err := c.deps.Speaker.CloseChat(ctx, c.Respondent.ID, c.Initiator.ID); err != nil {
			c.logger.Warn("Failed to close chat", "agent", c.Respondent.Name, "error", err)
		}
	}

	c.requestSummaries(ctx)

	var errs []error
	for _, a := range []*agent.Agent{c.Initiator, c.Respondent} {
		if err := a.ReinforceTraits(ctx, c.traits[a.ID]...); err != nil {
			errs = append(errs, fmt.Errorf("failed to reinforce %s: %w", a.Name, err))
		}
	}

	c.logger.Info("Conversation finished", "turns", len(c.history))
	return errors.Join(errs...)
}

// requestSummaries hands one summary request per participant to the
// configured summarizer. Callers hold mu.
func (c *Conversation) requestSummaries(ctx context.Context) {
	if c.deps.Summarize == nil || len(c.history) == 0 {
		return
	}
	transcript := c.transcript()

	var g errgroup.Group
	for _, a := range []*agent.Agent{c.Initiator, c.Respondent} {
		with := c.other(a)
		g.Go(func() error {
			previous, err := a.ConversationSummaryWith(ctx, with.ID)
			if err != nil {
				return fmt.Errorf("failed to load summary for %s: %w", a.Name, err)
			}
			return c.deps.Summarize(ctx, &queue.SummaryRequest{
				AgentID:    a.ID,
				WithID:     with.ID,
				AgentName:  a.Name,
				WithName:   with.Name,
				Previous:   previous,
				Transcript: transcript,
			})
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Warn("Failed to request conversation summary", "error", err)
	}
}

// History is every committed turn in order
func (c *Conversation) History() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Turn(nil), c.history...)
}

// TopicsCovered lists the covered topic keys in sorted order
func (c *Conversation) TopicsCovered() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.covered))
	for k := range c.covered {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Transcript is the conversation so far, phrased where phrasing resolved
func (c *Conversation) Transcript() chat.Transcript {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript()
}

func (c *Conversation) transcript() chat.Transcript {
	out := make(chat.Transcript, 0, len(c.history))
	for _, t := range c.history {
		out = append(out, chat.Line{Speaker: t.Act.Speaker.Name, Text: t.Act.Text()})
	}
	return out
}
