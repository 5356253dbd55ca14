package conversation

import (
	"context"

	"github.com/jwebster45206/parley/internal/agent"
	"github.com/jwebster45206/parley/internal/services"
	"github.com/jwebster45206/parley/internal/speech"
)

func prompt(act *speech.Act) services.Prompt {
	p := services.Prompt{
		Speaker:  act.Speaker.Name,
		Listener: act.Listener.Name,
		Text:     act.Structural(),
	}
	if tone, ok := act.Tone(); ok {
		p.Tone = tone.String()
	}
	return p
}

// phraseTurn speaks act once phrasing resolves, falling back to the
// structural text on failure. Acts phrased earlier, or any act when there is
// no phraser, are spoken at once. Callers hold mu.
func (c *Conversation) phraseTurn(ctx context.Context, act *speech.Act) {
	if text := act.Text(); c.deps.Phraser == nil || text != act.Structural() {
		c.speak(ctx, act.Speaker.ID, text)
		return
	}

	ctx = context.WithoutCancel(ctx)
	c.deps.Phraser.SendPrompt(ctx, []services.Prompt{prompt(act)},
		func(texts []string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.state == Finished {
				return
			}
			act.SetText(texts[0])
			c.speak(ctx, act.Speaker.ID, texts[0])
		},
		func(err error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.state == Finished {
				return
			}
			c.speak(ctx, act.Speaker.ID, act.Structural())
		})
}

// offerOptions shows the player their choices, then again once phrased.
// Callers hold mu.
func (c *Conversation) offerOptions(ctx context.Context, player, listener *agent.Agent) {
	options := append([]*speech.Act(nil), c.options...)
	c.showOptions(ctx, player.ID, options)

	if c.deps.Phraser == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	prompts := make([]services.Prompt, len(options))
	for i, a := range options {
		prompts[i] = prompt(a)
	}
	c.deps.Phraser.SendPrompt(ctx, prompts,
		func(texts []string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.state == Finished {
				return
			}
			for i, a := range options {
				a.SetText(texts[i])
			}
			if sameActs(c.options, options) {
				c.showOptions(ctx, player.ID, options)
			}
		},
		nil)
	c.logger.Debug("Options offered", "player", player.Name, "listener", listener.Name, "count", len(options))
}

func (c *Conversation) showOptions(ctx context.Context, playerID int64, options []*speech.Act) {
	if c.deps.Speaker == nil {
		return
	}
	texts := make([]string, len(options))
	for i, a := range options {
		texts[i] = a.Text()
	}
	if err := c.deps.Speaker.PossibleResponses(ctx, playerID, texts); err != nil {
		c.logger.Warn("Failed to show options", "error", err)
	}
}

func (c *Conversation) speak(ctx context.Context, agentID int64, text string) {
	if c.deps.Speaker == nil {
		return
	}
	if err := c.deps.Speaker.Speak(ctx, agentID, text); err != nil {
		c.logger.Warn("Failed to speak", "agent_id", agentID, "error", err)
	}
}

func sameActs(a, b []*speech.Act) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
