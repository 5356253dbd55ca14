package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/jwebster45206/parley/pkg/chat"
	"github.com/jwebster45206/parley/pkg/textfilter"
)

const (
	// DefaultPhraseTimeout bounds one SendPrompt call
	DefaultPhraseTimeout = 20 * time.Second

	phraseKeyPrefix = "phrase:"

	phraseInstructions = "You voice characters in a small village. Rewrite the line you are given " +
		"as the speaker would say it aloud. Keep every fact, name and offer. " +
		"Reply with the spoken line only."
)

// ErrEmptyPhrase means the backend answered with nothing speakable
var ErrEmptyPhrase = errors.New("phrasing produced no text")

// Prompt asks for one structural line to be phrased
type Prompt struct {
	Speaker  string
	Listener string
	Tone     string
	Text     string
}

func (p Prompt) messages() []chat.ChatMessage {
	var ctx strings.Builder
	ctx.WriteString(phraseInstructions)
	fmt.Fprintf(&ctx, "\n\nSpeaker: %s\nListener: %s", p.Speaker, p.Listener)
	if p.Tone != "" {
		fmt.Fprintf(&ctx, "\nTone: %s", p.Tone)
	}
	return []chat.ChatMessage{chat.System(ctx.String()), chat.User(p.Text)}
}

// cacheKey identifies the prompt in the phrase cache
func (p Prompt) cacheKey() string {
	sum := xxhash.Sum64String(p.Speaker + "\x00" + p.Listener + "\x00" + p.Tone + "\x00" + p.Text)
	return phraseKeyPrefix + strconv.FormatUint(sum, 16)
}

// DialogOptions tune a Dialog. Zero values pick the defaults.
type DialogOptions struct {
	Timeout  time.Duration
	CacheTTL time.Duration
	Rating   string
}

// Dialog phrases structural speech through an LLM. Requests run in the
// background and report through callbacks, so callers never block on the
// backend.
type Dialog struct {
	llm     LLMService
	cache   Cache
	filter  *textfilter.Filter
	timeout time.Duration
	ttl     time.Duration
	logger  *slog.Logger

	wg sync.WaitGroup
}

// NewDialog creates a Dialog. cache may be nil.
func NewDialog(llm LLMService, cache Cache, opts DialogOptions, logger *slog.Logger) *Dialog {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPhraseTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dialog{
		llm:     llm,
		cache:   cache,
		filter:  textfilter.New(opts.Rating),
		timeout: opts.Timeout,
		ttl:     opts.CacheTTL,
		logger:  logger,
	}
}

// SendPrompt phrases every prompt concurrently. Exactly one of the callbacks
// runs, from a background goroutine: onSuccess with one response per prompt
// in prompt order, or onError with the first failure. A timeout counts as a
// failure; callers keep showing the structural text.
func (d *Dialog) SendPrompt(ctx context.Context, prompts []Prompt, onSuccess func([]string), onError func(error)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		responses, err := d.phraseAll(ctx, prompts)
		if err != nil {
			d.logger.Warn("Phrasing failed", "prompts", len(prompts), "error", err)
			if onError != nil {
				onError(err)
			}
			return
		}
		if onSuccess != nil {
			onSuccess(responses)
		}
	}()
}

// Wait blocks until every outstanding SendPrompt has reported
func (d *Dialog) Wait() {
	d.wg.Wait()
}

func (d *Dialog) phraseAll(ctx context.Context, prompts []Prompt) ([]string, error) {
	responses := make([]string, len(prompts))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range prompts {
		g.Go(func() error {
			text, err := d.phrase(gctx, p)
			if err != nil {
				return fmt.Errorf("prompt %d: %w", i, err)
			}
			responses[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return responses, nil
}

func (d *Dialog) phrase(ctx context.Context, p Prompt) (string, error) {
	key := p.cacheKey()
	if d.cache != nil {
		cached, err := d.cache.Get(ctx, key)
		if err != nil {
			d.logger.Debug("Phrase cache read failed", "key", key, "error", err)
		} else if cached != "" {
			return cached, nil
		}
	}

	raw, err := d.llm.Chat(ctx, p.messages())
	if err != nil {
		return "", err
	}
	text := d.filter.Clean(raw)
	if text == "" {
		return "", ErrEmptyPhrase
	}

	if d.cache != nil {
		if err := d.cache.Set(ctx, key, text, d.ttl); err != nil {
			d.logger.Debug("Phrase cache write failed", "key", key, "error", err)
		}
	}
	return text, nil
}
