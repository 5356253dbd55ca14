package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jwebster45206/parley/internal/agent"
	"github.com/jwebster45206/parley/internal/services"
	"github.com/jwebster45206/parley/pkg/chat"
	"github.com/jwebster45206/parley/pkg/queue"
)

const (
	// DefaultSummaryTimeout bounds one summary request
	DefaultSummaryTimeout = 30 * time.Second

	summaryInstructions = "You keep a villager's memory of the people they talk to. " +
		"Given their earlier memory and the latest conversation, write one short paragraph " +
		"from the villager's point of view covering what they learned, what was promised " +
		"and how they now feel. Reply with the paragraph only."
)

// ErrEmptySummary means the backend returned nothing to store
var ErrEmptySummary = errors.New("summary is empty")

// Summarizer condenses a finished conversation into the running summary an
// agent keeps of the other participant
type Summarizer struct {
	llm    services.LLMService
	roster *agent.Roster
	log    *slog.Logger
}

// NewSummarizer creates a summarizer that stores results through roster
func NewSummarizer(llm services.LLMService, roster *agent.Roster, log *slog.Logger) *Summarizer {
	if log == nil {
		log = slog.Default()
	}
	return &Summarizer{llm: llm, roster: roster, log: log}
}

// Summarize asks the LLM for a new summary and stores it. It returns the
// stored summary.
func (s *Summarizer) Summarize(ctx context.Context, req *queue.SummaryRequest) (string, error) {
	if len(req.Transcript) == 0 {
		return "", fmt.Errorf("summary request %s has no transcript", req.RequestID)
	}

	a, err := s.roster.Get(ctx, req.AgentID)
	if err != nil {
		return "", fmt.Errorf("failed to load agent %d: %w", req.AgentID, err)
	}

	raw, err := s.llm.Chat(ctx, summaryMessages(req))
	if err != nil {
		return "", fmt.Errorf("failed to summarize conversation: %w", err)
	}
	summary := strings.TrimSpace(chat.StripSpeaker(raw))
	if summary == "" {
		return "", ErrEmptySummary
	}

	if err := a.UpdateConversationSummary(ctx, req.WithID, summary); err != nil {
		return "", fmt.Errorf("failed to store summary: %w", err)
	}

	s.log.Debug("Conversation summary stored",
		"agent", req.AgentName,
		"with", req.WithName,
		"turns", len(req.Transcript),
		"length", len(summary))
	return summary, nil
}

func summaryMessages(req *queue.SummaryRequest) []chat.ChatMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. You just spoke with %s.\n\n", req.AgentName, req.WithName)
	if req.Previous != "" {
		fmt.Fprintf(&b, "What you remembered before:\n%s\n\n", req.Previous)
	}
	b.WriteString("The conversation:\n")
	b.WriteString(req.Transcript.String())
	return []chat.ChatMessage{
		chat.System(summaryInstructions),
		chat.User(b.String()),
	}
}

// Direct summarizes in-process, one goroutine per request. It suits a single
// binary with no Redis.
type Direct struct {
	summarizer *Summarizer
	timeout    time.Duration
	log        *slog.Logger

	wg sync.WaitGroup
}

// NewDirect creates an in-process summary runner
func NewDirect(summarizer *Summarizer, timeout time.Duration, log *slog.Logger) *Direct {
	if timeout <= 0 {
		timeout = DefaultSummaryTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Direct{summarizer: summarizer, timeout: timeout, log: log}
}

// Enqueue starts summarizing req in the background. Failures are logged;
// the caller's cancellation does not abort the request.
func (d *Direct) Enqueue(ctx context.Context, req *queue.SummaryRequest) error {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		if _, err := d.summarizer.Summarize(ctx, req); err != nil {
			d.log.Warn("Conversation summary failed",
				"agent", req.AgentName,
				"with", req.WithName,
				"error", err)
		}
	}()
	return nil
}

// Wait blocks until every enqueued summary has finished
func (d *Direct) Wait() {
	d.wg.Wait()
}
