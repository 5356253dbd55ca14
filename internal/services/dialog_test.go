package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jwebster45206/parley/pkg/chat"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// outcome collects whichever callback SendPrompt runs
type outcome struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
}

func (o *outcome) success(r []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.responses = r
	o.calls++
}

func (o *outcome) failure(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
	o.calls++
}

func upperLLM() *MockLLM {
	llm := NewMockLLM()
	llm.ChatFunc = func(ctx context.Context, messages []chat.ChatMessage) (string, error) {
		return strings.ToUpper(messages[len(messages)-1].Content), nil
	}
	return llm
}

func TestDialog_SendPromptPositional(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := NewDialog(upperLLM(), nil, DialogOptions{}, discardLogger())
	var out outcome
	d.SendPrompt(context.Background(), []Prompt{
		{Speaker: "Marta", Listener: "Aldric", Text: "Good morning."},
		{Speaker: "Marta", Listener: "Aldric", Text: "Goodbye, Aldric."},
		{Speaker: "Marta", Listener: "Aldric", Text: "Deal."},
	}, out.success, out.failure)
	d.Wait()

	require.NoError(t, out.err)
	assert.Equal(t, 1, out.calls)
	assert.Equal(t, []string{"GOOD MORNING.", "GOODBYE, ALDRIC.", "DEAL."}, out.responses)
}

func TestDialog_PromptCarriesSpeakerContext(t *testing.T) {
	llm := NewMockLLM()
	d := NewDialog(llm, nil, DialogOptions{}, discardLogger())
	var out outcome
	d.SendPrompt(context.Background(), []Prompt{
		{Speaker: "Marta", Listener: "Aldric", Tone: "joking", Text: "No deal."},
	}, out.success, out.failure)
	d.Wait()

	require.NoError(t, out.err)
	assert.Equal(t, []string{"No deal."}, out.responses)

	_, calls := llm.GetCalls()
	require.Len(t, calls, 1)
	msgs := calls[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.ChatRoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Speaker: Marta")
	assert.Contains(t, msgs[0].Content, "Listener: Aldric")
	assert.Contains(t, msgs[0].Content, "Tone: joking")
	assert.Equal(t, chat.User("No deal."), msgs[1])
}

func TestDialog_CacheReusesPhrasing(t *testing.T) {
	llm := upperLLM()
	cache := NewMemoryCache()
	d := NewDialog(llm, cache, DialogOptions{CacheTTL: time.Minute}, discardLogger())

	prompts := []Prompt{{Speaker: "Marta", Listener: "Aldric", Text: "Deal."}}
	for i := 0; i < 3; i++ {
		var out outcome
		d.SendPrompt(context.Background(), prompts, out.success, out.failure)
		d.Wait()
		require.NoError(t, out.err)
		assert.Equal(t, []string{"DEAL."}, out.responses)
	}

	_, calls := llm.GetCalls()
	assert.Len(t, calls, 1)

	cached, err := cache.Get(context.Background(), prompts[0].cacheKey())
	require.NoError(t, err)
	assert.Equal(t, "DEAL.", cached)
}

func TestDialog_CacheKeyDependsOnSpeaker(t *testing.T) {
	a := Prompt{Speaker: "Marta", Listener: "Aldric", Text: "Deal."}
	b := Prompt{Speaker: "Aldric", Listener: "Marta", Text: "Deal."}
	assert.NotEqual(t, a.cacheKey(), b.cacheKey())
	assert.True(t, strings.HasPrefix(a.cacheKey(), "phrase:"))
}

func TestDialog_ErrorGoesToOnErrorOnly(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	llm := NewMockLLM()
	boom := errors.New("backend down")
	llm.SetChatError(boom)

	d := NewDialog(llm, nil, DialogOptions{}, discardLogger())
	var out outcome
	d.SendPrompt(context.Background(), []Prompt{{Text: "Deal."}, {Text: "No deal."}}, out.success, out.failure)
	d.Wait()

	assert.Equal(t, 1, out.calls)
	assert.Nil(t, out.responses)
	assert.ErrorIs(t, out.err, boom)
}

func TestDialog_Timeout(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	llm := NewMockLLM()
	llm.ChatFunc = func(ctx context.Context, messages []chat.ChatMessage) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	d := NewDialog(llm, nil, DialogOptions{Timeout: 20 * time.Millisecond}, discardLogger())
	var out outcome
	d.SendPrompt(context.Background(), []Prompt{{Text: "Deal."}}, out.success, out.failure)
	d.Wait()

	assert.ErrorIs(t, out.err, context.DeadlineExceeded)
	assert.Nil(t, out.responses)
}

func TestDialog_EmptyPhraseIsAnError(t *testing.T) {
	llm := NewMockLLM()
	llm.SetChatResponse("  *shrugs*  ")

	d := NewDialog(llm, nil, DialogOptions{}, discardLogger())
	var out outcome
	d.SendPrompt(context.Background(), []Prompt{{Text: "Deal."}}, out.success, out.failure)
	d.Wait()

	assert.ErrorIs(t, out.err, ErrEmptyPhrase)
}

func TestDialog_FilterCleansOutput(t *testing.T) {
	llm := NewMockLLM()
	llm.SetChatResponse("Marta: \"Damn, fine. Deal.\"")

	d := NewDialog(llm, nil, DialogOptions{Rating: "PG"}, discardLogger())
	var out outcome
	d.SendPrompt(context.Background(), []Prompt{{Speaker: "Marta", Text: "Deal."}}, out.success, out.failure)
	d.Wait()

	require.NoError(t, out.err)
	assert.Equal(t, []string{"Dang, fine. Deal."}, out.responses)
}

func TestDialog_NoPrompts(t *testing.T) {
	d := NewDialog(NewMockLLM(), nil, DialogOptions{}, discardLogger())
	var out outcome
	d.SendPrompt(context.Background(), nil, out.success, out.failure)
	d.Wait()

	require.NoError(t, out.err)
	assert.Equal(t, 1, out.calls)
	assert.Empty(t, out.responses)
}
