package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jwebster45206/parley/pkg/chat"
)

// AnthropicService implements LLMService on the Anthropic Messages API
type AnthropicService struct {
	client    *anthropic.Client
	modelName string
	maxTokens int
	logger    *slog.Logger
}

var _ LLMService = (*AnthropicService)(nil)

// NewAnthropicService creates a new Anthropic service instance. Extra request
// options are passed to the SDK client.
func NewAnthropicService(apiKey, modelName string, maxTokens int, logger *slog.Logger, opts ...option.RequestOption) *AnthropicService {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	c := anthropic.NewClient(opts...)
	return &AnthropicService{
		client:    &c,
		modelName: modelName,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// InitModel is a no-op; hosted models need no preparation
func (s *AnthropicService) InitModel(ctx context.Context, modelName string) error {
	s.logger.Debug("Anthropic model ready", "model", modelName)
	return nil
}

// Chat sends messages to the Messages API and returns the first text block
func (s *AnthropicService) Chat(ctx context.Context, messages []chat.ChatMessage) (string, error) {
	system, rest := s.splitChatMessages(messages)
	if len(rest) == 0 {
		return "", fmt.Errorf("anthropic chat needs at least one non-system message")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.modelName),
		MaxTokens: int64(s.maxTokens),
		Messages:  make([]anthropic.MessageParam, 0, len(rest)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, m := range rest {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == chat.ChatRoleAgent {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		s.logger.Error("Anthropic request failed", "model", s.modelName, "error", err)
		return "", fmt.Errorf("anthropic chat: %w", err)
	}

	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			text := strings.TrimSpace(resp.Content[i].Text)
			s.logger.Debug("Anthropic response received", "model", s.modelName, "length", len(text))
			return text, nil
		}
	}
	return "", fmt.Errorf("anthropic chat: %s", msgNoResponse)
}

// splitChatMessages joins every system message into one system prompt and
// returns the remaining messages in order
func (s *AnthropicService) splitChatMessages(messages []chat.ChatMessage) (string, []chat.ChatMessage) {
	var system []string
	rest := make([]chat.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == chat.ChatRoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
