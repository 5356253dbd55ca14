package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/parley/internal/config"
	"github.com/jwebster45206/parley/pkg/chat"
)

// LLMService turns prompts into text. Dialog uses it to phrase structural
// speech and the summary worker uses it to condense transcripts.
type LLMService interface {
	// InitModel prepares the backend to serve modelName
	InitModel(ctx context.Context, modelName string) error

	// Chat returns the completion for messages
	Chat(ctx context.Context, messages []chat.ChatMessage) (string, error)
}

// NewLLMService builds the backend named by cfg.Provider
func NewLLMService(cfg config.LLMConfig, logger *slog.Logger) (LLMService, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicService(cfg.APIKey, cfg.Model, cfg.MaxTokens, logger), nil
	case "venice":
		return NewVeniceService(cfg.APIKey, cfg.Model, cfg.MaxTokens, logger), nil
	case "openai":
		return NewOpenAIService(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.MaxTokens, logger), nil
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = defaultOllamaURL
		}
		return NewOllamaService(baseURL, cfg.Model, cfg.MaxTokens, logger), nil
	case "mock":
		return NewMockLLM(), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}
