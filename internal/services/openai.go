package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/parley/pkg/chat"
)

const (
	veniceBaseURL = "https://api.venice.ai/api/v1"
	openAIBaseURL = "https://api.openai.com/v1"
	msgNoResponse = "(no response)"

	DefaultTemperature = 0.7
)

// VeniceParameters are Venice-only request extensions
type VeniceParameters struct {
	IncludeVeniceSystemPrompt bool   `json:"include_venice_system_prompt"`
	EnableWebSearch           string `json:"enable_web_search"`
}

// ChatCompletionRequest is an OpenAI-style chat completion request
type ChatCompletionRequest struct {
	Model            string             `json:"model"`
	Messages         []chat.ChatMessage `json:"messages"`
	Temperature      float64            `json:"temperature,omitempty"`
	MaxTokens        int                `json:"max_tokens,omitempty"`
	Stream           bool               `json:"stream"`
	VeniceParameters *VeniceParameters  `json:"venice_parameters,omitempty"`
}

// ChatCompletionChoice is a single choice in a chat completion response
type ChatCompletionChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// ChatCompletionResponse is an OpenAI-style chat completion response
type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// OpenAICompatService implements LLMService for OpenAI-compatible chat
// completion APIs: OpenAI itself and Venice AI.
type OpenAICompatService struct {
	baseURL    string
	apiKey     string
	modelName  string
	maxTokens  int
	venice     bool
	httpClient *http.Client
	logger     *slog.Logger
}

var _ LLMService = (*OpenAICompatService)(nil)

// NewVeniceService creates a service for Venice AI
func NewVeniceService(apiKey, modelName string, maxTokens int, logger *slog.Logger) *OpenAICompatService {
	s := newOpenAICompat(veniceBaseURL, apiKey, modelName, maxTokens, logger)
	s.venice = true
	return s
}

// NewOpenAIService creates a service for OpenAI or any compatible server at
// baseURL. An empty baseURL means OpenAI.
func NewOpenAIService(baseURL, apiKey, modelName string, maxTokens int, logger *slog.Logger) *OpenAICompatService {
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	return newOpenAICompat(baseURL, apiKey, modelName, maxTokens, logger)
}

func newOpenAICompat(baseURL, apiKey, modelName string, maxTokens int, logger *slog.Logger) *OpenAICompatService {
	return &OpenAICompatService{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		apiKey:    apiKey,
		modelName: modelName,
		maxTokens: maxTokens,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// InitModel is a no-op; hosted models need no preparation
func (s *OpenAICompatService) InitModel(ctx context.Context, modelName string) error {
	return nil
}

// Chat generates a completion for messages
func (s *OpenAICompatService) Chat(ctx context.Context, messages []chat.ChatMessage) (string, error) {
	body := ChatCompletionRequest{
		Model:       s.modelName,
		Messages:    messages,
		Temperature: DefaultTemperature,
		MaxTokens:   s.maxTokens,
	}
	if s.venice {
		body.VeniceParameters = &VeniceParameters{EnableWebSearch: "off"}
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.Error("Chat completion API returned error",
			"url", s.baseURL,
			"status_code", resp.StatusCode,
			"response_body", string(respBody))
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed ChatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completion: %s", msgNoResponse)
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
