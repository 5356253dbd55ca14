package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/jwebster45206/parley/pkg/chat"
)

const (
	defaultOllamaURL = "http://localhost:11434"
	ollamaPullWait   = 10 * time.Minute
)

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatRequest struct {
	Model    string             `json:"model"`
	Messages []chat.ChatMessage `json:"messages"`
	Stream   bool               `json:"stream"`
	Options  ollamaOptions      `json:"options"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error,omitempty"`
}

type ollamaTags struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// OllamaService phrases with a local Ollama server. InitModel pulls the model
// if the server doesn't have it yet.
type OllamaService struct {
	baseURL    string
	modelName  string
	maxTokens  int
	httpClient *http.Client
	logger     *slog.Logger

	readyRetries int
	retryDelay   time.Duration
}

var _ LLMService = (*OllamaService)(nil)

func NewOllamaService(baseURL, modelName string, maxTokens int, logger *slog.Logger) *OllamaService {
	return &OllamaService{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		modelName: modelName,
		maxTokens: maxTokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       logger,
		readyRetries: 5,
		retryDelay:   2 * time.Second,
	}
}

// InitModel waits for the server, then pulls modelName unless it is listed
func (s *OllamaService) InitModel(ctx context.Context, modelName string) error {
	models, err := s.waitForModels(ctx)
	if err != nil {
		return fmt.Errorf("ollama is not ready: %w", err)
	}
	if slices.Contains(models, modelName) {
		s.logger.Info("Model already available", "model", modelName)
		return nil
	}

	s.logger.Info("Pulling model", "model", modelName)
	pullCtx, cancel := context.WithTimeout(ctx, ollamaPullWait)
	defer cancel()
	if err := s.post(pullCtx, "/api/pull", map[string]any{"name": modelName, "stream": false}, nil); err != nil {
		return fmt.Errorf("failed to pull %s: %w", modelName, err)
	}
	s.logger.Info("Model pulled", "model", modelName)
	return nil
}

// Chat returns a single non-streamed completion
func (s *OllamaService) Chat(ctx context.Context, messages []chat.ChatMessage) (string, error) {
	req := ollamaChatRequest{
		Model:    s.modelName,
		Messages: messages,
		Options: ollamaOptions{
			Temperature: DefaultTemperature,
			NumPredict:  s.maxTokens,
		},
	}

	var resp ollamaChatResponse
	if err := s.post(ctx, "/api/chat", req, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama: %s", resp.Error)
	}
	return strings.TrimSpace(resp.Message.Content), nil
}

// post sends body as JSON and decodes the reply into out, if given. The
// request's lifetime is bounded by ctx alone so long pulls aren't cut short.
func (s *OllamaService) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.httpClient
	if path == "/api/pull" {
		client = &http.Client{}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		s.logger.Error("Ollama returned error",
			"path", path,
			"status_code", resp.StatusCode,
			"response_body", string(raw))
		return fmt.Errorf("ollama %s failed with status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// listModels names every model the server has locally
func (s *OllamaService) listModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tags returned status %d", resp.StatusCode)
	}

	var tags ollamaTags
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

// waitForModels retries listModels until the server answers
func (s *OllamaService) waitForModels(ctx context.Context) ([]string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.readyRetries; attempt++ {
		models, err := s.listModels(ctx)
		if err == nil {
			return models, nil
		}
		lastErr = err
		s.logger.Debug("Ollama not ready yet", "error", err, "attempt", attempt)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}
	return nil, fmt.Errorf("no answer after %d attempts: %w", s.readyRetries, lastErr)
}
