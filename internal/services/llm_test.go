package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/parley/internal/config"
	"github.com/jwebster45206/parley/pkg/chat"
)

func TestNewLLMService(t *testing.T) {
	tests := []struct {
		provider string
		want     interface{}
		wantErr  bool
	}{
		{provider: "anthropic", want: &AnthropicService{}},
		{provider: "venice", want: &OpenAICompatService{}},
		{provider: "openai", want: &OpenAICompatService{}},
		{provider: "ollama", want: &OllamaService{}},
		{provider: "mock", want: &MockLLM{}},
		{provider: "hal9000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			svc, err := NewLLMService(config.LLMConfig{
				Provider:  tt.provider,
				Model:     "test-model",
				APIKey:    "test-key",
				MaxTokens: 64,
			}, discardLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, svc)
		})
	}
}

func TestAnthropicService_SplitChatMessages(t *testing.T) {
	service := NewAnthropicService("test-key", "claude-haiku-4-5", 64, discardLogger())

	tests := []struct {
		name           string
		messages       []chat.ChatMessage
		expectedSystem string
		expectedRest   int
	}{
		{
			name: "single system message",
			messages: []chat.ChatMessage{
				chat.System("Voice the speaker."),
				chat.User("Deal."),
			},
			expectedSystem: "Voice the speaker.",
			expectedRest:   1,
		},
		{
			name: "multiple system messages",
			messages: []chat.ChatMessage{
				chat.System("Voice the speaker."),
				chat.User("Deal."),
				chat.System("Be brief."),
				{Role: chat.ChatRoleAgent, Content: "Fine."},
			},
			expectedSystem: "Voice the speaker.\n\nBe brief.",
			expectedRest:   2,
		},
		{
			name:           "no system messages",
			messages:       []chat.ChatMessage{chat.User("Deal.")},
			expectedSystem: "",
			expectedRest:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			system, rest := service.splitChatMessages(tt.messages)
			assert.Equal(t, tt.expectedSystem, system)
			assert.Len(t, rest, tt.expectedRest)
			for _, m := range rest {
				assert.NotEqual(t, chat.ChatRoleSystem, m.Role)
			}
		})
	}
}

func TestAnthropicService_Chat(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-haiku-4-5",
			"content": [{"type": "text", "text": "  Aye, a fair trade.  "}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 5}
		}`)
	}))
	defer srv.Close()

	service := NewAnthropicService("test-key", "claude-haiku-4-5", 64, discardLogger(),
		option.WithBaseURL(srv.URL+"/"),
		option.WithMaxRetries(0))

	text, err := service.Chat(context.Background(), []chat.ChatMessage{
		chat.System("Voice the speaker."),
		chat.User("Deal."),
	})
	require.NoError(t, err)
	assert.Equal(t, "Aye, a fair trade.", text)
	assert.Equal(t, "claude-haiku-4-5", got["model"])
	assert.EqualValues(t, 64, got["max_tokens"])
	assert.NotNil(t, got["system"])
}

func TestAnthropicService_ChatNeedsUserMessage(t *testing.T) {
	service := NewAnthropicService("test-key", "claude-haiku-4-5", 64, discardLogger())
	_, err := service.Chat(context.Background(), []chat.ChatMessage{chat.System("only rules")})
	assert.Error(t, err)
}

func TestOpenAICompatService_Chat(t *testing.T) {
	tests := []struct {
		name       string
		venice     bool
		wantVenice bool
	}{
		{name: "openai", venice: false, wantVenice: false},
		{name: "venice", venice: true, wantVenice: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req ChatCompletionRequest
			var auth string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/chat/completions", r.URL.Path)
				auth = r.Header.Get("Authorization")
				_ = json.NewDecoder(r.Body).Decode(&req)
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"id":"c1","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":" Fine. "},"finish_reason":"stop"}]}`)
			}))
			defer srv.Close()

			service := NewOpenAIService(srv.URL, "secret", "m", 32, discardLogger())
			service.venice = tt.venice

			text, err := service.Chat(context.Background(), []chat.ChatMessage{chat.User("Deal.")})
			require.NoError(t, err)
			assert.Equal(t, "Fine.", text)
			assert.Equal(t, "Bearer secret", auth)
			assert.Equal(t, 32, req.MaxTokens)
			assert.Equal(t, tt.wantVenice, req.VeniceParameters != nil)
		})
	}
}

func TestOpenAICompatService_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "http error", status: http.StatusUnauthorized, body: `{"error":{"message":"bad key"}}`},
		{name: "api error", status: http.StatusOK, body: `{"error":{"message":"model overloaded","type":"server"}}`},
		{name: "no choices", status: http.StatusOK, body: `{"id":"c1","choices":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			service := NewOpenAIService(srv.URL, "secret", "m", 32, discardLogger())
			_, err := service.Chat(context.Background(), []chat.ChatMessage{chat.User("Deal.")})
			assert.Error(t, err)
		})
	}
}

func TestOllamaService_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, false, body["stream"])
		options, _ := body["options"].(map[string]interface{})
		assert.Equal(t, float64(64), options["num_predict"])
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":"Well met."}}`)
	}))
	defer srv.Close()

	service := NewOllamaService(srv.URL, "llama3", 64, discardLogger())
	text, err := service.Chat(context.Background(), []chat.ChatMessage{chat.User("Hello.")})
	require.NoError(t, err)
	assert.Equal(t, "Well met.", text)
}

func TestOllamaService_InitModelPullsMissingModel(t *testing.T) {
	pulled := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = io.WriteString(w, `{"models":[{"name":"other"}]}`)
		case "/api/pull":
			pulled = true
			_, _ = io.WriteString(w, `{"status":"success"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	service := NewOllamaService(srv.URL, "llama3", 64, discardLogger())
	require.NoError(t, service.InitModel(context.Background(), "llama3"))
	assert.True(t, pulled)
}

func TestMockLLM(t *testing.T) {
	m := NewMockLLM()

	require.NoError(t, m.InitModel(context.Background(), "test-model"))
	text, err := m.Chat(context.Background(), []chat.ChatMessage{chat.System("rules"), chat.User("Deal.")})
	require.NoError(t, err)
	assert.Equal(t, "Deal.", text)

	initCalls, chatCalls := m.GetCalls()
	assert.Equal(t, []string{"test-model"}, initCalls)
	assert.Len(t, chatCalls, 1)

	boom := errors.New("initialization failed")
	m.SetInitModelError(boom)
	assert.ErrorIs(t, m.InitModel(context.Background(), "x"), boom)

	m.Reset()
	initCalls, chatCalls = m.GetCalls()
	assert.Empty(t, initCalls)
	assert.Empty(t, chatCalls)
}
