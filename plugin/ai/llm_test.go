package ai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOpenAI serves /chat/completions with a canned answer and records the last request.
type fakeOpenAI struct {
	reply   string
	status  int
	delay   time.Duration
	lastReq map[string]any
	auth    string
}

func (f *fakeOpenAI) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		f.auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		f.lastReq = map[string]any{}
		_ = json.Unmarshal(body, &f.lastReq)

		if f.delay > 0 {
			select {
			case <-time.After(f.delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if f.status != 0 {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": f.reply},
			}},
			"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestLLM(t *testing.T, fake *fakeOpenAI, timeout time.Duration) LLMService {
	t.Helper()
	srv := fake.server(t)
	llm, err := NewLLMService(&LLMConfig{
		Provider:    "openai",
		Model:       "test-model",
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		MaxTokens:   128,
		Temperature: 0.7,
		Timeout:     timeout,
	})
	require.NoError(t, err)
	return llm
}

func TestNewLLMService(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *LLMConfig
		expectError bool
	}{
		{"deepseek", &LLMConfig{Provider: "deepseek", Model: "deepseek-chat", APIKey: "k", BaseURL: "https://api.deepseek.com"}, false},
		{"openai default url", &LLMConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "k"}, false},
		{"ollama", &LLMConfig{Provider: "ollama", Model: "llama3", BaseURL: "http://localhost:11434/v1"}, false},
		{"ollama without url", &LLMConfig{Provider: "ollama", Model: "llama3"}, true},
		{"unsupported", &LLMConfig{Provider: "unsupported"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLLMService(tt.cfg)
			assert.Equal(t, tt.expectError, err != nil, "error = %v", err)
		})
	}
}

func TestLLMChat(t *testing.T) {
	fake := &fakeOpenAI{reply: "hello there"}
	llm := newTestLLM(t, fake, 0)

	content, err := llm.Chat(context.Background(), []Message{SystemPrompt("be brief"), UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "hello there", content)
	assert.Equal(t, "Bearer test-key", fake.auth)
	assert.Equal(t, "test-model", fake.lastReq["model"])
	assert.NotContains(t, fake.lastReq, "response_format")

	messages, ok := fake.lastReq["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestLLMChatJSON(t *testing.T) {
	fake := &fakeOpenAI{reply: `{"ok":true}`}
	llm := newTestLLM(t, fake, 0)

	content, err := llm.ChatJSON(context.Background(), []Message{UserMessage("json please")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, content)

	format, ok := fake.lastReq["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestLLMChatErrors(t *testing.T) {
	t.Run("upstream error", func(t *testing.T) {
		llm := newTestLLM(t, &fakeOpenAI{status: http.StatusInternalServerError}, 0)
		_, err := llm.Chat(context.Background(), []Message{UserMessage("hi")})
		assert.Error(t, err)
	})

	t.Run("timeout", func(t *testing.T) {
		llm := newTestLLM(t, &fakeOpenAI{reply: "late", delay: time.Second}, 20*time.Millisecond)
		_, err := llm.Chat(context.Background(), []Message{UserMessage("hi")})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestConvertMessages(t *testing.T) {
	converted := convertMessages([]Message{
		{Role: "system", Content: "s"},
		{Role: "user", Content: "u"},
		{Role: "assistant", Content: "a"},
		{Role: "unknown", Content: "x"},
	})

	require.Len(t, converted, 4)
	assert.Equal(t, "system", converted[0].Role)
	assert.Equal(t, "user", converted[1].Role)
	assert.Equal(t, "assistant", converted[2].Role)
	assert.Equal(t, "user", converted[3].Role)
}
