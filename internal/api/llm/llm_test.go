package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeopl/route-planner/config"
	"github.com/yeopl/route-planner/internal/types"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func testConfig(baseURL string) config.Config {
	var cfg config.Config
	cfg.LLM.Provider = ProviderOpenAI
	cfg.LLM.Model = "gpt-4-turbo"
	cfg.LLM.BaseURL = baseURL
	cfg.LLM.OpenAIKey = "sk-test"
	cfg.LLM.GeminiKey = "gm-test"
	cfg.LLM.Timeout = 5 * time.Second
	return cfg
}

func TestTranscriptTurns(t *testing.T) {
	turns := TranscriptTurns([]types.Message{
		{ID: 1, Author: types.AuthorBot, Text: "안녕하세요!"},
		{ID: 2, Author: types.AuthorUser, Text: "경복궁 가고 싶어"},
	})

	assert.Equal(t, []Turn{
		{Role: RoleAssistant, Text: "안녕하세요!"},
		{Role: RoleUser, Text: "경복궁 가고 싶어"},
	}, turns)
	assert.Empty(t, TranscriptTurns(nil))
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()
	logger := setupTestLogger()

	t.Run("openai without key is unconfigured", func(t *testing.T) {
		cfg := testConfig("")
		cfg.LLM.OpenAIKey = ""
		p, err := NewProvider(ctx, cfg, logger)
		require.NoError(t, err)

		_, err = p.Complete(ctx, CompletionRequest{System: "s"})
		var cfgErr *types.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, MissingKeyMessage, cfgErr.Message)
		assert.ErrorIs(t, err, types.ErrConfiguration)
	})

	t.Run("gemini without key is unconfigured", func(t *testing.T) {
		cfg := testConfig("")
		cfg.LLM.Provider = ProviderGemini
		cfg.LLM.GeminiKey = ""
		p, err := NewProvider(ctx, cfg, logger)
		require.NoError(t, err)
		assert.Equal(t, ProviderGemini, p.Name())
		_, err = p.Complete(ctx, CompletionRequest{})
		assert.ErrorIs(t, err, types.ErrConfiguration)
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := testConfig("")
		cfg.LLM.Provider = "clippy"
		_, err := NewProvider(ctx, cfg, logger)
		assert.ErrorContains(t, err, "unsupported LLM provider")
	})
}

type capturedChatRequest struct {
	Model          string `json:"model"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestOpenAIProvider_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("maps turns and returns trimmed text", func(t *testing.T) {
		var got capturedChatRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &got))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"id": "chatcmpl-1",
				"object": "chat.completion",
				"created": 1,
				"model": "gpt-4-turbo",
				"choices": [{"index": 0, "finish_reason": "stop",
					"message": {"role": "assistant", "content": "  경복궁은 좋은 선택이에요!  "}}]
			}`))
		}))
		defer srv.Close()

		p := NewOpenAIProvider(testConfig(srv.URL), setupTestLogger())
		text, err := p.Complete(ctx, CompletionRequest{
			System: "persona",
			Turns: []Turn{
				{Role: RoleAssistant, Text: "안녕하세요!"},
				{Role: RoleUser, Text: "경복궁 가고 싶어"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "경복궁은 좋은 선택이에요!", text)

		assert.Equal(t, "gpt-4-turbo", got.Model)
		assert.Equal(t, "text", got.ResponseFormat.Type)
		require.Len(t, got.Messages, 3)
		assert.Equal(t, "system", got.Messages[0].Role)
		assert.Equal(t, "persona", got.Messages[0].Content)
		assert.Equal(t, "assistant", got.Messages[1].Role)
		assert.Equal(t, "user", got.Messages[2].Role)
	})

	t.Run("json mode sets response format", func(t *testing.T) {
		var got capturedChatRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &got))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"gpt-4-turbo",
				"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"route\":[]}"}}]}`))
		}))
		defer srv.Close()

		p := NewOpenAIProvider(testConfig(srv.URL), setupTestLogger())
		text, err := p.Complete(ctx, CompletionRequest{System: "json", JSONMode: true})
		require.NoError(t, err)
		assert.Equal(t, `{"route":[]}`, text)
		assert.Equal(t, "json_object", got.ResponseFormat.Type)
	})

	t.Run("api error keeps provider status", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
		}))
		defer srv.Close()

		p := NewOpenAIProvider(testConfig(srv.URL), setupTestLogger())
		_, err := p.Complete(ctx, CompletionRequest{System: "s"})

		var perr *types.ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
		assert.NotEmpty(t, perr.Message)
		assert.ErrorIs(t, err, types.ErrProvider)
		assert.Equal(t, 1, calls, "requests are never retried")
	})

	t.Run("transport error has no status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()

		p := NewOpenAIProvider(testConfig(url), setupTestLogger())
		_, err := p.Complete(ctx, CompletionRequest{System: "s"})

		var perr *types.ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Zero(t, perr.StatusCode)
	})
}

func TestGeminiProvider_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("returns candidate text", func(t *testing.T) {
		var body map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &body)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":" {\"route\":[]} "}]},"finishReason":"STOP"}]}`))
		}))
		defer srv.Close()

		cfg := testConfig(srv.URL)
		cfg.LLM.Provider = ProviderGemini
		p, err := NewGeminiProvider(ctx, cfg, setupTestLogger())
		require.NoError(t, err)
		assert.Equal(t, defaultGeminiModel, p.model)

		text, err := p.Complete(ctx, CompletionRequest{
			System:   "json",
			Turns:    []Turn{{Role: RoleUser, Text: "경복궁"}, {Role: RoleAssistant, Text: "좋아요"}},
			JSONMode: true,
		})
		require.NoError(t, err)
		assert.Equal(t, `{"route":[]}`, text)

		contents, ok := body["contents"].([]any)
		require.True(t, ok)
		require.Len(t, contents, 2)
		assert.Equal(t, "model", contents[1].(map[string]any)["role"])
	})

	t.Run("api error keeps provider status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource exhausted","status":"RESOURCE_EXHAUSTED"}}`))
		}))
		defer srv.Close()

		cfg := testConfig(srv.URL)
		p, err := NewGeminiProvider(ctx, cfg, setupTestLogger())
		require.NoError(t, err)

		_, err = p.Complete(ctx, CompletionRequest{System: "s", Turns: []Turn{{Role: RoleUser, Text: "hi"}}})
		var perr *types.ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
		assert.True(t, errors.Is(err, types.ErrProvider))
	})
}
