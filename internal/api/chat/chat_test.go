package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yeopl/route-planner/internal/api/llm"
	"github.com/yeopl/route-planner/internal/api/recommend"
	"github.com/yeopl/route-planner/internal/types"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func TestServiceImpl_Reply(t *testing.T) {
	ctx := context.Background()
	transcript := []types.Message{
		{ID: 1, Author: types.AuthorBot, Text: "안녕하세요!"},
		{ID: 2, Author: types.AuthorUser, Text: "부산 맛집 알려줘"},
	}

	t.Run("free text mode without final instruction", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("Complete", mock.Anything, mock.MatchedBy(func(r llm.CompletionRequest) bool {
			return !r.JSONMode && len(r.Turns) == 2 && r.Turns[0].Role == llm.RoleAssistant
		})).Return("  해운대 근처를 추천해요.\n", nil).Once()

		got, err := NewServiceImpl(provider, setupTestLogger()).Reply(ctx, transcript)
		require.NoError(t, err)
		assert.Equal(t, "해운대 근처를 추천해요.", got)
		provider.AssertExpectations(t)
	})

	t.Run("failure is a reply error", func(t *testing.T) {
		provider := new(MockProvider)
		perr := &types.ProviderError{Provider: "openai", StatusCode: 503, Message: "overloaded"}
		provider.On("Complete", mock.Anything, mock.Anything).Return("", perr).Once()

		_, err := NewServiceImpl(provider, setupTestLogger()).Reply(ctx, transcript)
		var rerr *types.ReplyError
		require.ErrorAs(t, err, &rerr)
		assert.ErrorIs(t, err, types.ErrProvider)
	})
}

func TestReplyRequest_UsesPersona(t *testing.T) {
	req := ReplyRequest(nil)
	assert.Contains(t, req.System, "여플")
	assert.False(t, req.JSONMode)
	assert.Empty(t, req.Turns)
}

func newTestHandler(provider llm.Provider) *Handler {
	logger := setupTestLogger()
	return NewHandler(
		NewServiceImpl(provider, logger),
		recommend.NewServiceImpl(provider, nil, logger),
		logger,
	)
}

func postChat(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	h.Chat(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	msg, _ := body["error"].(string)
	return msg
}

func TestHandler_Chat(t *testing.T) {
	t.Run("messages missing", func(t *testing.T) {
		rec := postChat(t, newTestHandler(new(MockProvider)), `{"recommend":false}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Messages are required", errorBody(t, rec))
	})

	t.Run("messages not an array", func(t *testing.T) {
		rec := postChat(t, newTestHandler(new(MockProvider)), `{"messages":"hi"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Messages are required", errorBody(t, rec))
	})

	t.Run("extra top-level keys are ignored", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("Complete", mock.Anything, mock.Anything).Return("네", nil).Once()

		rec := postChat(t, newTestHandler(provider), `{"messages":[{"author":"user","text":"hi"}],"conversationId":"chat_1"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("messages null", func(t *testing.T) {
		rec := postChat(t, newTestHandler(new(MockProvider)), `{"messages":null}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unused message fields do not reject the transcript", func(t *testing.T) {
		bodies := map[string]string{
			"numeric place id":  `{"messages":[{"id":1,"author":"user","text":"서울"},{"id":2,"author":"bot","text":"경로","route":[{"id":1,"name":"경복궁","lat":37.5,"lng":126.9}]}]}`,
			"string lat":        `{"messages":[{"id":1,"author":"user","text":"서울"},{"id":2,"author":"bot","text":"경로","route":[{"id":"a","name":"경복궁","lat":"37.5","lng":126.9}]}]}`,
			"string message id": `{"messages":[{"id":"m1","author":"user","text":"서울"},{"id":"m2","author":"bot","text":"경로"}]}`,
		}
		for name, body := range bodies {
			t.Run(name, func(t *testing.T) {
				provider := new(MockProvider)
				provider.On("Complete", mock.Anything, mock.MatchedBy(func(r llm.CompletionRequest) bool {
					return len(r.Turns) == 2 &&
						r.Turns[0] == llm.Turn{Role: llm.RoleUser, Text: "서울"} &&
						r.Turns[1] == llm.Turn{Role: llm.RoleAssistant, Text: "경로"}
				})).Return("좋아요", nil).Once()

				rec := postChat(t, newTestHandler(provider), body)

				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				provider.AssertExpectations(t)
			})
		}
	})

	t.Run("missing credential", func(t *testing.T) {
		provider := llm.NewUnconfigured(llm.ProviderOpenAI, "OPENAI_API_KEY is not set", setupTestLogger())
		rec := postChat(t, newTestHandler(provider), `{"messages":[{"author":"user","text":"안녕"}]}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, llm.MissingKeyMessage, errorBody(t, rec))
	})

	t.Run("text reply", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("Complete", mock.Anything, mock.Anything).Return("제주도는 어떠세요?", nil).Once()

		rec := postChat(t, newTestHandler(provider), `{"messages":[{"id":1,"author":"user","text":"어디 갈까?"}]}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var body types.ChatTextResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "제주도는 어떠세요?", body.Text)
	})

	t.Run("provider status is propagated", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("Complete", mock.Anything, mock.Anything).
			Return("", &types.ProviderError{Provider: "openai", StatusCode: http.StatusTooManyRequests, Message: "Rate limit reached"}).Once()

		rec := postChat(t, newTestHandler(provider), `{"messages":[{"author":"user","text":"hi"}]}`)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "Rate limit reached", errorBody(t, rec))
	})

	t.Run("transport failure is 500", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("Complete", mock.Anything, mock.Anything).
			Return("", &types.ProviderError{Provider: "openai", Message: "connection refused"}).Once()

		rec := postChat(t, newTestHandler(provider), `{"messages":[{"author":"user","text":"hi"}]}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "connection refused", errorBody(t, rec))
	})

	t.Run("recommend returns bare array", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("Complete", mock.Anything, mock.MatchedBy(func(r llm.CompletionRequest) bool { return r.JSONMode })).
			Return(`{"route":[{"id":"a","name":"경복궁","lat":37.5796,"lng":126.977}]}`, nil).Once()

		rec := postChat(t, newTestHandler(provider), `{"messages":[{"author":"user","text":"경복궁 가고 싶어"}],"recommend":true}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[{"id":"a","name":"경복궁","lat":37.5796,"lng":126.977}]`, rec.Body.String())
	})

	t.Run("recommend with invalid output", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("Complete", mock.Anything, mock.Anything).Return(`{"places":[]}`, nil).Once()

		rec := postChat(t, newTestHandler(provider), `{"messages":[],"recommend":true}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, recommend.InvalidRouteMessage, errorBody(t, rec))
	})

	t.Run("recommend with empty route", func(t *testing.T) {
		provider := new(MockProvider)
		provider.On("Complete", mock.Anything, mock.Anything).Return(`{"route":[]}`, nil).Once()

		rec := postChat(t, newTestHandler(provider), `{"messages":[],"recommend":true}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}
