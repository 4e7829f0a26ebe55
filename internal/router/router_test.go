package router

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appMiddleware "github.com/yeopl/route-planner/app/middleware"
	"github.com/yeopl/route-planner/config"
	"github.com/yeopl/route-planner/internal/api/llm"
	"github.com/yeopl/route-planner/internal/container"
	"github.com/yeopl/route-planner/internal/storage"
	"github.com/yeopl/route-planner/internal/types"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestRouter(t *testing.T, rateLimit int) http.Handler {
	t.Helper()
	cfg, err := config.Load([]byte("mode: test\nllm:\n  provider: openai\n"))
	require.NoError(t, err)

	logger := setupTestLogger()
	c, err := container.NewWithKV(context.Background(), &cfg, storage.NewMemoryKV(), logger)
	require.NoError(t, err)

	return SetupRouter(&Config{
		ChatHandler:        c.ChatHandler,
		PlaceSearchHandler: c.PlaceSearchHandler,
		PlannerHandler:     c.PlannerHandler,
		AllowedOrigins:     []string{"http://localhost:3000"},
		ModelRateLimit:     appMiddleware.RateLimitByIP(rateLimit, time.Minute, logger),
	})
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.1:5555"
	h.ServeHTTP(rec, req)
	return rec
}

func TestSetupRouter(t *testing.T) {
	h := newTestRouter(t, 0)

	t.Run("ping", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/ping", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "pong", rec.Body.String())
	})

	t.Run("chat without credential", func(t *testing.T) {
		rec := serve(h, http.MethodPost, "/api/chat", `{"messages":[{"author":"user","text":"hi"}]}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, llm.MissingKeyMessage, body["error"])
	})

	t.Run("search without credential", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/api/v1/places/search?query=cafe", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("conversations start with one", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/api/v1/conversations", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var list []types.ConversationSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list, 1)
		assert.True(t, list[0].Active)
	})

	t.Run("failed reply keeps the turn", func(t *testing.T) {
		rec := serve(h, http.MethodPost, "/api/v1/messages", `{"text":"서울 추천해줘"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp types.SendMessageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Failed)
		assert.Contains(t, resp.BotMessage.Text, llm.MissingKeyMessage)
	})

	t.Run("itinerary edits", func(t *testing.T) {
		rec := serve(h, http.MethodPost, "/api/v1/itinerary/places", `{"place":{"id":"p1","name":"북촌"}}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = serve(h, http.MethodGet, "/api/v1/itinerary", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var resp types.ItineraryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"p1"}, resp.Route.IDs())
	})

	t.Run("unknown route", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/api/v1/nope", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSetupRouter_ModelRoutesAreRateLimited(t *testing.T) {
	h := newTestRouter(t, 1)

	first := serve(h, http.MethodPost, "/api/chat", `{"messages":[]}`)
	assert.NotEqual(t, http.StatusTooManyRequests, first.Code)
	second := serve(h, http.MethodPost, "/api/chat", `{"messages":[]}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	rec := serve(h, http.MethodGet, "/api/v1/itinerary", "")
	assert.Equal(t, http.StatusOK, rec.Code, "plain reads are not limited")
}
