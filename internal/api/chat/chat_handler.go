package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeopl/route-planner/app/observability/metrics"
	"github.com/yeopl/route-planner/internal/api"
	"github.com/yeopl/route-planner/internal/api/recommend"
	"github.com/yeopl/route-planner/internal/types"
)

const messagesRequiredMessage = "Messages are required"

type Handler struct {
	chatService      Service
	recommendService recommend.Service
	logger           *slog.Logger
}

func NewHandler(chatService Service, recommendService recommend.Service, logger *slog.Logger) *Handler {
	return &Handler{chatService: chatService, recommendService: recommendService, logger: logger}
}

// Chat answers POST /api/chat. With recommend=false the reply is {text};
// with recommend=true the body is the bare route array.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "Chat", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/chat"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "Chat"))

	var req types.ChatRequest
	if err := api.DecodeLenientJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode chat request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, messagesRequiredMessage)
		return
	}

	transcript, ok := decodeTranscript(req.Messages)
	if !ok {
		l.WarnContext(ctx, "Chat request without a messages array")
		api.ErrorResponse(w, r, http.StatusBadRequest, messagesRequiredMessage)
		return
	}

	mode := "reply"
	if req.Recommend {
		mode = "recommend"
	}
	span.SetAttributes(attribute.String("chat.mode", mode), attribute.Int("chat.messages", len(transcript)))
	metrics.Get().ChatRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))

	if req.Recommend {
		places, err := h.recommendService.Recommend(ctx, transcript)
		if err != nil {
			status, msg := RecommendationErrorStatus(err)
			l.ErrorContext(ctx, "Recommendation failed", slog.Int("status", status), slog.Any("error", err))
			api.ErrorResponse(w, r, status, msg)
			return
		}
		if places == nil {
			places = []types.Place{}
		}
		api.WriteJSONResponse(w, r, http.StatusOK, places)
		return
	}

	text, err := h.chatService.Reply(ctx, transcript)
	if err != nil {
		status, msg := ReplyErrorStatus(err)
		l.ErrorContext(ctx, "Reply failed", slog.Int("status", status), slog.Any("error", err))
		api.ErrorResponse(w, r, status, msg)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.ChatTextResponse{Text: text})
}

// transcriptEntry is the part of a client message the model sees. Ids and
// attached routes are ignored so their shape never rejects a request.
type transcriptEntry struct {
	Author json.RawMessage `json:"author"`
	Text   json.RawMessage `json:"text"`
}

// decodeTranscript accepts any JSON array. Elements that are not objects, or
// whose author or text are not strings, contribute empty fields.
func decodeTranscript(raw json.RawMessage) ([]types.Message, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil || elements == nil {
		return nil, false
	}

	msgs := make([]types.Message, 0, len(elements))
	for _, el := range elements {
		var entry transcriptEntry
		_ = json.Unmarshal(el, &entry)

		var author, text string
		_ = json.Unmarshal(entry.Author, &author)
		_ = json.Unmarshal(entry.Text, &text)
		msgs = append(msgs, types.Message{Author: types.Author(author), Text: text})
	}
	return msgs, true
}

// providerStatus keeps the provider's own status code; transport failures
// carry none and become 500.
func providerStatus(perr *types.ProviderError) int {
	if perr.StatusCode >= 400 && perr.StatusCode <= 599 {
		return perr.StatusCode
	}
	return http.StatusInternalServerError
}

// ReplyErrorStatus maps a Reply error to a status code and client message.
func ReplyErrorStatus(err error) (int, string) {
	var cfgErr *types.ConfigurationError
	var perr *types.ProviderError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, cfgErr.Message
	case errors.As(err, &perr):
		return providerStatus(perr), perr.Message
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

// RecommendationErrorStatus maps a Recommend error to a status code and
// client message.
func RecommendationErrorStatus(err error) (int, string) {
	var rerr *types.RecommendationError
	if errors.As(err, &rerr) && rerr.Kind == types.RecommendationInvalidFormat {
		return http.StatusInternalServerError, recommend.InvalidRouteMessage
	}
	return ReplyErrorStatus(err)
}
