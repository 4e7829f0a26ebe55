package planner

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeopl/route-planner/internal/api"
	"github.com/yeopl/route-planner/internal/api/chat"
	"github.com/yeopl/route-planner/internal/types"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func startSpan(r *http.Request, name, route string) (*http.Request, trace.Span) {
	ctx, span := otel.Tracer("PlannerHandler").Start(r.Context(), name, trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String(route),
	))
	return r.WithContext(ctx), span
}

// ErrorStatus maps planner errors to a status code and client message.
func ErrorStatus(err error) (int, string) {
	var valErr *types.ValidationError
	var recErr *types.RecommendationError
	switch {
	case errors.As(err, &valErr):
		return http.StatusBadRequest, valErr.Message
	case errors.Is(err, types.ErrAlreadyPresent):
		return http.StatusConflict, DuplicatePlaceError
	case errors.Is(err, types.ErrConfirmationRequired):
		return http.StatusBadRequest, "Deleting a conversation must be confirmed with confirm=true"
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, types.ErrConversationUnavailable):
		return http.StatusConflict, "The conversation was deleted before the answer arrived"
	case errors.As(err, &recErr):
		return chat.RecommendationErrorStatus(err)
	case errors.Is(err, types.ErrNoActiveConversation):
		return http.StatusInternalServerError, "No active conversation"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, l *slog.Logger, span trace.Span, err error) {
	status, msg := ErrorStatus(err)
	span.RecordError(err)
	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "Request failed", slog.Int("status", status), slog.Any("error", err))
	} else {
		l.InfoContext(r.Context(), "Request rejected", slog.Int("status", status), slog.Any("error", err))
	}
	api.ErrorResponse(w, r, status, msg)
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "ListConversations", "/api/v1/conversations")
	defer span.End()
	api.WriteJSONResponse(w, r, http.StatusOK, h.service.ListConversations(r.Context()))
}

func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "CreateConversation", "/api/v1/conversations")
	defer span.End()
	api.WriteJSONResponse(w, r, http.StatusCreated, h.service.CreateConversation(r.Context()))
}

func (h *Handler) ActiveConversation(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "ActiveConversation", "/api/v1/conversations/active")
	defer span.End()
	l := h.logger.With(slog.String("handler", "ActiveConversation"))

	conv, err := h.service.ActiveConversation(r.Context())
	if err != nil {
		h.fail(w, r, l, span, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, conv)
}

func (h *Handler) SelectConversation(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "SelectConversation", "/api/v1/conversations/{id}/select")
	defer span.End()
	l := h.logger.With(slog.String("handler", "SelectConversation"))

	conv, err := h.service.SelectConversation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, l, span, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, conv)
}

func (h *Handler) RenameConversation(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "RenameConversation", "/api/v1/conversations/{id}")
	defer span.End()
	l := h.logger.With(slog.String("handler", "RenameConversation"))

	var req types.RenameConversationRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	conv, err := h.service.RenameConversation(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		h.fail(w, r, l, span, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, conv)
}

// DeleteConversation needs ?confirm=true; it answers with the conversation
// that is active afterwards.
func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "DeleteConversation", "/api/v1/conversations/{id}")
	defer span.End()
	l := h.logger.With(slog.String("handler", "DeleteConversation"))

	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	conv, err := h.service.DeleteConversation(r.Context(), chi.URLParam(r, "id"), confirmed)
	if err != nil {
		h.fail(w, r, l, span, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, conv)
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "SendMessage", "/api/v1/messages")
	defer span.End()
	l := h.logger.With(slog.String("handler", "SendMessage"))

	var req types.SendMessageRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := h.service.SendMessage(r.Context(), req.Text)
	if err != nil {
		h.fail(w, r, l, span, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *Handler) RequestRecommendation(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "RequestRecommendation", "/api/v1/recommendations")
	defer span.End()
	l := h.logger.With(slog.String("handler", "RequestRecommendation"))

	resp, err := h.service.RequestRecommendation(r.Context())
	if err != nil {
		h.fail(w, r, l, span, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *Handler) Itinerary(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "Itinerary", "/api/v1/itinerary")
	defer span.End()
	l := h.logger.With(slog.String("handler", "Itinerary"))

	resp, err := h.service.Itinerary(r.Context())
	if err != nil {
		h.fail(w, r, l, span, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *Handler) AddPlace(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "AddPlace", "/api/v1/itinerary/places")
	defer span.End()
	l := h.logger.With(slog.String("handler", "AddPlace"))

	var req types.AddPlaceRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := h.service.AddPlace(r.Context(), req.Place)
	if err != nil {
		h.fail(w, r, l, span, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, resp)
}

func (h *Handler) RemovePlace(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "RemovePlace", "/api/v1/itinerary/places/{placeID}")
	defer span.End()
	l := h.logger.With(slog.String("handler", "RemovePlace"))

	resp, err := h.service.RemovePlace(r.Context(), chi.URLParam(r, "placeID"))
	if err != nil {
		h.fail(w, r, l, span, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *Handler) ReorderPlace(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "ReorderPlace", "/api/v1/itinerary/reorder")
	defer span.End()
	l := h.logger.With(slog.String("handler", "ReorderPlace"))

	var req types.ReorderRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := h.service.ReorderPlace(r.Context(), req.FromID, req.ToID)
	if err != nil {
		h.fail(w, r, l, span, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// MapView serves GET /api/v1/map. With ?source=handoff it shows the last
// handed-off route instead of handing off the active one.
func (h *Handler) MapView(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "MapView", "/api/v1/map")
	defer span.End()
	l := h.logger.With(slog.String("handler", "MapView"))

	if r.URL.Query().Get("source") == "handoff" {
		api.WriteJSONResponse(w, r, http.StatusOK, h.service.HandedOffMapView(r.Context()))
		return
	}
	view, err := h.service.MapView(r.Context())
	if err != nil {
		h.fail(w, r, l, span, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, view)
}
