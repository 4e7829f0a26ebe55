package placeSearch

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeopl/route-planner/internal/api"
	"github.com/yeopl/route-planner/internal/types"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// SearchPlaces answers GET /api/v1/places/search?query=&size=.
func (h *Handler) SearchPlaces(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PlaceSearchHandler").Start(r.Context(), "SearchPlaces", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/v1/places/search"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "SearchPlaces"))

	query := r.URL.Query().Get("query")
	size := MaxResults
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, "size must be an integer")
			return
		}
		size = n
	}

	candidates, err := h.service.Search(ctx, query, size)
	if err != nil {
		status, msg := SearchErrorStatus(err)
		l.WarnContext(ctx, "Place search failed", slog.Int("status", status), slog.Any("error", err))
		api.ErrorResponse(w, r, status, msg)
		return
	}

	if candidates == nil {
		candidates = []types.Candidate{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.SearchResponse{
		Query:      normalizeQuery(query),
		Candidates: candidates,
		Places:     lo.Map(candidates, func(c types.Candidate, _ int) types.Place { return c.ToPlace() }),
	})
}

// SearchErrorStatus maps a Search error to an HTTP status and client message.
func SearchErrorStatus(err error) (int, string) {
	var cfgErr *types.ConfigurationError
	var valErr *types.ValidationError
	var provErr *types.ProviderError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusServiceUnavailable, cfgErr.Message
	case errors.As(err, &valErr):
		return http.StatusBadRequest, valErr.Message
	case errors.As(err, &provErr):
		return http.StatusBadGateway, "Place search failed: " + provErr.Message
	default:
		return http.StatusInternalServerError, "Place search failed"
	}
}
