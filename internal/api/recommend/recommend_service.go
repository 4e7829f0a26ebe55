package recommend

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeopl/route-planner/app/observability/metrics"
	"github.com/yeopl/route-planner/internal/api/llm"
	placeSearch "github.com/yeopl/route-planner/internal/api/place_search"
	"github.com/yeopl/route-planner/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	// Recommend asks the model for a route based on the transcript. The
	// result is complete or absent: on error no places are returned.
	Recommend(ctx context.Context, transcript []types.Message) ([]types.Place, error)
}

type ServiceImpl struct {
	provider llm.Provider
	refiner  placeSearch.Service
	logger   *slog.Logger
}

func NewServiceImpl(provider llm.Provider, refiner placeSearch.Service, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{provider: provider, refiner: refiner, logger: logger}
}

// RouteRequest builds the JSON-mode completion request for a transcript.
func RouteRequest(transcript []types.Message) llm.CompletionRequest {
	turns := llm.TranscriptTurns(transcript)
	turns = append(turns, llm.Turn{Role: llm.RoleUser, Text: routeFinalInstruction})
	return llm.CompletionRequest{System: routeSystemPrompt, Turns: turns, JSONMode: true}
}

func (s *ServiceImpl) Recommend(ctx context.Context, transcript []types.Message) ([]types.Place, error) {
	ctx, span := otel.Tracer("RecommendService").Start(ctx, "Recommend", trace.WithAttributes(
		attribute.Int("transcript.length", len(transcript)),
		attribute.String("llm.provider", s.provider.Name()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Recommend"))
	start := time.Now()
	defer func() {
		metrics.Get().RecommendationDurationSeconds.Record(ctx, time.Since(start).Seconds())
	}()

	raw, err := s.provider.Complete(ctx, RouteRequest(transcript))
	if err != nil {
		rerr := classify(err)
		s.recordFailure(ctx, span, rerr)
		l.ErrorContext(ctx, "Route completion failed", slog.String("kind", string(rerr.Kind)), slog.Any("error", err))
		return nil, rerr
	}

	places, err := ParseRoute(raw)
	if err != nil {
		rerr := &types.RecommendationError{Kind: types.RecommendationInvalidFormat, Err: err}
		s.recordFailure(ctx, span, rerr)
		l.ErrorContext(ctx, "Failed to parse route from model output", slog.String("raw", raw), slog.Any("error", err))
		return nil, rerr
	}

	if s.refiner == nil || !s.refiner.Enabled() {
		l.WarnContext(ctx, "Place search not configured; returning unrefined coordinates", slog.Int("places", len(places)))
	} else {
		places = s.refiner.RefineAll(ctx, places)
	}

	span.SetAttributes(attribute.Int("route.places", len(places)))
	span.SetStatus(codes.Ok, "Route recommended")
	l.InfoContext(ctx, "Route recommended", slog.Int("places", len(places)))
	return places, nil
}

func (s *ServiceImpl) recordFailure(ctx context.Context, span trace.Span, rerr *types.RecommendationError) {
	metrics.Get().RecommendationFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(rerr.Kind))))
	span.RecordError(rerr)
	span.SetStatus(codes.Error, "Recommendation failed")
}

func classify(err error) *types.RecommendationError {
	switch {
	case errors.Is(err, types.ErrConfiguration):
		return &types.RecommendationError{Kind: types.RecommendationConfiguration, Err: err}
	case errors.Is(err, types.ErrInvalidFormat):
		return &types.RecommendationError{Kind: types.RecommendationInvalidFormat, Err: err}
	default:
		return &types.RecommendationError{Kind: types.RecommendationProvider, Err: err}
	}
}
