package placeSearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/yeopl/route-planner/app/observability/metrics"
	"github.com/yeopl/route-planner/internal/types"
)

// MaxResults caps manual search results.
const MaxResults = 5

const notConfiguredMessage = "Place search is not configured. Please contact the administrator."

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	// Enabled reports whether a search credential is configured.
	Enabled() bool
	// Refine looks a place up by name and merges the best hit into it. It
	// never fails: on any problem the input is returned unchanged.
	Refine(ctx context.Context, place types.Place) types.Place
	// RefineAll refines every place concurrently; out[i] corresponds to in[i].
	RefineAll(ctx context.Context, places []types.Place) []types.Place
	Search(ctx context.Context, query string, size int) ([]types.Candidate, error)
}

type ServiceImpl struct {
	client      Client
	cache       *cache.Cache
	concurrency int
	logger      *slog.Logger
}

// NewServiceImpl builds the service. A nil client disables lookups.
func NewServiceImpl(client Client, cacheTTL time.Duration, concurrency int, logger *slog.Logger) *ServiceImpl {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &ServiceImpl{
		client:      client,
		cache:       cache.New(cacheTTL, 2*cacheTTL),
		concurrency: concurrency,
		logger:      logger,
	}
}

func (s *ServiceImpl) Enabled() bool {
	return s.client != nil
}

// normalizeQuery trims and composes the query so that decomposed Hangul
// input shares cache entries with precomposed input.
func normalizeQuery(q string) string {
	return norm.NFC.String(strings.TrimSpace(q))
}

func clampSize(size int) int {
	if size <= 0 || size > MaxResults {
		return MaxResults
	}
	return size
}

func (s *ServiceImpl) lookup(ctx context.Context, query string, size int) ([]types.Candidate, error) {
	key := fmt.Sprintf("%s|%d", query, size)
	if cached, found := s.cache.Get(key); found {
		if candidates, ok := cached.([]types.Candidate); ok {
			metrics.Get().PlaceCacheHitsTotal.Add(ctx, 1)
			return append([]types.Candidate(nil), candidates...), nil
		}
	}

	metrics.Get().PlaceLookupsTotal.Add(ctx, 1)
	candidates, err := s.client.Keyword(ctx, query, size)
	if err != nil {
		metrics.Get().PlaceLookupFailuresTotal.Add(ctx, 1)
		return nil, err
	}
	s.cache.Set(key, append([]types.Candidate(nil), candidates...), cache.DefaultExpiration)
	return candidates, nil
}

func (s *ServiceImpl) Search(ctx context.Context, query string, size int) ([]types.Candidate, error) {
	ctx, span := otel.Tracer("PlaceSearchService").Start(ctx, "Search", trace.WithAttributes(
		attribute.String("search.query", query),
	))
	defer span.End()

	if !s.Enabled() {
		err := &types.ConfigurationError{Message: notConfiguredMessage, Detail: "KAKAO_REST_API_KEY is not set"}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Search not configured")
		return nil, err
	}

	q := normalizeQuery(query)
	if q == "" {
		return nil, &types.ValidationError{Message: "Search query is required"}
	}

	candidates, err := s.lookup(ctx, q, clampSize(size))
	if err != nil {
		s.logger.WarnContext(ctx, "Place search failed", slog.String("query", q), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Search failed")
		return nil, err
	}
	if len(candidates) > MaxResults {
		candidates = candidates[:MaxResults]
	}

	span.SetAttributes(attribute.Int("search.results", len(candidates)))
	span.SetStatus(codes.Ok, "Search completed")
	return candidates, nil
}

func (s *ServiceImpl) Refine(ctx context.Context, place types.Place) types.Place {
	if !s.Enabled() {
		return place
	}
	q := normalizeQuery(place.Name)
	if q == "" {
		return place
	}

	candidates, err := s.lookup(ctx, q, 1)
	if err == nil && len(candidates) == 0 {
		err = errors.New("no search results")
	}
	var lat, lng float64
	if err == nil {
		lat, lng, err = candidates[0].Coordinates()
	}
	if err != nil {
		rerr := &types.RefinementError{PlaceID: place.ID, Query: q, Err: err}
		s.logger.WarnContext(ctx, "Keeping unrefined place", slog.Any("error", rerr))
		return place
	}

	refined := place
	// a hit replaces the model's address even when it has none
	refined.Lat, refined.Lng = types.Float(lat), types.Float(lng)
	refined.Address = candidates[0].BestAddress()
	return refined
}

func (s *ServiceImpl) RefineAll(ctx context.Context, places []types.Place) []types.Place {
	ctx, span := otel.Tracer("PlaceSearchService").Start(ctx, "RefineAll", trace.WithAttributes(
		attribute.Int("places.count", len(places)),
	))
	defer span.End()

	out := make([]types.Place, len(places))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, p := range places {
		g.Go(func() error {
			out[i] = s.Refine(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	span.SetStatus(codes.Ok, "Places refined")
	return out
}
