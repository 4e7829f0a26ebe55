package itinerary

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yeopl/route-planner/internal/types"
)

// RouteSource is the conversation store as seen from the itinerary. The
// active conversation's route is the only copy of the itinerary.
type RouteSource interface {
	Active() (*types.Conversation, bool)
	// MutateActiveRoute applies fn to the active route under the store lock
	// and persists the result unless fn returns an error.
	MutateActiveRoute(ctx context.Context, fn func(types.Route) (types.Route, error)) (string, types.Route, error)
}

var errMissingPlace = errors.New("place not in itinerary")

type Store struct {
	source RouteSource
	logger *slog.Logger
}

func NewStore(source RouteSource, logger *slog.Logger) *Store {
	return &Store{source: source, logger: logger}
}

// Current is a read-only projection of the active conversation's route.
func (s *Store) Current() (string, types.Route, error) {
	c, ok := s.source.Active()
	if !ok {
		return "", nil, types.ErrNoActiveConversation
	}
	return c.ID, c.Route.Clone(), nil
}

func (s *Store) SetAll(ctx context.Context, places []types.Place) (types.Route, error) {
	_, route, err := s.source.MutateActiveRoute(ctx, func(types.Route) (types.Route, error) {
		return SetAll(places), nil
	})
	return route, err
}

// Add appends place; a duplicate id yields types.ErrAlreadyPresent and no
// write.
func (s *Store) Add(ctx context.Context, place types.Place) (types.Route, error) {
	_, route, err := s.source.MutateActiveRoute(ctx, func(r types.Route) (types.Route, error) {
		return Add(r, place)
	})
	if err != nil {
		s.logger.DebugContext(ctx, "Place not added", slog.String("place_id", place.ID), slog.Any("error", err))
	}
	return route, err
}

func (s *Store) Remove(ctx context.Context, id string) (types.Route, error) {
	_, route, err := s.source.MutateActiveRoute(ctx, func(r types.Route) (types.Route, error) {
		return Remove(r, id), nil
	})
	return route, err
}

// Reorder moves fromID onto toID's position. ok is false when either id is
// missing; the route is then left as it was and nothing is written.
func (s *Store) Reorder(ctx context.Context, fromID, toID string) (types.Route, bool, error) {
	ok := true
	_, route, err := s.source.MutateActiveRoute(ctx, func(r types.Route) (types.Route, error) {
		moved, found := Reorder(r, fromID, toID)
		if !found {
			ok = false
			return r, errMissingPlace
		}
		return moved, nil
	})
	if errors.Is(err, errMissingPlace) {
		return route, false, nil
	}
	return route, ok, err
}
