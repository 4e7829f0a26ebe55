// Package itinerary holds the ordered place list of the active conversation.
// The list functions here are pure: they return a new route and never modify
// their input.
package itinerary

import (
	"github.com/samber/lo"

	"github.com/yeopl/route-planner/internal/types"
)

// SetAll replaces the whole itinerary.
func SetAll(places []types.Place) types.Route {
	return types.Route(places).Clone()
}

// Add appends place unless its id is already present, in which case the
// route is returned unchanged together with types.ErrAlreadyPresent.
func Add(route types.Route, place types.Place) (types.Route, error) {
	if route.Index(place.ID) >= 0 {
		return route.Clone(), types.ErrAlreadyPresent
	}
	out := make(types.Route, 0, len(route)+1)
	out = append(out, route...)
	return append(out, place), nil
}

// Remove drops the place with the given id. Absent ids are a no-op.
func Remove(route types.Route, id string) types.Route {
	return lo.Filter(route.Clone(), func(p types.Place, _ int) bool {
		return p.ID != id
	})
}

// Reorder moves fromID to the index currently held by toID, shifting the
// places in between. It reports false, with the route unchanged, when either
// id is absent.
func Reorder(route types.Route, fromID, toID string) (types.Route, bool) {
	from, to := route.Index(fromID), route.Index(toID)
	if from < 0 || to < 0 {
		return route.Clone(), false
	}
	out := route.Clone()
	if from == to {
		return out, true
	}
	moved := out[from]
	if from < to {
		copy(out[from:to], out[from+1:to+1])
	} else {
		copy(out[to+1:from+1], out[to:from])
	}
	out[to] = moved
	return out, true
}
