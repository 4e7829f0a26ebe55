package types

import "math"

// Place is one stop of an itinerary. Lat/Lng are WGS84 decimal degrees and
// may be missing; such a place is kept in the list but never plotted.
type Place struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
	Address string   `json:"address,omitempty"`
}

// Route is an ordered itinerary. Order is visiting order.
type Route []Place

// Float returns a pointer to v, for building places in code.
func Float(v float64) *float64 {
	return &v
}

// Plottable reports whether the place carries usable coordinates.
func (p Place) Plottable() bool {
	if p.Lat == nil || p.Lng == nil {
		return false
	}
	lat, lng := *p.Lat, *p.Lng
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// IDs returns the place ids in route order.
func (r Route) IDs() []string {
	ids := make([]string, len(r))
	for i, p := range r {
		ids[i] = p.ID
	}
	return ids
}

// Index returns the position of the place with the given id, or -1.
func (r Route) Index(id string) int {
	for i, p := range r {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a copy that shares no backing array with r.
func (r Route) Clone() Route {
	if r == nil {
		return Route{}
	}
	out := make(Route, len(r))
	copy(out, r)
	return out
}
