package itinerary

import "github.com/yeopl/route-planner/internal/types"

// DefaultCenter is where the map opens when nothing is plotted.
var DefaultCenter = types.LatLng{Lat: 37.5665, Lng: 126.978}

// DefaultMarkers are shown when the handed-off route is empty.
func DefaultMarkers() types.Route {
	return types.Route{
		{ID: "d", Name: "광화문", Lat: types.Float(37.5759), Lng: types.Float(126.9768)},
		{ID: "e", Name: "코엑스", Lat: types.Float(37.5127), Lng: types.Float(127.0589)},
	}
}

// Plot projects a route onto the map. Marker numbers follow list position,
// so a skipped place leaves a gap. The path is only drawn with two or more
// points; bounds need one.
func Plot(route types.Route) types.MapView {
	view := types.MapView{
		Route:   route.Clone(),
		Markers: []types.Marker{},
		Path:    []types.LatLng{},
		Center:  DefaultCenter,
	}

	points := make([]types.LatLng, 0, len(route))
	for i, p := range route {
		if !p.Plottable() {
			view.Unplotted = append(view.Unplotted, p.ID)
			continue
		}
		pos := types.LatLng{Lat: *p.Lat, Lng: *p.Lng}
		points = append(points, pos)
		view.Markers = append(view.Markers, types.Marker{Number: i + 1, Place: p, Position: pos})
	}

	if len(points) > 1 {
		view.Path = points
	}
	if len(points) > 0 {
		b := boundsOf(points)
		view.Bounds = &b
		view.Center = types.LatLng{
			Lat: (b.SouthWest.Lat + b.NorthEast.Lat) / 2,
			Lng: (b.SouthWest.Lng + b.NorthEast.Lng) / 2,
		}
	}
	return view
}

// PlotOrDefault plots route, falling back to the default markers when it is
// empty.
func PlotOrDefault(route types.Route) types.MapView {
	if len(route) == 0 {
		view := Plot(DefaultMarkers())
		view.UsedDefault = true
		return view
	}
	return Plot(route)
}

func boundsOf(points []types.LatLng) types.Bounds {
	b := types.Bounds{SouthWest: points[0], NorthEast: points[0]}
	for _, pt := range points[1:] {
		b.SouthWest.Lat = min(b.SouthWest.Lat, pt.Lat)
		b.SouthWest.Lng = min(b.SouthWest.Lng, pt.Lng)
		b.NorthEast.Lat = max(b.NorthEast.Lat, pt.Lat)
		b.NorthEast.Lng = max(b.NorthEast.Lng, pt.Lng)
	}
	return b
}
