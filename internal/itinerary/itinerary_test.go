package itinerary

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeopl/route-planner/internal/conversation"
	"github.com/yeopl/route-planner/internal/storage"
	"github.com/yeopl/route-planner/internal/types"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func route(ids ...string) types.Route {
	r := make(types.Route, len(ids))
	for i, id := range ids {
		r[i] = types.Place{ID: id, Name: "place " + id}
	}
	return r
}

func TestAdd(t *testing.T) {
	t.Run("appends new place", func(t *testing.T) {
		in := route("a", "b")
		out, err := Add(in, types.Place{ID: "c"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, out.IDs())
		assert.Equal(t, []string{"a", "b"}, in.IDs())
	})

	t.Run("duplicate leaves route unchanged", func(t *testing.T) {
		for n := 1; n <= 6; n++ {
			in := make(types.Route, 0, n)
			for i := 0; i < n; i++ {
				in = append(in, types.Place{ID: string(rune('a' + i))})
			}
			dup := in[rand.Intn(n)]
			out, err := Add(in, dup)
			assert.ErrorIs(t, err, types.ErrAlreadyPresent)
			assert.Equal(t, in.IDs(), out.IDs())
		}
	})
}

func TestRemove(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, Remove(route("a", "b", "c"), "b").IDs())
	assert.Equal(t, []string{"a", "b"}, Remove(route("a", "b"), "zz").IDs())
	assert.NotNil(t, Remove(route("a"), "a"))
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		want     []string
	}{
		{name: "last to first", from: "C", to: "A", want: []string{"C", "A", "B"}},
		{name: "first to last", from: "A", to: "C", want: []string{"B", "C", "A"}},
		{name: "adjacent forward", from: "A", to: "B", want: []string{"B", "A", "C"}},
		{name: "same position", from: "B", to: "B", want: []string{"A", "B", "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := route("A", "B", "C")
			out, ok := Reorder(in, tt.from, tt.to)
			require.True(t, ok)
			assert.Equal(t, tt.want, out.IDs())
			assert.Equal(t, []string{"A", "B", "C"}, in.IDs(), "input must not change")
		})
	}

	t.Run("missing id", func(t *testing.T) {
		out, ok := Reorder(route("A", "B"), "A", "Z")
		assert.False(t, ok)
		assert.Equal(t, []string{"A", "B"}, out.IDs())
	})
}

func TestReorder_IsPermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 200; iter++ {
		n := 1 + rng.Intn(8)
		ids := make([]string, n)
		for i := range ids {
			ids[i] = string(rune('a' + i))
		}
		in := route(ids...)
		from, to := rng.Intn(n), rng.Intn(n)

		out, ok := Reorder(in, ids[from], ids[to])
		require.True(t, ok)

		before, after := append([]string(nil), in.IDs()...), append([]string(nil), out.IDs()...)
		sort.Strings(before)
		sort.Strings(after)
		assert.Equal(t, before, after)
		assert.Equal(t, to, out.Index(ids[from]))
	}
}

func newStore(t *testing.T) (*Store, *conversation.Store) {
	t.Helper()
	conversations := conversation.NewStore(storage.NewMemoryKV(), setupTestLogger())
	conversations.Load(context.Background())
	return NewStore(conversations, setupTestLogger()), conversations
}

func TestStore_AddTwice(t *testing.T) {
	ctx := context.Background()
	s, conversations := newStore(t)

	x := types.Place{ID: "x", Name: "남산"}
	_, err := s.Add(ctx, x)
	require.NoError(t, err)
	got, err := s.Add(ctx, x)
	assert.ErrorIs(t, err, types.ErrAlreadyPresent)
	assert.Equal(t, []string{"x"}, got.IDs())

	active, _ := conversations.Active()
	assert.Equal(t, []string{"x"}, active.Route.IDs())
}

func TestStore_WritesThroughToActiveConversation(t *testing.T) {
	ctx := context.Background()
	s, conversations := newStore(t)

	_, err := s.SetAll(ctx, route("A", "B", "C"))
	require.NoError(t, err)

	got, ok, err := s.Reorder(ctx, "C", "A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"C", "A", "B"}, got.IDs())

	got, ok, err = s.Reorder(ctx, "C", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"C", "A", "B"}, got.IDs())

	_, err = s.Remove(ctx, "A")
	require.NoError(t, err)

	id, current, err := s.Current()
	require.NoError(t, err)
	active, _ := conversations.Active()
	assert.Equal(t, active.ID, id)
	assert.Equal(t, []string{"C", "B"}, current.IDs())
	assert.Equal(t, []string{"C", "B"}, active.Route.IDs())
}

func TestStore_FollowsSelection(t *testing.T) {
	ctx := context.Background()
	s, conversations := newStore(t)
	first, _ := conversations.Active()
	_, _ = s.SetAll(ctx, route("a"))

	conversations.Create(ctx)
	_, current, _ := s.Current()
	assert.Empty(t, current)

	conversations.Select(ctx, first.ID)
	_, current, _ = s.Current()
	assert.Equal(t, []string{"a"}, current.IDs())
}

func TestPlot(t *testing.T) {
	t.Run("numbers follow list position and skip unplottable places", func(t *testing.T) {
		r := types.Route{
			{ID: "a", Name: "경복궁", Lat: types.Float(37.5796), Lng: types.Float(126.977)},
			{ID: "b", Name: "좌표 없음"},
			{ID: "c", Name: "남산", Lat: types.Float(37.5512), Lng: types.Float(126.9882)},
			{ID: "d", Name: "잘못된 좌표", Lat: types.Float(math.NaN()), Lng: types.Float(126.9)},
		}
		view := Plot(r)

		require.Len(t, view.Markers, 2)
		assert.Equal(t, 1, view.Markers[0].Number)
		assert.Equal(t, 3, view.Markers[1].Number)
		assert.Equal(t, []string{"b", "d"}, view.Unplotted)
		assert.Len(t, view.Path, 2)
		require.NotNil(t, view.Bounds)
		assert.Equal(t, types.LatLng{Lat: 37.5512, Lng: 126.977}, view.Bounds.SouthWest)
		assert.Equal(t, types.LatLng{Lat: 37.5796, Lng: 126.9882}, view.Bounds.NorthEast)
		assert.InDelta(t, 37.5654, view.Center.Lat, 1e-9)
		assert.Len(t, view.Route, 4)
		assert.False(t, view.UsedDefault)
	})

	t.Run("single point has bounds but no path", func(t *testing.T) {
		view := Plot(types.Route{{ID: "a", Lat: types.Float(35.1), Lng: types.Float(129.0)}})
		assert.Empty(t, view.Path)
		require.NotNil(t, view.Bounds)
		assert.Equal(t, types.LatLng{Lat: 35.1, Lng: 129.0}, view.Center)
	})

	t.Run("nothing plottable", func(t *testing.T) {
		view := Plot(route("a", "b"))
		assert.Empty(t, view.Markers)
		assert.Nil(t, view.Bounds)
		assert.Equal(t, DefaultCenter, view.Center)
	})

	t.Run("empty route falls back to defaults", func(t *testing.T) {
		view := PlotOrDefault(types.Route{})
		assert.True(t, view.UsedDefault)
		require.Len(t, view.Markers, 2)
		assert.Equal(t, "광화문", view.Markers[0].Place.Name)
		assert.Equal(t, "코엑스", view.Markers[1].Place.Name)
	})
}
