package mapview

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/couchcryptid/fleet-map/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rows() []domain.Row {
	return []domain.Row{
		{"stationID": "1:1", "stationName": "Depot A", "Lat": "42.0", "Long": "-74.0", "LastPortStatus": "AVAILABLE", "Charger type (legend)": "Level 3"},
		{"stationID": "1:2", "stationName": "Depot B", "Lat": "40.0", "Long": "-72.0", "LastPortStatus": "INUSE"},
	}
}

func TestLayer_RenderIdempotent(t *testing.T) {
	l := NewLayer()

	domain.Render(context.Background(), rows(), domain.NewFilterState(), l)
	first := l.Markers()
	firstView := l.Viewport()
	domain.Render(context.Background(), rows(), domain.NewFilterState(), l)

	assert.Equal(t, 2, l.Len())
	assert.Equal(t, first, l.Markers())
	assert.Equal(t, firstView, l.Viewport())
}

func TestLayer_FitBoundsPadsSpan(t *testing.T) {
	l := NewLayer()
	domain.Render(context.Background(), rows(), domain.NewFilterState(), l)

	v := l.Viewport()
	require.NotNil(t, v)
	assert.InDelta(t, 39.7, v.South, 1e-9)
	assert.InDelta(t, 42.3, v.North, 1e-9)
	assert.InDelta(t, -74.3, v.West, 1e-9)
	assert.InDelta(t, -71.7, v.East, 1e-9)
}

func TestLayer_SingleMarkerViewportContainsIt(t *testing.T) {
	l := NewLayer()
	domain.Render(context.Background(), rows()[:1], domain.NewFilterState(), l)

	v := l.Viewport()
	require.NotNil(t, v)
	assert.True(t, v.Contains(domain.Position{Lat: 42.0, Lon: -74.0}))
	assert.Equal(t, domain.Position{Lat: 42.0, Lon: -74.0}, v.Center())
}

func TestLayer_ZeroMarkersKeepsViewport(t *testing.T) {
	l := NewLayer()
	domain.Render(context.Background(), rows(), domain.NewFilterState(), l)
	before := l.Viewport()

	hideAll := domain.NewFilterState().With(domain.StatusAvailable, false).With(domain.StatusInUse, false)
	domain.Render(context.Background(), rows(), hideAll, l)

	assert.Zero(t, l.Len())
	assert.Equal(t, before, l.Viewport())
}

func TestLayer_NoViewportInitially(t *testing.T) {
	l := NewLayer()
	l.FitBounds(nil, 0.15)
	assert.Nil(t, l.Viewport())
}

func TestLayer_MarkersReturnsCopy(t *testing.T) {
	l := NewLayer()
	l.PlaceMarker(domain.Marker{Key: "a"})

	m := l.Markers()
	m[0].Key = "changed"

	assert.Equal(t, "a", l.Markers()[0].Key)
}

func TestLayer_GeoJSON(t *testing.T) {
	l := NewLayer()
	domain.Render(context.Background(), rows(), domain.NewFilterState(), l)

	fc := l.GeoJSON()
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)
	require.Len(t, fc.BBox, 4)

	f := fc.Features[0]
	assert.Equal(t, "1:1", f.ID)
	assert.Equal(t, [2]float64{-74.0, 42.0}, f.Geometry.Coordinates, "GeoJSON is lon,lat")
	assert.Equal(t, domain.StyleLevel3, f.Properties.Style)
	assert.Equal(t, domain.StyleLevel3.Color(), f.Properties.Color)

	data, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name":"Depot A"`)
	assert.Contains(t, string(data), `"status":"Available"`)
}

func TestLayer_GeoJSONEmpty(t *testing.T) {
	fc := NewLayer().GeoJSON()
	assert.Empty(t, fc.Features)
	assert.Nil(t, fc.BBox)

	data, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(data))
}

func TestLayer_ReplaceSwapsWholePass(t *testing.T) {
	l := NewLayer()
	l.PlaceMarker(domain.Marker{Key: "old"})
	view := domain.Bounds{South: 1, West: 2, North: 3, East: 4}

	l.Replace([]domain.Marker{{Key: "a"}, {Key: "b"}}, &view)

	markers, v := l.Snapshot()
	require.Len(t, markers, 2)
	assert.Equal(t, "a", markers[0].Key)
	require.NotNil(t, v)
	assert.Equal(t, view, *v)
}

func TestLayer_ReplaceWithoutViewportKeepsCurrent(t *testing.T) {
	l := NewLayer()
	view := domain.Bounds{South: 1, West: 2, North: 3, East: 4}
	l.Replace([]domain.Marker{{Key: "a"}}, &view)

	l.Replace(nil, nil)

	markers, v := l.Snapshot()
	assert.Empty(t, markers)
	require.NotNil(t, v)
	assert.Equal(t, view, *v)
}

func TestLayer_ReplaceCopiesInput(t *testing.T) {
	l := NewLayer()
	in := []domain.Marker{{Key: "a"}}
	view := domain.Bounds{North: 1}

	l.Replace(in, &view)
	in[0].Key = "changed"
	view.North = 99

	markers, v := l.Snapshot()
	assert.Equal(t, "a", markers[0].Key)
	assert.InDelta(t, 1.0, v.North, 0)
}
