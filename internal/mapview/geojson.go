package mapview

import "github.com/couchcryptid/fleet-map/internal/domain"

// FeatureCollection is a GeoJSON feature collection of markers.
type FeatureCollection struct {
	Type     string    `json:"type"`
	BBox     []float64 `json:"bbox,omitempty"`
	Features []Feature `json:"features"`
}

// Feature is a GeoJSON point feature for one marker.
type Feature struct {
	Type       string            `json:"type"`
	ID         string            `json:"id"`
	Geometry   Geometry          `json:"geometry"`
	Properties FeatureProperties `json:"properties"`
}

// Geometry is a GeoJSON point. Coordinates are [lon, lat].
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// FeatureProperties carries the popup and style of a marker.
type FeatureProperties struct {
	Style    domain.Style           `json:"style"`
	Color    string                 `json:"color"`
	Category domain.ChargerCategory `json:"category"`
	Public   bool                   `json:"public"`
	domain.Popup
}

// GeoJSON renders the current markers as a feature collection. The bbox is
// the fitted viewport in [west, south, east, north] order.
func (l *Layer) GeoJSON() FeatureCollection {
	markers, viewport := l.Snapshot()
	fc := FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]Feature, 0, len(markers)),
	}
	if viewport != nil && len(markers) > 0 {
		fc.BBox = []float64{viewport.West, viewport.South, viewport.East, viewport.North}
	}
	for _, m := range markers {
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			ID:   m.Key,
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: [2]float64{m.Position.Lon, m.Position.Lat},
			},
			Properties: FeatureProperties{
				Style:    m.Style,
				Color:    m.Style.Color(),
				Category: m.Classification.Category,
				Public:   m.Classification.Public,
				Popup:    m.Popup,
			},
		})
	}
	return fc
}
