// Package mapview holds the rendered map state served to browsers: the
// current marker set and the fitted viewport.
package mapview

import (
	"sync"

	"github.com/couchcryptid/fleet-map/internal/domain"
)

// Layer is an in-memory map layer. It implements domain.MapLayer for building
// a render pass, and Replace/Snapshot for publishing a finished pass to
// concurrent readers in one step.
type Layer struct {
	mu       sync.RWMutex
	markers  []domain.Marker
	viewport *domain.Bounds
}

// NewLayer returns an empty layer with no viewport.
func NewLayer() *Layer {
	return &Layer{}
}

func (l *Layer) PlaceMarker(m domain.Marker) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.markers = append(l.markers, m)
}

func (l *Layer) RemoveAllMarkers() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.markers = nil
}

// FitBounds sets the viewport to the padded bounding box of positions. An
// empty slice leaves the viewport unchanged.
func (l *Layer) FitBounds(positions []domain.Position, padding float64) {
	b, ok := domain.BoundsOf(positions)
	if !ok {
		return
	}
	padded := b.Pad(padding)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.viewport = &padded
}

// Replace swaps in a complete marker set and viewport under one lock. A nil
// viewport keeps the current one.
func (l *Layer) Replace(markers []domain.Marker, viewport *domain.Bounds) {
	cp := make([]domain.Marker, len(markers))
	copy(cp, markers)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.markers = cp
	if viewport != nil {
		v := *viewport
		l.viewport = &v
	}
}

// Snapshot returns the markers and the viewport as of the same moment.
func (l *Layer) Snapshot() ([]domain.Marker, *domain.Bounds) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Marker, len(l.markers))
	copy(out, l.markers)
	if l.viewport == nil {
		return out, nil
	}
	v := *l.viewport
	return out, &v
}

// Markers returns a copy of the placed markers in placement order.
func (l *Layer) Markers() []domain.Marker {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Marker, len(l.markers))
	copy(out, l.markers)
	return out
}

// Viewport returns the last fitted viewport, or nil if none was ever fitted.
func (l *Layer) Viewport() *domain.Bounds {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.viewport == nil {
		return nil
	}
	v := *l.viewport
	return &v
}

// Len returns the number of placed markers.
func (l *Layer) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.markers)
}
