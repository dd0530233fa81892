package domain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// BoundsPadding is the fraction of the marker span added on each side when
// the viewport is refit.
const BoundsPadding = 0.15

// MapLayer is the map provider the renderer draws into.
type MapLayer interface {
	PlaceMarker(m Marker)
	RemoveAllMarkers()
	FitBounds(positions []Position, padding float64)
}

// RenderResult summarizes one render pass.
type RenderResult struct {
	Rows                 int            `json:"rows"`
	Placed               int            `json:"placed"`
	SkippedNoCoordinates int            `json:"skipped_no_coordinates"`
	SkippedFiltered      int            `json:"skipped_filtered"`
	ByStatus             map[Status]int `json:"by_status"`
	ByStyle              map[Style]int  `json:"by_style"`
	Bounds               *Bounds        `json:"bounds,omitempty"`
	RenderedAt           time.Time      `json:"rendered_at"`
}

// RenderOption customizes a render pass.
type RenderOption func(*renderConfig)

type renderConfig struct {
	resolver AddressResolver
	logger   *slog.Logger
}

// WithAddressResolver enables reverse geocoding for rows without an address.
func WithAddressResolver(r AddressResolver, logger *slog.Logger) RenderOption {
	return func(c *renderConfig) {
		c.resolver = r
		if logger != nil {
			c.logger = logger
		}
	}
}

// Render places one marker per displayable row into layer, replacing any
// markers from a previous pass, and refits the viewport around them. Rows
// without finite coordinates and rows whose status is filtered out are
// skipped. The viewport is left untouched when nothing was placed.
func Render(ctx context.Context, rows []Row, filters FilterState, layer MapLayer, opts ...RenderOption) RenderResult {
	cfg := renderConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	layer.RemoveAllMarkers()

	result := RenderResult{
		Rows:     len(rows),
		ByStatus: make(map[Status]int),
		ByStyle:  make(map[Style]int),
	}
	positions := make([]Position, 0, len(rows))

	for _, row := range rows {
		marker, reason := buildMarker(ctx, row, filters, cfg)
		switch reason {
		case skipNoCoordinates:
			result.SkippedNoCoordinates++
			continue
		case skipFiltered:
			result.SkippedFiltered++
			continue
		}

		layer.PlaceMarker(marker)
		positions = append(positions, marker.Position)
		result.Placed++
		result.ByStatus[marker.Popup.Status]++
		result.ByStyle[marker.Style]++
	}

	if len(positions) > 0 {
		layer.FitBounds(positions, BoundsPadding)
		if b, ok := BoundsOf(positions); ok {
			padded := b.Pad(BoundsPadding)
			result.Bounds = &padded
		}
	}

	result.RenderedAt = clock.Now()
	return result
}

type skipReason int

const (
	skipNone skipReason = iota
	skipNoCoordinates
	skipFiltered
)

func buildMarker(ctx context.Context, row Row, filters FilterState, cfg renderConfig) (Marker, skipReason) {
	rawLat, hasLat := Pick(row, LatKeys...)
	rawLon, hasLon := Pick(row, LonKeys...)
	if !hasLat || !hasLon {
		return Marker{}, skipNoCoordinates
	}
	lat, okLat := parseFinite(rawLat)
	lon, okLon := parseFinite(rawLon)
	if !okLat || !okLon {
		return Marker{}, skipNoCoordinates
	}

	status := StatusOf(row)
	if !filters.Passes(status) {
		return Marker{}, skipFiltered
	}

	pos := Position{Lat: lat, Lon: lon}
	class := Classify(row)
	ports := PortsOf(row)
	fault, _ := Pick(row, "faultReason")
	updated, _ := Pick(row, "StatusTimestamp")

	return Marker{
		Key:            markerKey(row, pos),
		Position:       pos,
		Style:          class.Style(),
		Classification: class,
		Ports:          ports,
		Popup: Popup{
			Name:        displayName(row),
			Status:      status,
			PortSummary: ports.Summary(),
			Address:     resolveAddress(ctx, row, pos, cfg.resolver, cfg.logger),
			FaultReason: fault,
			UpdatedAt:   updated,
			Directions:  DirectionsFor(rawLat, rawLon),
		},
	}, skipNone
}

// displayName picks the station name, then its identifier, then a default.
func displayName(row Row) string {
	if name, ok := Pick(row, NameKeys...); ok {
		return name
	}
	if id, ok := Pick(row, IDKeys...); ok {
		return id
	}
	return DefaultSiteName
}

// markerKey identifies a marker within one render pass. Rows without a
// station identifier are keyed by their rounded position.
func markerKey(row Row, pos Position) string {
	if id, ok := Pick(row, IDKeys...); ok {
		return id
	}
	return fmt.Sprintf("%.5f,%.5f", pos.Lat, pos.Lon)
}
