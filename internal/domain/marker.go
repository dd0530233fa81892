package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Position is a WGS-84 coordinate pair.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds is a lat/lon bounding box.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// BoundsOf returns the smallest box containing every position. ok is false
// for an empty slice.
func BoundsOf(positions []Position) (b Bounds, ok bool) {
	if len(positions) == 0 {
		return Bounds{}, false
	}
	b = Bounds{South: math.Inf(1), West: math.Inf(1), North: math.Inf(-1), East: math.Inf(-1)}
	for _, p := range positions {
		b.South = math.Min(b.South, p.Lat)
		b.North = math.Max(b.North, p.Lat)
		b.West = math.Min(b.West, p.Lon)
		b.East = math.Max(b.East, p.Lon)
	}
	return b, true
}

// Pad grows the box by ratio of its span on each side.
func (b Bounds) Pad(ratio float64) Bounds {
	dLat := (b.North - b.South) * ratio
	dLon := (b.East - b.West) * ratio
	return Bounds{
		South: b.South - dLat,
		West:  b.West - dLon,
		North: b.North + dLat,
		East:  b.East + dLon,
	}
}

// Contains reports whether p lies inside the box, edges included.
func (b Bounds) Contains(p Position) bool {
	return p.Lat >= b.South && p.Lat <= b.North && p.Lon >= b.West && p.Lon <= b.East
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Position {
	return Position{Lat: (b.South + b.North) / 2, Lon: (b.West + b.East) / 2}
}

// Directions holds outbound navigation links for a marker.
type Directions struct {
	Mobile string `json:"mobile"`
	Web    string `json:"web"`
}

// DirectionsFor builds navigation links from the raw coordinate text of a
// row, so the links carry exactly what the feed published. Callers pass text
// that already parsed as a finite float, so no escaping is needed.
func DirectionsFor(rawLat, rawLon string) Directions {
	dest := rawLat + "," + rawLon
	return Directions{
		Mobile: "geo:" + dest + "?q=" + dest,
		Web:    "https://www.google.com/maps/dir/?api=1&destination=" + dest,
	}
}

// Ports is the port aggregate of a row.
type Ports struct {
	Total     string  `json:"total,omitempty"`
	Available string  `json:"available,omitempty"`
	InUse     float64 `json:"in_use"`
}

// Summary renders the one-line port summary, or "" when the total is absent.
func (p Ports) Summary() string {
	if p.Total == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(p.Total)
	sb.WriteString(" total")
	if p.Available != "" {
		fmt.Fprintf(&sb, " (%s Available | %s In Use)", p.Available, formatCount(p.InUse))
	}
	return sb.String()
}

// PortsOf reads the port aggregate columns. Charging and occupied ports are
// merged into one in-use figure.
func PortsOf(row Row) Ports {
	total, _ := Pick(row, colPortsTotal)
	available, _ := Pick(row, colPortsAvailable)
	return Ports{
		Total:     total,
		Available: available,
		InUse:     countOrZero(row, colPortsCharging) + countOrZero(row, colPortsOccupied),
	}
}

func formatCount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Popup is the content bound to a marker.
type Popup struct {
	Name        string     `json:"name"`
	Status      Status     `json:"status,omitempty"`
	PortSummary string     `json:"port_summary,omitempty"`
	Address     string     `json:"address,omitempty"`
	FaultReason string     `json:"fault_reason,omitempty"`
	UpdatedAt   string     `json:"updated_at,omitempty"`
	Directions  Directions `json:"directions"`
}

// Marker is a placed, styled, clickable map point.
type Marker struct {
	Key            string         `json:"key"`
	Position       Position       `json:"position"`
	Style          Style          `json:"style"`
	Classification Classification `json:"classification"`
	Ports          Ports          `json:"ports"`
	Popup          Popup          `json:"popup"`
}
