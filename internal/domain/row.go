package domain

import (
	"math"
	"strconv"
	"strings"
)

// Row is one parsed CSV record: column name to raw cell text.
type Row map[string]string

// Column alias tables, in priority order.
var (
	LatKeys         = []string{"Lat", "lat", "Latitude"}
	LonKeys         = []string{"Long", "Longitude", "lon", "long", "Lng", "lng"}
	NameKeys        = []string{"stationName", "name", "Location", "Site"}
	IDKeys          = []string{"stationID", "station_id", "StationID", "id"}
	StatusKeys      = []string{"station_label", "LastPortStatus", "StationNetworkStatus", "status"}
	LegendKeys      = []string{"Charger type (legend)"}
	ChargerTypeKeys = []string{"Charger type (legend)", "Charger type"}
)

// Port aggregate columns.
const (
	colPortsTotal     = "ports_total"
	colPortsAvailable = "ports_available"
	colPortsCharging  = "ports_charging"
	colPortsOccupied  = "ports_occupied"
)

// DefaultSiteName is shown when a row has neither a name nor an identifier.
const DefaultSiteName = "EV Site"

// Pick returns the first value among keys that is present and not empty,
// with surrounding whitespace trimmed. Null spellings written by the exporter
// count as empty.
func Pick(row Row, keys ...string) (string, bool) {
	v, ok := PickRaw(row, keys...)
	return strings.TrimSpace(v), ok
}

// PickRaw is Pick without the trim: the chosen value is returned exactly as
// the feed wrote it. Presence is still judged on the trimmed text.
func PickRaw(row Row, keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := row[k]
		if !ok || isNullText(strings.TrimSpace(v)) {
			continue
		}
		return v, true
	}
	return "", false
}

// PickFloat picks a value and parses it as a finite float.
func PickFloat(row Row, keys ...string) (float64, bool) {
	v, ok := Pick(row, keys...)
	if !ok {
		return 0, false
	}
	return parseFinite(v)
}

func isNullText(v string) bool {
	switch v {
	case "", "null", "NULL", "None", "NaN", "nan":
		return true
	default:
		return false
	}
}

func parseFinite(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// countOrZero parses a port count, treating absent or non-numeric as zero.
func countOrZero(row Row, key string) float64 {
	f, ok := PickFloat(row, key)
	if !ok {
		return 0
	}
	return f
}
