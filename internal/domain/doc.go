// Package domain models EV charging-station status rows and the render pass
// that turns them into map markers.
//
// # Data Source
//
// Rows come from a slim CSV export of a charging network's station and port
// status, refreshed on a schedule by an upstream job. Each header cell becomes
// a column key; every value is kept as raw text. The export has changed shape
// over time, so the same semantic field can appear under several column names
// (e.g. "Lat", "lat" or "Latitude"). The alias tables in row.go list every
// known spelling in priority order and [Pick] resolves them.
//
// # Feed Conventions
//
// Missing values:
//
//	Empty cells, whitespace-only cells and the null spellings written by the
//	exporter ("null", "None", "NaN") are all treated as absent.
//
// Status columns:
//
//	station_label         label assigned by the fleet team, preferred when set
//	LastPortStatus        most recent port status, e.g. "AVAILABLE", "INUSE"
//	StationNetworkStatus  network reachability, e.g. "Reachable", "Unreachable"
//	status                legacy column from older exports
//
// Charger type:
//
//	"Charger type" is derived upstream from the station model ("Level 3",
//	"Level 2", "Unknown"). "Charger type (legend)" decorates it with the
//	station group, e.g. "Level 2 - Public Stations" or "Level 2 - Solar".
//
// Port aggregates:
//
//	ports_total, ports_available, ports_charging and ports_occupied are only
//	present on port-aggregate exports. Charging and occupied are merged into
//	a single "In Use" figure for display.
//
// # Status Vocabulary
//
// [NormalizeStatus] folds the upstream vocabulary into Available, In Use,
// Needs Service and Unreachable using ordered substring rules. Text that
// matches no rule is passed through verbatim and is never filtered.
package domain
