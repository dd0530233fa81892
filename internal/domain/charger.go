package domain

import "strings"

// ChargerCategory is the power level of a station, independent of access.
type ChargerCategory string

const (
	CategoryLevel3      ChargerCategory = "Level 3"
	CategoryLevel2      ChargerCategory = "Level 2"
	CategoryLevel2Solar ChargerCategory = "Level 2 Solar"
)

// Style selects the marker icon.
type Style string

const (
	StylePublic      Style = "public"
	StyleLevel3      Style = "level3"
	StyleLevel2Solar Style = "level2solar"
	StyleLevel2      Style = "level2"
)

// Styles lists every marker style in legend order.
var Styles = []Style{StyleLevel3, StyleLevel2, StyleLevel2Solar, StylePublic}

// Color returns the marker fill color for the style.
func (s Style) Color() string {
	switch s {
	case StylePublic:
		return "#8e44ad"
	case StyleLevel3:
		return "#27ae60"
	case StyleLevel2Solar:
		return "#f1c40f"
	default:
		return "#2e86de"
	}
}

// Label is the legend caption for the style.
func (s Style) Label() string {
	switch s {
	case StylePublic:
		return "Public"
	case StyleLevel3:
		return string(CategoryLevel3)
	case StyleLevel2Solar:
		return string(CategoryLevel2Solar)
	default:
		return string(CategoryLevel2)
	}
}

// Classification is the charger category of a row plus the public flag.
type Classification struct {
	Category ChargerCategory `json:"category"`
	Public   bool            `json:"public"`
}

// Classify computes the category and the public flag of a row. Both are
// computed independently; the public flag only wins when choosing a style.
func Classify(row Row) Classification {
	return Classification{
		Category: CategoryOf(row),
		Public:   IsPublic(row),
	}
}

// IsPublic reports whether the legend marks the row as a public station.
func IsPublic(row Row) bool {
	legend, ok := Pick(row, LegendKeys...)
	return ok && strings.Contains(strings.ToLower(legend), "public stations")
}

// CategoryOf derives the charger category, defaulting to Level 2.
func CategoryOf(row Row) ChargerCategory {
	v, ok := Pick(row, ChargerTypeKeys...)
	if !ok {
		return CategoryLevel2
	}
	v = strings.ToLower(v)
	switch {
	case strings.Contains(v, "level 3"):
		return CategoryLevel3
	case strings.Contains(v, "solar"):
		return CategoryLevel2Solar
	default:
		return CategoryLevel2
	}
}

// Style maps the classification to a marker style.
func (c Classification) Style() Style {
	if c.Public {
		return StylePublic
	}
	switch c.Category {
	case CategoryLevel3:
		return StyleLevel3
	case CategoryLevel2Solar:
		return StyleLevel2Solar
	default:
		return StyleLevel2
	}
}
