package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/couchcryptid/fleet-map/internal/domain"
	"gopkg.in/yaml.v3"
)

// MapConfig controls how the map page is presented.
type MapConfig struct {
	Title          string   `yaml:"title"`
	TileURL        string   `yaml:"tile_url"`
	Attribution    string   `yaml:"attribution"`
	MaxZoom        int      `yaml:"max_zoom"`
	HiddenStatuses []string `yaml:"hidden_statuses"`
}

// DefaultMapConfig uses OpenStreetMap tiles with every status shown.
func DefaultMapConfig() MapConfig {
	return MapConfig{
		Title:       "Fleet Charging Map",
		TileURL:     "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors",
		MaxZoom:     18,
	}
}

// LoadFile overlays the non-empty fields of a YAML file onto m.
func (m *MapConfig) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read MAP_CONFIG_FILE: %w", err)
	}
	var fc MapConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse MAP_CONFIG_FILE: %w", err)
	}
	if fc.Title != "" {
		m.Title = fc.Title
	}
	if fc.TileURL != "" {
		m.TileURL = fc.TileURL
	}
	if fc.Attribution != "" {
		m.Attribution = fc.Attribution
	}
	if fc.MaxZoom > 0 {
		m.MaxZoom = fc.MaxZoom
	}
	if len(fc.HiddenStatuses) > 0 {
		m.HiddenStatuses = fc.HiddenStatuses
	}
	return nil
}

// InitialFilters returns the filter state the service starts with.
func (m MapConfig) InitialFilters() domain.FilterState {
	f := domain.NewFilterState()
	for _, s := range m.HiddenStatuses {
		f = f.With(domain.Status(s), false)
	}
	return f
}

func (m MapConfig) validate() error {
	if m.TileURL == "" {
		return errors.New("map tile_url is required")
	}
	for _, s := range m.HiddenStatuses {
		if !domain.Status(s).IsKnown() {
			return fmt.Errorf("map hidden_statuses: %w: %q", domain.ErrUnknownFilterStatus, s)
		}
	}
	return nil
}
