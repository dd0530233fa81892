package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/fleet-map/internal/config"
	"github.com/couchcryptid/fleet-map/internal/domain"
	"github.com/couchcryptid/fleet-map/internal/mapview"
	"github.com/couchcryptid/fleet-map/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxFilterBody = 4 << 10

//go:embed page.html.tmpl
var pageSource string

var pageTemplate = template.Must(template.New("page").Parse(pageSource))

// MapController is the refresh cycle as seen by the HTTP surface.
type MapController interface {
	sharedobs.ReadinessChecker
	Status() pipeline.Status
	Filters() domain.FilterState
	ApplyFilters(ctx context.Context, updates map[string]bool) (domain.FilterState, domain.RenderResult, error)
}

// MarkerView is a read-only view of the rendered map layer.
type MarkerView interface {
	Snapshot() ([]domain.Marker, *domain.Bounds)
	GeoJSON() mapview.FeatureCollection
}

// Server exposes the map page, the marker API, the filter control, and the
// health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	ctrl       MapController
	view       MarkerView
	page       pageData
	logger     *slog.Logger
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(addr string, ctrl MapController, view MarkerView, mapCfg config.MapConfig, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		ctrl:   ctrl,
		view:   view,
		page:   newPageData(mapCfg),
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ctrl))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.HandleFunc("GET /api/markers", s.handleMarkers)
	mux.HandleFunc("GET /api/stations.geojson", s.handleGeoJSON)
	mux.HandleFunc("GET /api/filters", s.handleGetFilters)
	mux.HandleFunc("PUT /api/filters", s.handlePutFilters)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type markersResponse struct {
	Markers  []domain.Marker `json:"markers"`
	Viewport *domain.Bounds  `json:"viewport"`
	Meta     markersMeta     `json:"meta"`
}

type markersMeta struct {
	pipeline.Status
	Count   int                `json:"count"`
	Filters domain.FilterState `json:"filters"`
}

func (s *Server) handleMarkers(w http.ResponseWriter, _ *http.Request) {
	markers, viewport := s.view.Snapshot()
	sharedobs.WriteJSON(w, http.StatusOK, markersResponse{
		Markers:  markers,
		Viewport: viewport,
		Meta: markersMeta{
			Status:  s.ctrl.Status(),
			Count:   len(markers),
			Filters: s.ctrl.Filters(),
		},
	})
}

func (s *Server) handleGeoJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(s.view.GeoJSON()) //nolint:errcheck // client may have gone away
}

func (s *Server) handleGetFilters(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.ctrl.Filters())
}

type filtersResponse struct {
	Filters domain.FilterState  `json:"filters"`
	Render  domain.RenderResult `json:"render"`
}

func (s *Server) handlePutFilters(w http.ResponseWriter, r *http.Request) {
	var updates map[string]bool
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFilterBody))
	if err := dec.Decode(&updates); err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter body: "+err.Error())
		return
	}

	next, result, err := s.ctrl.ApplyFilters(r.Context(), updates)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrUnknownFilterStatus) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	s.logger.Info("filters updated", "filters", next, "placed", result.Placed)
	sharedobs.WriteJSON(w, http.StatusOK, filtersResponse{Filters: next, Render: result})
}

func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, s.page); err != nil {
		s.logger.Error("render map page", "error", err)
	}
}

type legendEntry struct {
	Style domain.Style
	Label string
	Color string
}

type pageData struct {
	Title       string
	TileURL     string
	Attribution string
	MaxZoom     int
	Legend      []legendEntry
	Statuses    []domain.Status
}

func newPageData(cfg config.MapConfig) pageData {
	legend := make([]legendEntry, 0, len(domain.Styles))
	for _, st := range domain.Styles {
		legend = append(legend, legendEntry{Style: st, Label: st.Label(), Color: st.Color()})
	}
	return pageData{
		Title:       cfg.Title,
		TileURL:     cfg.TileURL,
		Attribution: cfg.Attribution,
		MaxZoom:     cfg.MaxZoom,
		Legend:      legend,
		Statuses:    domain.KnownStatuses,
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
