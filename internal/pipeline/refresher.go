package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/fleet-map/internal/adapter/feed"
	"github.com/couchcryptid/fleet-map/internal/domain"
	"github.com/couchcryptid/fleet-map/internal/mapview"
	"github.com/couchcryptid/fleet-map/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Layer is the live map layer readers see. Each render pass is built on a
// private staging layer and handed over whole through Replace.
type Layer interface {
	Replace(markers []domain.Marker, viewport *domain.Bounds)
}

// SnapshotPublisher receives the marker set after every render pass.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, markers []domain.Marker, renderedAt time.Time) error
}

// Status describes the outcome of the most recent refresh.
type Status struct {
	LastAttempt time.Time           `json:"last_attempt"`
	LastSuccess time.Time           `json:"last_success"`
	Source      string              `json:"source,omitempty"`
	DataAsOf    string              `json:"data_as_of,omitempty"`
	Error       string              `json:"error,omitempty"`
	Render      domain.RenderResult `json:"render"`
}

// Refresher runs the fetch-parse-render cycle. Fetches happen on a ticker and
// on Trigger; filter changes re-render the cached rows without refetching.
// Render passes are serialized, so the layer only ever has one writer.
type Refresher struct {
	loader    feed.Loader
	layer     Layer
	logger    *slog.Logger
	metrics   *observability.Metrics
	publisher SnapshotPublisher
	resolver  domain.AddressResolver
	clock     clockwork.Clock
	interval  time.Duration
	trigger   chan struct{}

	renderMu sync.Mutex
	mu       sync.RWMutex
	rows     []domain.Row
	filters  domain.FilterState
	status   Status
	lastErr  error
	ready    bool
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithPublisher publishes every render pass.
func WithPublisher(p SnapshotPublisher) Option {
	return func(r *Refresher) { r.publisher = p }
}

// WithAddressResolver enables popup address lookups.
func WithAddressResolver(a domain.AddressResolver) Option {
	return func(r *Refresher) { r.resolver = a }
}

// WithClock replaces the real clock, for tests.
func WithClock(c clockwork.Clock) Option {
	return func(r *Refresher) { r.clock = c }
}

// WithFilters sets the initial filter state.
func WithFilters(f domain.FilterState) Option {
	return func(r *Refresher) { r.filters = f }
}

// New creates a Refresher that reloads the feed every interval.
func New(loader feed.Loader, layer Layer, logger *slog.Logger, metrics *observability.Metrics, interval time.Duration, opts ...Option) *Refresher {
	r := &Refresher{
		loader:   loader,
		layer:    layer,
		logger:   logger,
		metrics:  metrics,
		clock:    clockwork.NewRealClock(),
		interval: interval,
		trigger:  make(chan struct{}, 1),
		filters:  domain.NewFilterState(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run refreshes immediately, then on every tick or trigger until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Info("refresher started", "interval", r.interval)
	r.metrics.RefresherRunning.Set(1)
	defer r.metrics.RefresherRunning.Set(0)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	_ = r.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			_ = r.Refresh(ctx)
		case <-r.trigger:
			_ = r.Refresh(ctx)
		}
	}
}

// Trigger requests an out-of-schedule refresh. Requests made while one is
// already pending are coalesced.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Refresh performs one load attempt followed by a render pass. A failed load
// is not retried: the map is cleared and the error is kept as the current
// state until the next attempt.
func (r *Refresher) Refresh(ctx context.Context) error {
	start := r.clock.Now()
	snap, err := r.loader.Load(ctx)
	r.metrics.FeedDuration.Observe(r.clock.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Error("feed refresh failed", "error", err)
		r.metrics.Refreshes.WithLabelValues("error").Inc()
		r.fail(start, err)
		return fmt.Errorf("refresh: %w", err)
	}

	r.mu.Lock()
	r.rows = snap.Rows
	r.status.LastAttempt = start
	r.status.Source = snap.Source
	r.status.DataAsOf = snap.DataAsOf
	r.mu.Unlock()

	r.metrics.FeedRows.Set(float64(len(snap.Rows)))
	result := r.render(ctx)

	r.mu.Lock()
	r.status.LastSuccess = start
	r.status.Error = ""
	r.lastErr = nil
	r.ready = true
	r.mu.Unlock()

	r.metrics.Refreshes.WithLabelValues("success").Inc()
	r.metrics.LastRefresh.Set(float64(start.Unix()))
	r.logger.Info("feed refreshed",
		"rows", result.Rows,
		"markers", result.Placed,
		"skipped_no_coordinates", result.SkippedNoCoordinates,
		"skipped_filtered", result.SkippedFiltered,
		"data_as_of", snap.DataAsOf,
	)
	return nil
}

// fail clears the map and records err as the current state. Rows are dropped
// under the render lock so a concurrent filter change cannot redraw them.
func (r *Refresher) fail(at time.Time, err error) {
	r.renderMu.Lock()
	defer r.renderMu.Unlock()

	r.mu.Lock()
	r.rows = nil
	r.lastErr = err
	r.ready = false
	r.status.LastAttempt = at
	r.status.Error = err.Error()
	r.status.Render = domain.RenderResult{}
	r.mu.Unlock()

	r.layer.Replace(nil, nil)
	for _, s := range domain.Styles {
		r.metrics.Markers.WithLabelValues(string(s)).Set(0)
	}
}

// SetFilters replaces the filter state and re-renders the cached rows
// synchronously.
func (r *Refresher) SetFilters(ctx context.Context, f domain.FilterState) domain.RenderResult {
	r.mu.Lock()
	r.filters = f
	r.mu.Unlock()
	return r.render(ctx)
}

// ApplyFilters merges updates into the current filter state and re-renders.
// The merge is atomic, so concurrent partial updates are never lost. An
// unknown status rejects the whole update.
func (r *Refresher) ApplyFilters(ctx context.Context, updates map[string]bool) (domain.FilterState, domain.RenderResult, error) {
	r.mu.Lock()
	next, err := r.filters.Apply(updates)
	if err != nil {
		r.mu.Unlock()
		return nil, domain.RenderResult{}, err
	}
	r.filters = next
	r.mu.Unlock()
	return next, r.render(ctx), nil
}

// Filters returns the current filter state.
func (r *Refresher) Filters() domain.FilterState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filters
}

// Status returns the outcome of the most recent refresh.
func (r *Refresher) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// CheckReadiness returns nil once the feed has loaded and the latest attempt
// succeeded.
func (r *Refresher) CheckReadiness(_ context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.ready {
		return nil
	}
	if r.lastErr != nil {
		return fmt.Errorf("last refresh failed: %w", r.lastErr)
	}
	return errors.New("feed has not been loaded yet")
}

func (r *Refresher) render(ctx context.Context) domain.RenderResult {
	r.renderMu.Lock()
	defer r.renderMu.Unlock()

	r.mu.RLock()
	rows, filters := r.rows, r.filters
	r.mu.RUnlock()

	var opts []domain.RenderOption
	if r.resolver != nil {
		opts = append(opts, domain.WithAddressResolver(r.resolver, r.logger))
	}
	staging := mapview.NewLayer()
	result := domain.Render(ctx, rows, filters, staging, opts...)
	markers, viewport := staging.Snapshot()
	r.layer.Replace(markers, viewport)

	r.metrics.RowsSkipped.WithLabelValues("coordinates").Add(float64(result.SkippedNoCoordinates))
	r.metrics.RowsSkipped.WithLabelValues("filtered").Add(float64(result.SkippedFiltered))
	for _, s := range domain.Styles {
		r.metrics.Markers.WithLabelValues(string(s)).Set(float64(result.ByStyle[s]))
	}

	r.mu.Lock()
	r.status.Render = result
	r.mu.Unlock()

	r.publish(ctx, markers, result)
	return result
}

func (r *Refresher) publish(ctx context.Context, markers []domain.Marker, result domain.RenderResult) {
	if r.publisher == nil || len(markers) == 0 {
		return
	}
	if err := r.publisher.PublishSnapshot(ctx, markers, result.RenderedAt); err != nil {
		r.logger.Warn("snapshot publish failed", "error", err, "markers", len(markers))
		r.metrics.SnapshotErrors.Inc()
		return
	}
	r.metrics.SnapshotsPublished.Inc()
}
