package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/fleet-map/internal/adapter/feed"
	"github.com/couchcryptid/fleet-map/internal/domain"
	"github.com/couchcryptid/fleet-map/internal/mapview"
	"github.com/couchcryptid/fleet-map/internal/observability"
	"github.com/couchcryptid/fleet-map/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockLoader struct {
	mu    sync.Mutex
	snap  feed.Snapshot
	err   error
	calls atomic.Int64
}

func (m *mockLoader) Load(_ context.Context) (feed.Snapshot, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, m.err
}

func (m *mockLoader) set(snap feed.Snapshot, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap, m.err = snap, err
}

type mockPublisher struct {
	mu        sync.Mutex
	snapshots [][]domain.Marker
	err       error
}

func (m *mockPublisher) PublishSnapshot(_ context.Context, markers []domain.Marker, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, markers)
	return m.err
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func testRows() []domain.Row {
	return []domain.Row{
		{"stationName": "free", "Lat": "42.65", "Long": "-73.75", "LastPortStatus": "AVAILABLE"},
		{"stationName": "busy", "Lat": "40.71", "Long": "-74.00", "LastPortStatus": "INUSE"},
		{"stationName": "lost", "LastPortStatus": "AVAILABLE"},
	}
}

// --- tests ---

func TestRefresher_Refresh_RendersFeed(t *testing.T) {
	loader := &mockLoader{snap: feed.Snapshot{Rows: testRows(), DataAsOf: "2025-03-03T12:00:00+00:00", Source: "test"}}
	layer := mapview.NewLayer()
	metrics := newTestMetrics()
	r := pipeline.New(loader, layer, slog.Default(), metrics, time.Minute)

	require.NoError(t, r.Refresh(context.Background()))

	assert.Equal(t, 2, layer.Len())
	require.NotNil(t, layer.Viewport())
	require.NoError(t, r.CheckReadiness(context.Background()))

	st := r.Status()
	assert.Equal(t, "2025-03-03T12:00:00+00:00", st.DataAsOf)
	assert.Equal(t, "test", st.Source)
	assert.Empty(t, st.Error)
	assert.Equal(t, 2, st.Render.Placed)
	assert.Equal(t, 1, st.Render.SkippedNoCoordinates)

	assert.InDelta(t, 3.0, testutil.ToFloat64(metrics.FeedRows), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.Refreshes.WithLabelValues("success")), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.Markers.WithLabelValues(string(domain.StyleLevel2))), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.RowsSkipped.WithLabelValues("coordinates")), 0)
}

func TestRefresher_NotReadyBeforeFirstLoad(t *testing.T) {
	r := pipeline.New(&mockLoader{}, mapview.NewLayer(), slog.Default(), newTestMetrics(), time.Minute)
	err := r.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not been loaded")
}

func TestRefresher_FetchFailureClearsMap(t *testing.T) {
	loader := &mockLoader{snap: feed.Snapshot{Rows: testRows()}}
	layer := mapview.NewLayer()
	metrics := newTestMetrics()
	r := pipeline.New(loader, layer, slog.Default(), metrics, time.Minute)

	require.NoError(t, r.Refresh(context.Background()))
	require.Equal(t, 2, layer.Len())

	loader.set(feed.Snapshot{}, errors.New("feed error: status 503"))
	err := r.Refresh(context.Background())
	require.Error(t, err)

	assert.Zero(t, layer.Len(), "failed load leaves an empty map")
	assert.Equal(t, int64(2), loader.calls.Load(), "no retry within one attempt")

	readyErr := r.CheckReadiness(context.Background())
	require.Error(t, readyErr)
	assert.Contains(t, readyErr.Error(), "503")
	assert.Contains(t, r.Status().Error, "503")
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.Refreshes.WithLabelValues("error")), 0)

	// Filter changes after a failure keep the map empty.
	r.SetFilters(context.Background(), domain.NewFilterState())
	assert.Zero(t, layer.Len())

	// The next attempt recovers.
	loader.set(feed.Snapshot{Rows: testRows()}, nil)
	require.NoError(t, r.Refresh(context.Background()))
	assert.Equal(t, 2, layer.Len())
	require.NoError(t, r.CheckReadiness(context.Background()))
}

func TestRefresher_SetFiltersRerendersWithoutFetch(t *testing.T) {
	loader := &mockLoader{snap: feed.Snapshot{Rows: testRows()}}
	layer := mapview.NewLayer()
	r := pipeline.New(loader, layer, slog.Default(), newTestMetrics(), time.Minute)
	require.NoError(t, r.Refresh(context.Background()))

	result := r.SetFilters(context.Background(), r.Filters().With(domain.StatusInUse, false))

	assert.Equal(t, 1, result.Placed)
	assert.Equal(t, 1, result.SkippedFiltered)
	require.Equal(t, 1, layer.Len())
	assert.Equal(t, "free", layer.Markers()[0].Popup.Name)
	assert.False(t, r.Filters().Passes(domain.StatusInUse))
	assert.Equal(t, int64(1), loader.calls.Load())
}

func TestRefresher_InitialFilters(t *testing.T) {
	loader := &mockLoader{snap: feed.Snapshot{Rows: testRows()}}
	layer := mapview.NewLayer()
	r := pipeline.New(loader, layer, slog.Default(), newTestMetrics(), time.Minute,
		pipeline.WithFilters(domain.NewFilterState().With(domain.StatusAvailable, false)))

	require.NoError(t, r.Refresh(context.Background()))
	require.Equal(t, 1, layer.Len())
	assert.Equal(t, "busy", layer.Markers()[0].Popup.Name)
}

func TestRefresher_PublishesSnapshot(t *testing.T) {
	loader := &mockLoader{snap: feed.Snapshot{Rows: testRows()}}
	pub := &mockPublisher{}
	metrics := newTestMetrics()
	r := pipeline.New(loader, mapview.NewLayer(), slog.Default(), metrics, time.Minute, pipeline.WithPublisher(pub))

	require.NoError(t, r.Refresh(context.Background()))

	require.Len(t, pub.snapshots, 1)
	assert.Len(t, pub.snapshots[0], 2)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.SnapshotsPublished), 0)
}

func TestRefresher_PublishFailureIsNotFatal(t *testing.T) {
	loader := &mockLoader{snap: feed.Snapshot{Rows: testRows()}}
	pub := &mockPublisher{err: errors.New("broker unavailable")}
	metrics := newTestMetrics()
	layer := mapview.NewLayer()
	r := pipeline.New(loader, layer, slog.Default(), metrics, time.Minute, pipeline.WithPublisher(pub))

	require.NoError(t, r.Refresh(context.Background()))
	assert.Equal(t, 2, layer.Len())
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.SnapshotErrors), 0)
}

func TestRefresher_Run_TicksAndTriggers(t *testing.T) {
	loader := &mockLoader{snap: feed.Snapshot{Rows: testRows()}}
	fakeClock := clockwork.NewFakeClock()
	metrics := newTestMetrics()
	r := pipeline.New(loader, mapview.NewLayer(), slog.Default(), metrics, time.Minute, pipeline.WithClock(fakeClock))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return loader.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, fakeClock.BlockUntilContext(ctx, 1))
	fakeClock.Advance(time.Minute)
	require.Eventually(t, func() bool { return loader.calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)

	r.Trigger()
	require.Eventually(t, func() bool { return loader.calls.Load() == 3 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.InDelta(t, 0.0, testutil.ToFloat64(metrics.RefresherRunning), 0)
}

// gatedResolver blocks address lookups while closed, so a render pass can be
// held open mid-way.
type gatedResolver struct {
	closed  atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGatedResolver() *gatedResolver {
	return &gatedResolver{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gatedResolver) ResolveAddress(_ context.Context, _ domain.Position) (domain.Address, error) {
	if g.closed.Load() {
		select {
		case g.entered <- struct{}{}:
		default:
		}
		<-g.release
	}
	return domain.Address{Full: "1 Main St, Albany, NY"}, nil
}

func TestRefresher_ReadersSeeWholePassDuringRender(t *testing.T) {
	rows := []domain.Row{
		{"stationID": "a", "Lat": "42.65", "Long": "-73.75", "LastPortStatus": "AVAILABLE"},
		{"stationID": "b", "Lat": "40.71", "Long": "-74.00", "LastPortStatus": "AVAILABLE"},
		{"stationID": "c", "Lat": "41.50", "Long": "-72.50", "LastPortStatus": "INUSE"},
	}
	loader := &mockLoader{snap: feed.Snapshot{Rows: rows}}
	layer := mapview.NewLayer()
	resolver := newGatedResolver()
	r := pipeline.New(loader, layer, slog.Default(), newTestMetrics(), time.Minute,
		pipeline.WithAddressResolver(resolver))

	require.NoError(t, r.Refresh(context.Background()))
	before, beforeView := layer.Snapshot()
	require.Len(t, before, 3)
	require.NotNil(t, beforeView)

	resolver.closed.Store(true)
	done := make(chan error, 1)
	go func() { done <- r.Refresh(context.Background()) }()

	select {
	case <-resolver.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("render pass never reached the resolver")
	}

	during, duringView := layer.Snapshot()
	assert.Len(t, during, 3, "readers keep the previous complete pass while the next one builds")
	assert.Equal(t, beforeView, duringView)
	assert.Equal(t, 3, layer.Len())

	close(resolver.release)
	require.NoError(t, <-done)

	after, _ := layer.Snapshot()
	require.Len(t, after, 3)
	assert.Equal(t, "1 Main St, Albany, NY", after[0].Popup.Address)
}

func TestRefresher_FailureDropsRowsForLaterFilterRenders(t *testing.T) {
	loader := &mockLoader{snap: feed.Snapshot{Rows: testRows()}}
	layer := mapview.NewLayer()
	r := pipeline.New(loader, layer, slog.Default(), newTestMetrics(), time.Minute)
	require.NoError(t, r.Refresh(context.Background()))

	loader.set(feed.Snapshot{}, errors.New("connection refused"))
	require.Error(t, r.Refresh(context.Background()))

	result := r.SetFilters(context.Background(), domain.NewFilterState().With(domain.StatusUnreachable, false))

	assert.Zero(t, result.Rows, "stale rows must not be redrawn after a failed fetch")
	assert.Zero(t, result.Placed)
	assert.Zero(t, layer.Len())
	require.Error(t, r.CheckReadiness(context.Background()))
}

func TestRefresher_ApplyFiltersMergesConcurrentUpdates(t *testing.T) {
	loader := &mockLoader{snap: feed.Snapshot{Rows: testRows()}}
	r := pipeline.New(loader, mapview.NewLayer(), slog.Default(), newTestMetrics(), time.Minute)
	require.NoError(t, r.Refresh(context.Background()))

	var wg sync.WaitGroup
	for _, s := range domain.KnownStatuses {
		wg.Add(1)
		go func(s domain.Status) {
			defer wg.Done()
			_, _, err := r.ApplyFilters(context.Background(), map[string]bool{string(s): false})
			assert.NoError(t, err)
		}(s)
	}
	wg.Wait()

	for _, s := range domain.KnownStatuses {
		assert.False(t, r.Filters().Passes(s), "update for %s was lost", s)
	}
	assert.Equal(t, int64(1), loader.calls.Load())
}

func TestRefresher_ApplyFiltersRejectsUnknownStatus(t *testing.T) {
	r := pipeline.New(&mockLoader{}, mapview.NewLayer(), slog.Default(), newTestMetrics(), time.Minute)

	_, _, err := r.ApplyFilters(context.Background(), map[string]bool{"In Use": false, "Sleeping": false})

	require.ErrorIs(t, err, domain.ErrUnknownFilterStatus)
	assert.True(t, r.Filters().Passes(domain.StatusInUse), "a rejected update applies nothing")
}
