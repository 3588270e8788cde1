package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/floodwatch/internal/domain"
	"github.com/couchcryptid/floodwatch/internal/observability"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fake warning source ---

type fakeSource struct {
	mu          sync.Mutex
	lists       map[string][]domain.WarningID
	listErrs    map[string]error
	listGates   map[string]chan struct{}
	bulletins   map[domain.WarningID]domain.RawBulletin
	detailErrs  map[domain.WarningID]error
	detailGates map[domain.WarningID]chan struct{}
	detailCalls map[domain.WarningID]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		lists:       map[string][]domain.WarningID{},
		listErrs:    map[string]error{},
		listGates:   map[string]chan struct{}{},
		bulletins:   map[domain.WarningID]domain.RawBulletin{},
		detailErrs:  map[domain.WarningID]error{},
		detailGates: map[domain.WarningID]chan struct{}{},
		detailCalls: map[domain.WarningID]int{},
	}
}

func (f *fakeSource) addWarning(region string, id domain.WarningID, issued, headline string) {
	f.lists[region] = append(f.lists[region], id)
	f.bulletins[id] = domain.RawBulletin{
		IssueTimeUTC: issued,
		Text:         fmt.Sprintf("%s\nAustralian Government\nBureau of Meteorology\n\n%s\n\n%s body.", id, headline, headline),
	}
}

// ListWarningIDs blocks on the region's gate, if any, regardless of ctx.
func (f *fakeSource) ListWarningIDs(_ context.Context, region string) ([]domain.WarningID, error) {
	f.mu.Lock()
	gate := f.listGates[region]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErrs[region]; err != nil {
		return nil, err
	}
	return append([]domain.WarningID(nil), f.lists[region]...), nil
}

// WarningDetail blocks on the ID's gate, if any, regardless of ctx, so tests
// can force a completion to land after a region change.
func (f *fakeSource) WarningDetail(_ context.Context, id domain.WarningID) (domain.RawBulletin, error) {
	f.mu.Lock()
	f.detailCalls[id]++
	gate := f.detailGates[id]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.detailErrs[id]; err != nil {
		return domain.RawBulletin{}, err
	}
	raw, ok := f.bulletins[id]
	if !ok {
		return domain.RawBulletin{}, &domain.TransportError{Op: "detail", StatusCode: http.StatusNotFound, Body: "not found"}
	}
	return raw, nil
}

func (f *fakeSource) calls(id domain.WarningID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailCalls[id]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(src domain.WarningSource) (*Session, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	return New(src, domain.DefaultParsers(), discardLogger(), metrics), metrics
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// --- tests ---

func TestSession_SelectRegion_FetchesAndOrders(t *testing.T) {
	src := newFakeSource()
	src.addWarning("QLD", "IDQ10090", "2024-01-01T00:00:00Z", "Oldest")
	src.addWarning("QLD", "IDQ10091", "2024-03-01T00:00:00Z", "Newest")
	src.addWarning("QLD", "IDQ10092", "garbled", "Undated")
	src.addWarning("QLD", "IDQ10093", "2024-02-01T00:00:00Z", "Middle")

	s, metrics := newTestSession(src)
	ctx := waitCtx(t)

	require.NoError(t, s.SelectRegion(ctx, "QLD"))
	require.NoError(t, s.Wait(ctx))

	v := s.View()
	assert.Equal(t, "QLD", v.RegionCode)
	assert.True(t, v.Loaded)
	assert.Equal(t, 0, v.Pending)
	assert.NoError(t, v.ListErr)
	want := []domain.WarningID{"IDQ10091", "IDQ10093", "IDQ10090", "IDQ10092"}
	if diff := cmp.Diff(want, v.WarningIDs); diff != "" {
		t.Fatalf("display order mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, v.Warnings, 4)
	assert.Equal(t, "Newest", v.Warnings["IDQ10091"].Headline)
	assert.Equal(t, "Newest body.", v.Warnings["IDQ10091"].Description)

	for _, id := range want {
		assert.Equal(t, 1, src.calls(id), "detail calls for %s", id)
	}
	assert.InDelta(t, 4, testutil.ToFloat64(metrics.CachedWarnings), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RegionSelections), 0)
}

func TestSession_SelectRegion_DuplicateIDsFetchedOnce(t *testing.T) {
	src := newFakeSource()
	src.addWarning("NT", "IDD20010", "2024-01-01T00:00:00Z", "Katherine River")
	src.lists["NT"] = append(src.lists["NT"], "IDD20010")

	s, _ := newTestSession(src)
	ctx := waitCtx(t)
	require.NoError(t, s.SelectRegion(ctx, "NT"))
	require.NoError(t, s.Wait(ctx))

	assert.Equal(t, 1, src.calls("IDD20010"))
	assert.Len(t, s.View().WarningIDs, 2)
}

func TestSession_OpenWarning_CacheHitSkipsNetwork(t *testing.T) {
	src := newFakeSource()
	src.addWarning("VIC", "IDV36310", "2024-01-01T00:00:00Z", "Yarra River")

	s, metrics := newTestSession(src)
	ctx := waitCtx(t)
	require.NoError(t, s.SelectRegion(ctx, "VIC"))
	require.NoError(t, s.Wait(ctx))
	require.Equal(t, 1, src.calls("IDV36310"))

	w, err := s.OpenWarning(ctx, "IDV36310")
	require.NoError(t, err)
	assert.Equal(t, "Yarra River", w.Headline)
	assert.Equal(t, 1, src.calls("IDV36310"), "cache hit must not fetch")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("hit")), 0)

	v := s.View()
	assert.Equal(t, domain.WarningID("IDV36310"), v.SelectedWarningID)
	require.NotNil(t, v.Selected)
	assert.Equal(t, "Yarra River", v.Selected.Headline)
}

func TestSession_OpenWarning_MissFetchesAndCaches(t *testing.T) {
	src := newFakeSource()
	src.addWarning("SA", "IDS60010", "2024-01-01T00:00:00Z", "Listed")
	src.bulletins["IDS60099"] = domain.RawBulletin{IssueTimeUTC: "2024-05-01T00:00:00Z", Text: "Unlisted headline\nbody"}

	s, metrics := newTestSession(src)
	ctx := waitCtx(t)
	require.NoError(t, s.SelectRegion(ctx, "SA"))
	require.NoError(t, s.Wait(ctx))

	w, err := s.OpenWarning(ctx, "IDS60099")
	require.NoError(t, err)
	assert.Equal(t, "Unlisted headline", w.Headline)
	assert.Equal(t, 1, src.calls("IDS60099"))

	_, err = s.OpenWarning(ctx, "IDS60099")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls("IDS60099"))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("miss")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("hit")), 0)
}

func TestSession_OpenWarning_BeforeBackgroundFetchCompletes(t *testing.T) {
	src := newFakeSource()
	src.addWarning("TAS", "IDT60150", "2024-01-01T00:00:00Z", "Derwent River")
	gate := make(chan struct{})
	src.detailGates["IDT60150"] = gate

	s, _ := newTestSession(src)
	ctx := waitCtx(t)
	require.NoError(t, s.SelectRegion(ctx, "TAS"))
	require.Eventually(t, func() bool { return src.calls("IDT60150") == 1 }, time.Second, 5*time.Millisecond)

	// Detail view races the background fetch; both complete once released.
	opened := make(chan domain.ParsedWarning, 1)
	go func() {
		w, err := s.OpenWarning(ctx, "IDT60150")
		assert.NoError(t, err)
		opened <- w
	}()
	require.Eventually(t, func() bool { return src.calls("IDT60150") == 2 }, time.Second, 5*time.Millisecond)
	close(gate)

	w := <-opened
	assert.Equal(t, "Derwent River", w.Headline)
	require.NoError(t, s.Wait(ctx))
	assert.Equal(t, "Derwent River", s.View().Warnings["IDT60150"].Headline)
}

func TestSession_OpenWarning_NoRegion(t *testing.T) {
	s, _ := newTestSession(newFakeSource())
	_, err := s.OpenWarning(context.Background(), "IDQ10090")
	assert.ErrorIs(t, err, ErrNoRegion)
}

func TestSession_OpenWarning_FailureSetsDetailErr(t *testing.T) {
	src := newFakeSource()
	src.lists["WA"] = nil

	s, _ := newTestSession(src)
	ctx := waitCtx(t)
	require.NoError(t, s.SelectRegion(ctx, "WA"))

	_, err := s.OpenWarning(ctx, "IDW99999")
	var terr *domain.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusNotFound, terr.StatusCode)

	v := s.View()
	assert.Equal(t, domain.WarningID("IDW99999"), v.SelectedWarningID)
	assert.Nil(t, v.Selected)
	require.Error(t, v.DetailErr)

	s.CloseWarning()
	v = s.View()
	assert.Empty(t, v.SelectedWarningID)
	assert.NoError(t, v.DetailErr)
}

func TestSession_RegionChange_DiscardsStaleWrites(t *testing.T) {
	src := newFakeSource()
	src.addWarning("QLD", "IDQ10090", "2024-01-01T00:00:00Z", "Stale Queensland")
	src.addWarning("NSW", "IDN36503", "2024-01-02T00:00:00Z", "Fresh NSW")
	gate := make(chan struct{})
	src.detailGates["IDQ10090"] = gate

	s, metrics := newTestSession(src)
	ctx := waitCtx(t)

	require.NoError(t, s.SelectRegion(ctx, "QLD"))
	require.Eventually(t, func() bool { return src.calls("IDQ10090") == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.SelectRegion(ctx, "NSW"))
	require.NoError(t, s.Wait(ctx))

	close(gate)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.StaleWrites) == 1
	}, time.Second, 5*time.Millisecond)

	v := s.View()
	assert.Equal(t, "NSW", v.RegionCode)
	assert.Equal(t, []domain.WarningID{"IDN36503"}, v.WarningIDs)
	assert.NotContains(t, v.Warnings, domain.WarningID("IDQ10090"))
	assert.Len(t, v.Warnings, 1)
	assert.Equal(t, uint64(2), v.Epoch)
}

func TestSession_RegionChange_ClearsPreviousCache(t *testing.T) {
	src := newFakeSource()
	src.addWarning("QLD", "IDQ10090", "2024-01-01T00:00:00Z", "Queensland")
	src.addWarning("NSW", "IDN36503", "2024-01-02T00:00:00Z", "NSW")

	s, _ := newTestSession(src)
	ctx := waitCtx(t)
	require.NoError(t, s.SelectRegion(ctx, "QLD"))
	require.NoError(t, s.Wait(ctx))
	_, err := s.OpenWarning(ctx, "IDQ10090")
	require.NoError(t, err)

	require.NoError(t, s.SelectRegion(ctx, "NSW"))
	require.NoError(t, s.Wait(ctx))

	v := s.View()
	assert.NotContains(t, v.Warnings, domain.WarningID("IDQ10090"))
	assert.Empty(t, v.SelectedWarningID, "region change closes the detail view")

	// Re-opening the old warning under the new region goes back to the network.
	_, err = s.OpenWarning(ctx, "IDQ10090")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls("IDQ10090"))
}

func TestSession_SelectRegion_ListError(t *testing.T) {
	src := newFakeSource()
	src.addWarning("QLD", "IDQ10090", "2024-01-01T00:00:00Z", "Queensland")
	src.listErrs["ACT"] = &domain.TransportError{Op: "list", StatusCode: http.StatusInternalServerError, Body: "boom"}

	s, _ := newTestSession(src)
	ctx := waitCtx(t)
	require.NoError(t, s.SelectRegion(ctx, "QLD"))
	require.NoError(t, s.Wait(ctx))

	err := s.SelectRegion(ctx, "ACT")
	var terr *domain.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "boom", terr.Body)

	v := s.View()
	assert.Equal(t, "ACT", v.RegionCode)
	assert.False(t, v.Loaded)
	require.Error(t, v.ListErr)
	assert.Empty(t, v.WarningIDs)
	assert.Empty(t, v.Warnings)
	require.NoError(t, s.Wait(ctx))
}

func TestSession_SelectRegion_Superseded(t *testing.T) {
	src := newFakeSource()
	src.addWarning("QLD", "IDQ10090", "2024-01-01T00:00:00Z", "Queensland")
	src.addWarning("VIC", "IDV36310", "2024-01-01T00:00:00Z", "Victoria")
	gate := make(chan struct{})
	src.listGates["QLD"] = gate

	s, _ := newTestSession(src)
	ctx := waitCtx(t)

	result := make(chan error, 1)
	go func() { result <- s.SelectRegion(ctx, "QLD") }()
	require.Eventually(t, func() bool { return s.View().RegionCode == "QLD" }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.SelectRegion(ctx, "VIC"))
	close(gate)

	assert.ErrorIs(t, <-result, ErrSuperseded)
	require.NoError(t, s.Wait(ctx))
	assert.Equal(t, []domain.WarningID{"IDV36310"}, s.View().WarningIDs)
	assert.Equal(t, 0, src.calls("IDQ10090"))
}

func TestSession_BackgroundFailureRecorded(t *testing.T) {
	src := newFakeSource()
	src.addWarning("NSW", "IDN36503", "2024-01-01T00:00:00Z", "Resolves")
	src.lists["NSW"] = append(src.lists["NSW"], "IDN36599")
	src.detailErrs["IDN36599"] = errors.New("connection reset")

	s, _ := newTestSession(src)
	ctx := waitCtx(t)
	require.NoError(t, s.SelectRegion(ctx, "NSW"))
	require.NoError(t, s.Wait(ctx))

	v := s.View()
	assert.Equal(t, 0, v.Pending)
	require.Contains(t, v.FetchErrors, domain.WarningID("IDN36599"))
	assert.Equal(t, []domain.WarningID{"IDN36503", "IDN36599"}, v.WarningIDs)
}

func TestSession_Wait_RespectsContext(t *testing.T) {
	src := newFakeSource()
	src.addWarning("SA", "IDS60010", "2024-01-01T00:00:00Z", "Blocked")
	gate := make(chan struct{})
	src.detailGates["IDS60010"] = gate
	t.Cleanup(func() { close(gate) })

	s, _ := newTestSession(src)
	require.NoError(t, s.SelectRegion(context.Background(), "SA"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)
	assert.Equal(t, 1, s.View().Pending)
}

func TestSession_EmptyRegionClearsSelection(t *testing.T) {
	src := newFakeSource()
	src.addWarning("QLD", "IDQ10090", "2024-01-01T00:00:00Z", "Queensland")

	s, _ := newTestSession(src)
	ctx := waitCtx(t)
	require.NoError(t, s.SelectRegion(ctx, "QLD"))
	require.NoError(t, s.Wait(ctx))

	require.NoError(t, s.SelectRegion(ctx, ""))
	v := s.View()
	assert.Empty(t, v.RegionCode)
	assert.Empty(t, v.WarningIDs)
	assert.Empty(t, v.Warnings)
	require.NoError(t, s.Wait(ctx))
}

func TestSession_CheckReadiness(t *testing.T) {
	src := newFakeSource()
	src.listErrs["QLD"] = errors.New("offline")
	src.lists["VIC"] = nil

	s, _ := newTestSession(src)
	ctx := waitCtx(t)
	require.Error(t, s.CheckReadiness(ctx))

	require.Error(t, s.SelectRegion(ctx, "QLD"))
	require.Error(t, s.CheckReadiness(ctx))

	require.NoError(t, s.SelectRegion(ctx, "VIC"))
	require.NoError(t, s.CheckReadiness(ctx))
}
