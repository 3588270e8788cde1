package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/floodwatch/internal/domain"
	"github.com/couchcryptid/floodwatch/internal/observability"
)

var (
	// ErrNoRegion is returned when a warning is opened before any region is selected.
	ErrNoRegion = errors.New("no region selected")

	// ErrSuperseded is returned by SelectRegion when another selection
	// replaced it before its warning list arrived.
	ErrSuperseded = errors.New("region selection superseded")
)

// epoch is one region selection. Its cache and its background fetches
// belong to it alone; a new selection starts a new epoch.
type epoch struct {
	id     uint64
	region string
	cache  *WarningCache
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Guarded by Session.mu.
	ids     []domain.WarningID
	loaded  bool
	listErr error
	failed  map[domain.WarningID]error
}

// Session is the selection state behind the presentation layer: the chosen
// region, its warning IDs, the warnings resolved so far and the warning
// opened for detail. It is safe for concurrent use.
type Session struct {
	source  domain.WarningSource
	parser  domain.BulletinParser
	logger  *slog.Logger
	metrics *observability.Metrics

	mu        sync.Mutex
	lastEpoch uint64
	current   *epoch
	selected  domain.WarningID
	detailErr error

	ready atomic.Bool
}

// New creates a Session with no region selected.
func New(source domain.WarningSource, parser domain.BulletinParser, logger *slog.Logger, metrics *observability.Metrics) *Session {
	return &Session{
		source:  source,
		parser:  parser,
		logger:  logger,
		metrics: metrics,
	}
}

// SelectRegion makes region current. It discards the previous region's cache
// and cancels its in-flight fetches, lists the region's warnings, and starts
// one background detail fetch per warning ID. It returns once the list is
// known; use Wait to block until the details have resolved.
//
// Background fetches live until ctx is done or the next selection. An empty
// region clears the selection.
func (s *Session) SelectRegion(ctx context.Context, region string) error {
	if region == "" {
		s.ClearRegion()
		return nil
	}

	ep := s.beginEpoch(ctx, region)
	defer ep.wg.Done()

	s.logger.Debug("region selected", "region", region, "epoch", ep.id)
	ids, err := s.source.ListWarningIDs(ep.ctx, region)

	s.mu.Lock()
	if s.current != ep {
		s.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		ep.listErr = err
		s.mu.Unlock()
		s.logger.Warn("list warnings failed", "region", region, "epoch", ep.id, "error", err)
		return fmt.Errorf("list warnings for %s: %w", region, err)
	}
	ep.ids = ids
	ep.loaded = true
	unique := uniqueIDs(ids)
	ep.wg.Add(len(unique))
	s.mu.Unlock()

	s.ready.Store(true)
	s.logger.Info("warnings listed", "region", region, "epoch", ep.id, "count", len(ids))

	for _, id := range unique {
		go s.fetchInBackground(ep, id)
	}
	return nil
}

// ClearRegion drops the current selection, its cache and the opened warning.
func (s *Session) ClearRegion() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.cancel()
		s.current = nil
	}
	s.selected = ""
	s.detailErr = nil
	s.metrics.CachedWarnings.Set(0)
}

// Close cancels any in-flight fetches. The session stays usable.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.cancel()
	}
}

// OpenWarning selects a warning for the detail view and returns it. A cached
// warning is returned without touching the network; otherwise it is fetched,
// parsed and cached for the current region.
func (s *Session) OpenWarning(ctx context.Context, id domain.WarningID) (domain.ParsedWarning, error) {
	s.mu.Lock()
	ep := s.current
	if ep == nil {
		s.mu.Unlock()
		return domain.ParsedWarning{}, ErrNoRegion
	}
	s.selected = id
	s.detailErr = nil
	s.mu.Unlock()

	if w, ok := ep.cache.Get(id); ok {
		s.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return w, nil
	}
	s.metrics.CacheLookups.WithLabelValues("miss").Inc()

	w, err := s.fetch(ctx, id)
	if err != nil {
		s.mu.Lock()
		if s.current == ep && s.selected == id {
			s.detailErr = err
		}
		s.mu.Unlock()
		return domain.ParsedWarning{}, fmt.Errorf("open warning %s: %w", id, err)
	}

	s.store(ep, w)
	return w, nil
}

// CloseWarning clears the detail view selection.
func (s *Session) CloseWarning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = ""
	s.detailErr = nil
}

// Wait blocks until every background fetch of the current region has
// finished, or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	ep := s.current
	s.mu.Unlock()
	if ep == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CheckReadiness returns nil once a region's warning list has loaded.
func (s *Session) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no warning list loaded yet")
	}
	return nil
}

func (s *Session) beginEpoch(ctx context.Context, region string) *epoch {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.cancel()
	}
	s.lastEpoch++
	epCtx, cancel := context.WithCancel(ctx)
	ep := &epoch{
		id:     s.lastEpoch,
		region: region,
		cache:  NewWarningCache(),
		ctx:    epCtx,
		cancel: cancel,
		failed: make(map[domain.WarningID]error),
	}
	// Held by SelectRegion until the per-ID fetches are counted.
	ep.wg.Add(1)

	s.current = ep
	s.selected = ""
	s.detailErr = nil
	s.metrics.RegionSelections.Inc()
	s.metrics.CachedWarnings.Set(0)
	return ep
}

func (s *Session) fetchInBackground(ep *epoch, id domain.WarningID) {
	defer ep.wg.Done()

	if ep.cache.Has(id) {
		return
	}

	w, err := s.fetch(ep.ctx, id)
	if err != nil {
		if ep.ctx.Err() != nil {
			s.logger.Debug("warning fetch cancelled", "warning_id", id, "epoch", ep.id)
			return
		}
		s.logger.Warn("warning fetch failed", "warning_id", id, "region", ep.region, "error", err)
		s.mu.Lock()
		if !ep.cache.Has(id) {
			ep.failed[id] = err
		}
		s.mu.Unlock()
		return
	}
	s.store(ep, w)
}

func (s *Session) fetch(ctx context.Context, id domain.WarningID) (domain.ParsedWarning, error) {
	raw, err := s.source.WarningDetail(ctx, id)
	if err != nil {
		return domain.ParsedWarning{}, err
	}
	return s.parser.Parse(raw, id), nil
}

// store writes w into ep's cache unless ep is no longer current.
func (s *Session) store(ep *epoch, w domain.ParsedWarning) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != ep {
		s.metrics.StaleWrites.Inc()
		s.logger.Debug("discarding stale warning", "warning_id", w.ID, "epoch", ep.id)
		return false
	}
	if ep.cache.Put(w.ID, w) {
		s.metrics.CachedWarnings.Set(float64(ep.cache.Len()))
	}
	delete(ep.failed, w.ID)
	return true
}

// View is the presentation state of a session at one instant.
type View struct {
	RegionCode string
	Epoch      uint64
	Loaded     bool

	// WarningIDs is the display order: newest first, unresolved last.
	WarningIDs []domain.WarningID
	Warnings   map[domain.WarningID]domain.ParsedWarning
	Pending    int

	SelectedWarningID domain.WarningID
	Selected          *domain.ParsedWarning

	ListErr     error
	DetailErr   error
	FetchErrors map[domain.WarningID]error
}

// View snapshots the session for rendering.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		SelectedWarningID: s.selected,
		DetailErr:         s.detailErr,
		Warnings:          map[domain.WarningID]domain.ParsedWarning{},
		FetchErrors:       map[domain.WarningID]error{},
	}
	ep := s.current
	if ep == nil {
		return v
	}

	v.RegionCode = ep.region
	v.Epoch = ep.id
	v.Loaded = ep.loaded
	v.ListErr = ep.listErr
	v.Warnings = ep.cache.Snapshot()
	v.FetchErrors = maps.Clone(ep.failed)
	v.WarningIDs = domain.Order(ep.ids, ep.cache)

	for _, id := range uniqueIDs(ep.ids) {
		_, cached := v.Warnings[id]
		_, failed := v.FetchErrors[id]
		if !cached && !failed {
			v.Pending++
		}
	}
	if w, ok := v.Warnings[s.selected]; ok && s.selected != "" {
		v.Selected = &w
	}
	return v
}

func uniqueIDs(ids []domain.WarningID) []domain.WarningID {
	seen := make(map[domain.WarningID]bool, len(ids))
	out := make([]domain.WarningID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
