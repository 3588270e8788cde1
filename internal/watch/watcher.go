// Package watch keeps one region's warnings refreshed on a fixed interval.
package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/floodwatch/internal/observability"
	"github.com/couchcryptid/floodwatch/internal/session"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
)

const initialBackoff = time.Second

// RegionSelector is the part of session.Session the watcher drives.
type RegionSelector interface {
	SelectRegion(ctx context.Context, region string) error
	Wait(ctx context.Context) error
	View() session.View
}

// RefreshFunc receives the session view after each successful refresh.
type RefreshFunc func(at time.Time, v session.View)

// Config controls the refresh cadence.
type Config struct {
	Region    string
	Interval  time.Duration
	FetchWait time.Duration
}

// Watcher re-selects a region every Interval. Each refresh starts a new
// session epoch, so bulletins never outlive the list pass that found them.
type Watcher struct {
	sel       RegionSelector
	cfg       Config
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	onRefresh RefreshFunc
}

// New creates a Watcher. onRefresh may be nil.
func New(sel RegionSelector, cfg Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, onRefresh RefreshFunc) *Watcher {
	return &Watcher{
		sel:       sel,
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		onRefresh: onRefresh,
	}
}

// Run refreshes until ctx is cancelled. A failed refresh is retried with
// exponential backoff capped at the refresh interval.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watch started", "region", w.cfg.Region, "interval", w.cfg.Interval)

	backoff := initialBackoff
	for {
		wait := w.cfg.Interval
		if err := w.refresh(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			w.metrics.Refreshes.WithLabelValues("error").Inc()
			w.logger.Error("refresh failed", "region", w.cfg.Region, "error", err, "retry_in", backoff)
			wait = backoff
			backoff = retry.NextBackoff(backoff, w.cfg.Interval)
		} else {
			w.metrics.Refreshes.WithLabelValues("success").Inc()
			backoff = initialBackoff
		}

		if !w.sleep(ctx, wait) {
			break
		}
	}

	w.logger.Info("watch stopping", "reason", ctx.Err())
	return nil
}

func (w *Watcher) refresh(ctx context.Context) error {
	if err := w.sel.SelectRegion(ctx, w.cfg.Region); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchWait)
	defer cancel()
	if err := w.sel.Wait(waitCtx); err != nil && ctx.Err() == nil {
		w.logger.Warn("warning details still loading", "region", w.cfg.Region, "wait", w.cfg.FetchWait)
	}

	if w.onRefresh != nil {
		w.onRefresh(w.clock.Now(), w.sel.View())
	}
	return nil
}

// sleep waits d on the watcher's clock, not retry.SleepWithContext, so a
// fake clock drives the loop in tests. Returns false if ctx ended first.
func (w *Watcher) sleep(ctx context.Context, d time.Duration) bool {
	timer := w.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
