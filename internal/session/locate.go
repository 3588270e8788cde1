package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/floodwatch/internal/domain"
	"github.com/jonboulle/clockwork"
)

// DefaultRegion asks the locator for the user's position and resolves it to
// a region, waiting at most timeout. A nil locator, a locator error, a
// timeout, or a position outside every region all yield ("", false): the
// caller falls back to manual selection.
func DefaultRegion(ctx context.Context, clock clockwork.Clock, locator domain.Locator, resolver *domain.RegionResolver, timeout time.Duration, logger *slog.Logger) (string, bool) {
	if locator == nil {
		return "", false
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type located struct {
		pos domain.Coordinates
		err error
	}
	result := make(chan located, 1)
	go func() {
		pos, err := locator.Locate(ctx)
		result <- located{pos: pos, err: err}
	}()

	timer := clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-result:
		if r.err != nil {
			logger.Debug("geolocation unavailable", "error", r.err)
			return "", false
		}
		code, ok := resolver.Resolve(r.pos.Lat, r.pos.Lng)
		if !ok {
			logger.Debug("position outside known regions", "lat", r.pos.Lat, "lng", r.pos.Lng)
		}
		return code, ok
	case <-timer.Chan():
		logger.Debug("geolocation timed out", "timeout", timeout)
		return "", false
	case <-ctx.Done():
		return "", false
	}
}
