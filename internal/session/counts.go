package session

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/floodwatch/internal/domain"
	"golang.org/x/sync/errgroup"
)

// maxCountRequests bounds concurrent list requests when counting all regions.
const maxCountRequests = 4

// RegionCount is the number of active warnings in a region. Count is -1
// when the list could not be fetched; Err holds the reason.
type RegionCount struct {
	Region domain.Region
	Count  int
	Err    error
}

// CountWarnings lists every region concurrently and returns the counts in
// region order. A failing region does not fail the others.
func CountWarnings(ctx context.Context, source domain.WarningSource, regions []domain.Region, logger *slog.Logger) []RegionCount {
	counts := make([]RegionCount, len(regions))

	var g errgroup.Group
	g.SetLimit(maxCountRequests)
	for i, region := range regions {
		g.Go(func() error {
			counts[i] = RegionCount{Region: region}
			ids, err := source.ListWarningIDs(ctx, region.Code)
			if err != nil {
				logger.Warn("count warnings failed", "region", region.Code, "error", err)
				counts[i].Count = -1
				counts[i].Err = err
				return nil
			}
			counts[i].Count = len(ids)
			return nil
		})
	}
	_ = g.Wait() // workers record their own errors
	return counts
}
