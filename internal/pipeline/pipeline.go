// Package pipeline orchestrates the candidate-reduction chain (spec §4.7):
// refresh the catalog, apply the Stage-1 geometric prefilter, apply the
// Stage-2 coarse temporal screen, and resolve survivors to catalog entries
// in survivor order.
package pipeline

import (
	"context"
	"fmt"

	"github.com/celeralabs/stx-orbital/internal/catalog"
	"github.com/celeralabs/stx-orbital/internal/tle"
)

// Params configures the two filter stages; zero-value fields are replaced by
// spec.md §4.6's defaults by the caller (internal/config.Resolved holds the
// effective values).
type Params struct {
	Stage1AltMarginKm  float64
	Stage1IncMarginDeg float64
	Stage2HorizonDays  float64
	Stage2Grid         int
	Stage2ThresholdKm  float64
}

// CandidatesFor runs the full Stage-1/Stage-2 chain for one primary and
// returns resolved catalog entries in Stage-2 survivor order, with every ID in
// excludeNoradIDs excluded (a primary never screens against itself).
func CandidatesFor(ctx context.Context, cat *catalog.Service, primaryTLE *tle.TLE, primaryOP tle.OrbitParams, primaryProp *tle.Propagator, excludeNoradIDs map[int]bool, p Params) ([]*catalog.Entry, error) {
	refreshErr := cat.RefreshIfNeeded(ctx, false)
	// A stale-but-present snapshot is still usable (spec §4.6); only a
	// truly empty catalog turns this into a hard failure for the caller.
	if cat.Len() == 0 {
		if refreshErr != nil {
			return nil, fmt.Errorf("pipeline: catalog unavailable and empty: %w", refreshErr)
		}
		return nil, fmt.Errorf("pipeline: catalog is empty")
	}

	ids1 := cat.Stage1Candidates(primaryOP, p.Stage1AltMarginKm, p.Stage1IncMarginDeg)
	ids1 = excludeIDs(ids1, excludeNoradIDs)

	ids2, err := cat.CoarseScreen(ctx, primaryProp, ids1, p.Stage2HorizonDays, p.Stage2Grid, p.Stage2ThresholdKm)
	if err != nil {
		return nil, fmt.Errorf("pipeline: coarse screen failed: %w", err)
	}

	out := make([]*catalog.Entry, 0, len(ids2))
	for _, id := range ids2 {
		if entry, ok := cat.Get(id); ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

func excludeIDs(ids []int, exclude map[int]bool) []int {
	if len(exclude) == 0 {
		return ids
	}
	out := ids[:0]
	for _, id := range ids {
		if !exclude[id] {
			out = append(out, id)
		}
	}
	return out
}
