// Package catalog implements the catalog service (spec §4.6): it fetches a
// full catalog snapshot from an upstream TLE provider, parses it, caches
// parsed TLEs plus derived orbit parameters, and refreshes on a TTL. It also
// owns the Stage-1 geometric prefilter and Stage-2 coarse temporal screen
// that the candidate pipeline (C7) drives.
//
// Grounded on the teacher's internal/db package shape: a struct wrapping
// external access behind a mutex-guarded in-memory snapshot, with an
// explicit refresh entrypoint rather than request-time fetches.
package catalog

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/celeralabs/stx-orbital/internal/logging"
	"github.com/celeralabs/stx-orbital/internal/tle"
)

// Provider is the upstream TLE catalog capability set named in spec §6.
type Provider interface {
	TLELatest(ctx context.Context, limit int) (string, error)
	GP(ctx context.Context, noradID int) (string, error)
	HasCredentials() bool
}

// Entry is one catalog record, exclusively owned by the Service; callers
// receive read-only views (spec §3).
type Entry struct {
	NoradID     int
	Name        string
	TLE         *tle.TLE
	OrbitParams tle.OrbitParams
	Propagator  *tle.Propagator
}

// ErrUpstreamUnavailable wraps a catalog/live-TLE fetch failure. Recovery is
// to retain the previous snapshot or skip the tier (spec §7).
type ErrUpstreamUnavailable struct{ Err error }

func (e *ErrUpstreamUnavailable) Error() string {
	return fmt.Sprintf("catalog: upstream unavailable: %v", e.Err)
}
func (e *ErrUpstreamUnavailable) Unwrap() error { return e.Err }

// Service holds a many-reader/single-writer catalog snapshot plus a
// monotonic last-refresh epoch (spec §3, §4.6).
type Service struct {
	provider Provider
	ttl      time.Duration

	mu          sync.RWMutex
	entries     map[int]*Entry
	lastRefresh time.Time

	refreshMu sync.Mutex // serializes refresh; readers never block on it
}

// New constructs a Service with no initial snapshot. provider may be nil —
// refresh becomes a permanent no-op and the service serves only what
// SeedEntries loads (fleet-mode uploads, tests).
func New(provider Provider, ttl time.Duration) *Service {
	return &Service{
		provider: provider,
		ttl:      ttl,
		entries:  make(map[int]*Entry),
	}
}

// stale reports whether the snapshot needs a refresh.
func (s *Service) stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return true
	}
	return time.Since(s.lastRefresh) > s.ttl
}

// RefreshIfNeeded fetches tle_latest and rebuilds the snapshot if the
// provider is available and (force, or the snapshot is empty or stale). On
// fetch failure the previous snapshot is retained and a warning is logged —
// stale data is preferable to no data (spec §4.6, §7).
func (s *Service) RefreshIfNeeded(ctx context.Context, force bool) error {
	if s.provider == nil || !s.provider.HasCredentials() {
		return nil
	}
	if !force && !s.stale() {
		return nil
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// Re-check under the refresh lock: another goroutine may have just
	// finished a refresh while we waited.
	if !force && !s.stale() {
		return nil
	}

	text, err := s.provider.TLELatest(ctx, 50000)
	if err != nil {
		logging.Logf("catalog: refresh failed, retaining previous snapshot: %v", err)
		return &ErrUpstreamUnavailable{Err: err}
	}

	entries, err := parseSnapshot(text)
	if err != nil {
		logging.Logf("catalog: refresh parse failed, retaining previous snapshot: %v", err)
		return &ErrUpstreamUnavailable{Err: err}
	}

	s.mu.Lock()
	s.entries = entries
	s.lastRefresh = time.Now()
	s.mu.Unlock()
	return nil
}

// parseSnapshot builds catalog entries from a tle_latest response: a
// newline-separated stream of name/line1/line2 triples, blank lines
// ignored, missing names tolerated (spec §6). Per-entry parse/build failures
// are skipped silently (spec §7 PropagatorError policy).
func parseSnapshot(text string) (map[int]*Entry, error) {
	tles, err := tle.ParseUploadedFile(strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	out := make(map[int]*Entry, len(tles))
	for _, t := range tles {
		entry, err := buildEntry(t)
		if err != nil {
			continue
		}
		out[entry.NoradID] = entry
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("catalog: zero usable entries in upstream snapshot")
	}
	return out, nil
}

func buildEntry(t *tle.TLE) (*Entry, error) {
	id, err := t.NoradID()
	if err != nil {
		return nil, err
	}
	op, err := tle.DeriveOrbitParams(t)
	if err != nil {
		return nil, err
	}
	prop, err := tle.Build(t)
	if err != nil {
		return nil, err
	}
	return &Entry{NoradID: id, Name: t.Name, TLE: t, OrbitParams: op, Propagator: prop}, nil
}

// SeedEntries installs TLEs directly into the snapshot, bypassing the
// upstream provider. Used for fleet-mode uploads and tests, where the
// catalog is the uploaded file itself rather than a live fetch.
func (s *Service) SeedEntries(tles []*tle.TLE) {
	entries := make(map[int]*Entry, len(tles))
	for _, t := range tles {
		if e, err := buildEntry(t); err == nil {
			entries[e.NoradID] = e
		}
	}
	s.mu.Lock()
	for id, e := range entries {
		s.entries[id] = e
	}
	s.lastRefresh = time.Now()
	s.mu.Unlock()
}

// Get returns a read-only view of one entry.
func (s *Service) Get(noradID int) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[noradID]
	return e, ok
}

// Len reports the snapshot size.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// LastRefresh returns the monotonic last-refresh epoch.
func (s *Service) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh
}

// snapshot returns a stable slice copy of every entry for the duration of
// one screening call, so Stage1/Stage2 never race a concurrent refresh.
func (s *Service) snapshot() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

// Stage1Candidates returns every catalog NORAD ID whose altitude shell
// overlaps the primary's (with altMarginKm of slack) and whose inclination
// is within incMarginDeg — an O(N) scalar scan over cached orbit parameters
// (spec §4.6, §4.7). RAAN is intentionally not filtered: precession and the
// multi-day horizon defeat a tight RAAN gate.
func (s *Service) Stage1Candidates(primary tle.OrbitParams, altMarginKm, incMarginDeg float64) []int {
	loAlt := primary.PerigeeKm - altMarginKm
	hiAlt := primary.ApogeeKm + altMarginKm

	var out []int
	for _, e := range s.snapshot() {
		if e.OrbitParams.ApogeeKm < loAlt || e.OrbitParams.PerigeeKm > hiAlt {
			continue
		}
		if math.Abs(e.OrbitParams.InclinationDeg-primary.InclinationDeg) > incMarginDeg {
			continue
		}
		out = append(out, e.NoradID)
	}
	return out
}

// CoarseScreen propagates the primary and every candidate on a uniform time
// grid over [now, now+days], retaining candidates whose grid-minimum
// distance is below thresholdKm (spec §4.6). Propagation is parallelized
// across a worker pool bounded by CPU count via golang.org/x/sync/errgroup,
// matching spec §5's concurrency requirement for the coarse screen.
func (s *Service) CoarseScreen(ctx context.Context, primaryProp *tle.Propagator, candidateIDs []int, days float64, grid int, thresholdKm float64) ([]int, error) {
	times := uniformGrid(time.Now(), days, grid)
	primaryPos, _, err := primaryProp.Propagate(times)
	if err != nil {
		return nil, fmt.Errorf("catalog: primary coarse propagation failed: %w", err)
	}

	type result struct {
		id      int
		survive bool
	}
	results := make([]result, len(candidateIDs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers())
	for i, id := range candidateIDs {
		i, id := i, id
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			entry, ok := s.Get(id)
			if !ok {
				return nil
			}
			pos, _, err := entry.Propagator.Propagate(times)
			if err != nil {
				// per-candidate errors are swallowed silently (spec §7).
				logging.Logf("catalog: coarse screen propagation skipped for %d: %v", id, err)
				return nil
			}
			minDist := math.Inf(1)
			for k := range pos {
				d := dist(primaryPos[k], pos[k])
				if d < minDist {
					minDist = d
				}
			}
			if minDist < thresholdKm {
				results[i] = result{id: id, survive: true}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("catalog: coarse screen aborted: %w", err)
	}

	var out []int
	for _, r := range results {
		if r.survive {
			out = append(out, r.id)
		}
	}
	return out, nil
}

func dist(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func uniformGrid(start time.Time, days float64, n int) []time.Time {
	out := make([]time.Time, n)
	total := time.Duration(days * float64(24*time.Hour))
	if n <= 1 {
		out[0] = start
		return out
	}
	step := total / time.Duration(n-1)
	for i := 0; i < n; i++ {
		out[i] = start.Add(time.Duration(i) * step)
	}
	return out
}

var maxWorkersOverride int

// maxWorkers bounds the worker pool by CPU count (spec §5), overridable for
// deterministic tests.
func maxWorkers() int {
	if maxWorkersOverride > 0 {
		return maxWorkersOverride
	}
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

// TLEUpload parses an uploaded TLE file using the same column parser the
// catalog itself uses, preserving the upload-parse semantics of spec §6 for
// callers (e.g. the job manager's fleet mode) that need entries without a
// snapshot refresh.
func TLEUpload(body string) ([]*tle.TLE, error) {
	return tle.ParseUploadedFile(bufio.NewReader(strings.NewReader(body)))
}
