// Package jobs implements the asynchronous job manager (spec §4.10): it
// accepts an uploaded TLE file, validates it synchronously, and dispatches a
// background worker that runs tiered screening and freezes a terminal
// result. Status is polled by job ID.
//
// Grounded on the teacher's internal/lidar/sweep.Runner: a
// sync.RWMutex-guarded map keyed by a generated ID, a goroutine-per-run
// dispatch (`go r.run(...)`), and a copy-out-under-lock status read
// (GetSweepState). Unlike Runner, which refuses a second concurrent sweep
// outright, this manager must service many concurrent jobs (spec §4.10), so
// concurrency is bounded instead by a buffered-channel semaphore sized from
// configuration rather than by a single-run guard.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/celeralabs/stx-orbital/internal/catalog"
	"github.com/celeralabs/stx-orbital/internal/classify"
	"github.com/celeralabs/stx-orbital/internal/logging"
	"github.com/celeralabs/stx-orbital/internal/maneuver"
	"github.com/celeralabs/stx-orbital/internal/narrative"
	"github.com/celeralabs/stx-orbital/internal/pipeline"
	"github.com/celeralabs/stx-orbital/internal/report"
	"github.com/celeralabs/stx-orbital/internal/risk"
	"github.com/celeralabs/stx-orbital/internal/screener"
	"github.com/celeralabs/stx-orbital/internal/spacetrack"
	"github.com/celeralabs/stx-orbital/internal/tle"
)

// Status names a job's lifecycle state (spec §4.10).
type Status string

const (
	Queued   Status = "queued"
	Running  Status = "running"
	Success  Status = "success"
	AllClear Status = "all_clear"
	Failed   Status = "failed"
)

// ErrInputInvalid reports a synchronously-detected bad upload: zero usable
// TLEs, or an unparseable file (spec §4.10, §7).
type ErrInputInvalid struct{ Err error }

func (e *ErrInputInvalid) Error() string { return fmt.Sprintf("jobs: invalid input: %v", e.Err) }
func (e *ErrInputInvalid) Unwrap() error { return e.Err }

// Threat is one screened secondary's telemetry, ranked for sort ordering.
type Threat struct {
	Telemetry    *screener.Telemetry
	PriorityTier classify.PriorityTier
}

// Result is the frozen payload of a terminal job (spec §3).
type Result struct {
	RiskLevel     risk.Level
	Threats       []Threat
	Decision      string
	Profile       string
	ProfileType   risk.ProfileType
	Geometry      interface{}
	HasRICPlot    bool
	ScreeningStats ScreeningStats
	Maneuver      *maneuver.Maneuver
	PDFFilename   string
}

// ScreeningStats reports how many candidates survived each pipeline stage,
// for operator visibility into why a job returned what it did.
type ScreeningStats struct {
	CatalogSize      int
	Stage1Candidates int
	Stage2Candidates int
	Screened         int
}

// Job is one submitted screening request and its (possibly still pending)
// outcome. Once Status reaches a terminal value, every other field is frozen
// and safe to read without further synchronization (copied out under lock).
type Job struct {
	ID        uuid.UUID
	Status    Status
	Result    *Result
	Err       error
	CreatedAt time.Time
}

// Dependencies bundles everything a job's worker needs; Manager holds one
// copy and shares it across every job.
type Dependencies struct {
	Catalog          *catalog.Service
	SpacetrackClient *spacetrack.Client
	NarrativeGen     narrative.Generator
	Renderer         report.Renderer
	PipelineParams   pipeline.Params
	ScreenerParams   screener.Params
	NarrativeTimeout time.Duration

	// ExternalCallTimeout bounds every upstream suspension point shared
	// across a job: the catalog refresh fetch and the manned-object live
	// GP fetch (spec §5). Narrative generation uses NarrativeTimeout
	// instead, since its fallback path has its own timing contract.
	ExternalCallTimeout time.Duration
}

// Manager owns the job table and the worker semaphore.
type Manager struct {
	deps Dependencies

	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job

	sem chan struct{}
}

// NewManager builds a Manager bounding concurrent workers at maxConcurrent.
func NewManager(deps Dependencies, maxConcurrent int) *Manager {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Manager{
		deps: deps,
		jobs: make(map[uuid.UUID]*Job),
		sem:  make(chan struct{}, maxConcurrent),
	}
}

// Submit parses fileBytes synchronously (surfacing ErrInputInvalid on a bad
// upload before a job is even created), then creates a Queued job and
// dispatches a background worker (spec §4.10).
func (m *Manager) Submit(ctx context.Context, fileBytes []byte, suppressGreen bool, catalogLimit int) (uuid.UUID, error) {
	tles, err := catalog.TLEUpload(string(fileBytes))
	if err != nil {
		return uuid.UUID{}, &ErrInputInvalid{Err: err}
	}
	if len(tles) == 0 {
		return uuid.UUID{}, &ErrInputInvalid{Err: fmt.Errorf("no usable TLEs in upload")}
	}

	id := uuid.New()
	job := &Job{ID: id, Status: Queued, CreatedAt: time.Now()}

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	go m.run(id, tles, suppressGreen, catalogLimit)

	return id, nil
}

// Status returns a copy of one job's current state (copy-out-under-lock, as
// the teacher's sweep.Runner.GetSweepState does).
func (m *Manager) Status(id uuid.UUID) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

func (m *Manager) setStatus(id uuid.UUID, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.Status = status
	}
}

func (m *Manager) finish(id uuid.UUID, status Status, result *Result, jobErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.Status = status
		j.Result = result
		j.Err = jobErr
	}
}

// run is the background worker body for one job: it acquires a semaphore
// slot (bounding concurrency, spec §4.10), runs tiered screening, and
// freezes a terminal result.
func (m *Manager) run(id uuid.UUID, tles []*tle.TLE, suppressGreen bool, catalogLimit int) {
	m.sem <- struct{}{}
	defer func() { <-m.sem }()

	m.setStatus(id, Running)

	ctx := context.Background()
	result, err := m.screenUpload(ctx, id, tles, suppressGreen, catalogLimit)
	if err != nil {
		logging.Logf("jobs: job %s failed: %v", id, err)
		m.finish(id, Failed, nil, err)
		return
	}
	if result == nil {
		m.finish(id, AllClear, nil, nil)
		return
	}
	m.finish(id, Success, result, nil)
}

// screenUpload implements the tiered screening and fleet-mode logic of spec
// §4.10. Exactly one of two modes runs, never both: when the upload holds
// more than one TLE, tles[0] is the primary and is screened only against
// the rest of the upload (fleet mode) — no catalog/Tier-1 sweep is issued
// (boundary scenario 5). Otherwise the single uploaded TLE is the primary
// and runs the Tier 1 manned cross-check plus the Tier 2/3 catalog
// pipeline.
func (m *Manager) screenUpload(ctx context.Context, id uuid.UUID, tles []*tle.TLE, suppressGreen bool, catalogLimit int) (*Result, error) {
	var allThreats []Threat
	var stats ScreeningStats
	stats.CatalogSize = m.deps.Catalog.Len()

	primaryTLE := tles[0]
	primaryName := primaryTLE.Name
	if primaryID, err := primaryTLE.NoradID(); err == nil && primaryName == "" {
		primaryName = fmt.Sprintf("NORAD %d", primaryID)
	}
	primaryProp, err := tle.Build(primaryTLE)
	if err != nil {
		return nil, fmt.Errorf("jobs: building primary propagator: %w", err)
	}

	screenerParams := m.deps.ScreenerParams
	screenerParams.SuppressGreen = suppressGreen

	if len(tles) > 1 {
		allThreats, stats.Screened, err = m.screenFleet(primaryName, primaryProp, tles[1:], screenerParams)
		if err != nil {
			return nil, err
		}
	} else {
		threats, s, err := m.screenOnePrimary(ctx, primaryTLE, primaryName, primaryProp, catalogLimit, screenerParams)
		if err != nil {
			return nil, err
		}
		allThreats = threats
		stats.Stage1Candidates = s.Stage1Candidates
		stats.Stage2Candidates = s.Stage2Candidates
		stats.Screened = s.Screened
	}

	sortThreats(allThreats)

	if len(allThreats) == 0 {
		return nil, nil
	}

	top := pickTop(allThreats)
	if suppressGreen && top.Telemetry.RiskLevel == risk.Green {
		return nil, nil
	}

	prompt := narrativePrompt(top)
	text := narrative.GenerateOrFallback(ctx, m.deps.NarrativeGen, prompt, m.deps.NarrativeTimeout)
	decision := decisionFor(top, text)

	var pdfFilename string
	if m.deps.Renderer != nil {
		if fn, err := m.deps.Renderer.Render(id.String(), top.Telemetry, text); err == nil {
			pdfFilename = fn
		} else {
			logging.Logf("jobs: job %s pdf render failed: %v", id, err)
		}
	}

	return &Result{
		RiskLevel:      top.Telemetry.RiskLevel,
		Threats:        allThreats,
		Decision:       decision,
		Profile:        string(top.Telemetry.ProfileType),
		ProfileType:    top.Telemetry.ProfileType,
		Geometry:       top.Telemetry.Geometry,
		HasRICPlot:     top.Telemetry.RICPlotPNGB64 != "",
		ScreeningStats: stats,
		Maneuver:       top.Telemetry.Maneuver,
		PDFFilename:    pdfFilename,
	}, nil
}

// screenOnePrimary runs the Tier 1 manned cross-check and the Tier 2/3
// catalog pipeline for the single uploaded primary (spec §4.10 single-TLE
// path). It is never invoked in fleet mode (len(tles) > 1); screenFleet
// handles that case instead, with no catalog/Tier-1 sweep at all.
func (m *Manager) screenOnePrimary(ctx context.Context, primaryTLE *tle.TLE, primaryName string, primaryProp *tle.Propagator, catalogLimit int, screenerParams screener.Params) ([]Threat, ScreeningStats, error) {
	var stats ScreeningStats
	var threats []Threat

	primaryID, err := primaryTLE.NoradID()
	if err != nil {
		return nil, stats, fmt.Errorf("jobs: bad primary NORAD ID: %w", err)
	}
	primaryOP, err := tle.DeriveOrbitParams(primaryTLE)
	if err != nil {
		return nil, stats, fmt.Errorf("jobs: deriving primary orbit params: %w", err)
	}

	// Tier 1: manned cross-check via live GP fetch, independent of the
	// catalog snapshot (spec §4.10). Each fetch is bounded by the shared
	// external-call timeout (spec §5), since it is a suspension point like
	// the catalog fetch below.
	if !classify.IsManned(primaryID) && m.deps.SpacetrackClient != nil && m.deps.SpacetrackClient.HasCredentials() {
		for mannedID := range mannedSet() {
			gp, err := m.fetchGP(ctx, mannedID)
			if err != nil {
				logging.Logf("jobs: manned cross-check fetch failed for %d: %v", mannedID, err)
				continue
			}
			mannedTLEs, err := catalog.TLEUpload(gp)
			if err != nil || len(mannedTLEs) == 0 {
				continue
			}
			t, err := m.screenPair(primaryName, primaryProp, mannedTLEs[0], risk.Profiles[risk.ISSClass], classify.Manned, screenerParams)
			if err != nil {
				logging.Logf("jobs: manned screen failed: %v", err)
				continue
			}
			stats.Screened++
			if t != nil {
				threats = append(threats, *t)
			}
		}
	}

	// Tier 2/3: catalog pipeline candidates. The catalog refresh inside
	// CandidatesFor is itself a suspension point bounded by the shared
	// external-call timeout (spec §5).
	exclude := map[int]bool{primaryID: true}
	fetchCtx, cancel := m.externalCallContext(ctx)
	candidates, err := pipeline.CandidatesFor(fetchCtx, m.deps.Catalog, primaryTLE, primaryOP, primaryProp, exclude, m.deps.PipelineParams)
	cancel()
	if err != nil {
		logging.Logf("jobs: candidate pipeline failed, continuing without catalog tier: %v", err)
		candidates = nil
	}
	stats.Stage2Candidates += len(candidates)
	if catalogLimit > 0 && len(candidates) > catalogLimit {
		candidates = candidates[:catalogLimit]
	}
	for _, entry := range candidates {
		profileType := classify.ProfileFor(entry.NoradID)
		tier, _ := classify.PriorityFor(entry.NoradID, entry.OrbitParams)
		t, err := m.screenPair(primaryName, primaryProp, entryToTLE(entry), risk.Profiles[profileType], tier, screenerParams)
		if err != nil {
			logging.Logf("jobs: catalog screen failed for %d: %v", entry.NoradID, err)
			continue
		}
		stats.Screened++
		if t != nil {
			threats = append(threats, *t)
		}
	}

	return threats, stats, nil
}

// screenFleet implements fleet mode (spec §4.10 step 3): the primary
// screens only against the other uploaded TLEs, with no catalog or Tier-1
// sweep issued at all.
func (m *Manager) screenFleet(primaryName string, primaryProp *tle.Propagator, others []*tle.TLE, screenerParams screener.Params) ([]Threat, int, error) {
	var threats []Threat
	screened := 0
	for _, other := range others {
		otherID, err := other.NoradID()
		if err != nil {
			continue
		}
		profileType := classify.ProfileFor(otherID)
		otherOP, err := tle.DeriveOrbitParams(other)
		if err != nil {
			continue
		}
		tier, _ := classify.PriorityFor(otherID, otherOP)
		t, err := m.screenPair(primaryName, primaryProp, other, risk.Profiles[profileType], tier, screenerParams)
		if err != nil {
			logging.Logf("jobs: fleet cross-screen failed for %d: %v", otherID, err)
			continue
		}
		screened++
		if t != nil {
			threats = append(threats, *t)
		}
	}
	return threats, screened, nil
}

// fetchGP fetches one NORAD object's freshest TLE, bounded by the shared
// external-call timeout (spec §5).
func (m *Manager) fetchGP(ctx context.Context, noradID int) (string, error) {
	fetchCtx, cancel := m.externalCallContext(ctx)
	defer cancel()
	return m.deps.SpacetrackClient.GP(fetchCtx, noradID)
}

// externalCallContext bounds ctx by Dependencies.ExternalCallTimeout, the
// shared deadline spec §5 requires for catalog fetch and live TLE fetch
// suspension points. A non-positive configured timeout leaves ctx
// unbounded rather than firing an immediate deadline.
func (m *Manager) externalCallContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.deps.ExternalCallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.deps.ExternalCallTimeout)
}

func (m *Manager) screenPair(primaryName string, primaryProp *tle.Propagator, secondaryTLE *tle.TLE, profile risk.Profile, tier classify.PriorityTier, screenerParams screener.Params) (*Threat, error) {
	secondaryProp, err := tle.Build(secondaryTLE)
	if err != nil {
		return nil, err
	}
	secondaryName := secondaryTLE.Name
	if secondaryName == "" {
		if id, err := secondaryTLE.NoradID(); err == nil {
			secondaryName = fmt.Sprintf("NORAD %d", id)
		}
	}

	telemetry, err := screener.Screen(context.Background(), primaryName, primaryProp, secondaryName, secondaryProp, profile, screenerParams)
	if err != nil {
		return nil, err
	}
	if telemetry == nil {
		return nil, nil
	}
	return &Threat{Telemetry: telemetry, PriorityTier: tier}, nil
}

func entryToTLE(e *catalog.Entry) *tle.TLE { return e.TLE }

func mannedSet() map[int]bool {
	return map[int]bool{25544: true, 48274: true}
}

// sortThreats orders by (priority rank ascending, miss distance ascending),
// matching spec §4.10 step 4.
func sortThreats(threats []Threat) {
	sort.SliceStable(threats, func(i, j int) bool {
		ri, rj := threats[i].PriorityTier.Rank(), threats[j].PriorityTier.Rank()
		if ri != rj {
			return ri < rj
		}
		return threats[i].Telemetry.MinDistKm < threats[j].Telemetry.MinDistKm
	})
}

// pickTop selects the first RED/YELLOW threat in sorted order, falling back
// to the overall closest approach if every threat is GREEN (spec §4.10).
func pickTop(threats []Threat) Threat {
	for _, t := range threats {
		if t.Telemetry.RiskLevel == risk.Red || t.Telemetry.RiskLevel == risk.Yellow {
			return t
		}
	}
	return threats[0]
}

func narrativePrompt(t Threat) string {
	tel := t.Telemetry
	return fmt.Sprintf(
		"Primary: %s. Secondary: %s. Time of closest approach: %s UTC. Miss distance: %.3f km. "+
			"Relative velocity: %.3f km/s. Probability of collision: %.3e. Risk level: %s.",
		tel.PrimaryName, tel.SecondaryName, tel.TCAUTC.Format(time.RFC3339),
		tel.MinDistKm, tel.RelativeVelocityKmS, tel.Pc, tel.RiskLevel,
	)
}

// decisionFor composes the top threat's narrative text with a short
// machine-readable recommendation prefix, since spec.md's result payload
// carries the narrative in the "decision" field.
func decisionFor(t Threat, narrativeText string) string {
	var verb string
	switch t.Telemetry.RiskLevel {
	case risk.Red:
		verb = "Maneuver recommended."
	case risk.Yellow:
		verb = "Continue monitoring."
	default:
		verb = "No action required."
	}
	return strings.TrimSpace(verb + " " + narrativeText)
}
