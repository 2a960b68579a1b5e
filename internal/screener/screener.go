// Package screener implements the per-pair conjunction screener (spec §4.8):
// dense-grid SGP4 sampling, argmin distance, RIC/Pc/risk/maneuver, and an
// optional RIC plot rendered when the miss distance is tight.
package screener

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/celeralabs/stx-orbital/internal/geometry"
	"github.com/celeralabs/stx-orbital/internal/maneuver"
	"github.com/celeralabs/stx-orbital/internal/probability"
	"github.com/celeralabs/stx-orbital/internal/risk"
	"github.com/celeralabs/stx-orbital/internal/tle"
)

// ErrPropagatorFailed reports that one or both TLEs could not be propagated
// over the requested grid. Recovery (per spec §7) is to skip the pair.
type ErrPropagatorFailed struct {
	Err error
}

func (e *ErrPropagatorFailed) Error() string { return fmt.Sprintf("screener: propagation failed: %v", e.Err) }
func (e *ErrPropagatorFailed) Unwrap() error  { return e.Err }

// Telemetry is the immutable result of one pair screening (spec §3).
type Telemetry struct {
	PrimaryName          string
	SecondaryName        string
	TCAUTC               time.Time
	MinDistKm            float64
	RelativeVelocityKmS  float64
	Pc                   float64
	RiskLevel            risk.Level
	Geometry             geometry.RIC
	CombinedCovarianceKm float64
	Maneuver             *maneuver.Maneuver
	ProfileName          risk.ProfileType
	ProfileType          risk.ProfileType
	Thresholds           risk.Profile
	RICPlotPNGB64        string
}

// Params configures one screening call; zero fields are replaced by the
// caller with spec.md §4.8's defaults (horizon=7 days, grid=2000 samples).
type Params struct {
	HorizonDays    float64
	Grid           int
	SuppressGreen  bool
}

// Screen runs the dense-grid search for one primary/secondary pair and
// returns Telemetry, or (nil, nil) if suppress_green discards a GREEN
// result (spec §4.8 step 11).
func Screen(ctx context.Context, primaryName string, primaryProp *tle.Propagator, secondaryName string, secondaryProp *tle.Propagator, profile risk.Profile, p Params) (*Telemetry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	times := uniformGrid(time.Now(), p.HorizonDays, p.Grid)

	primaryPos, primaryVel, err := primaryProp.Propagate(times)
	if err != nil {
		return nil, &ErrPropagatorFailed{Err: err}
	}
	secondaryPos, secondaryVel, err := secondaryProp.Propagate(times)
	if err != nil {
		return nil, &ErrPropagatorFailed{Err: err}
	}

	minIdx := 0
	minDist := math.Inf(1)
	for i := range times {
		d := dist(primaryPos[i], secondaryPos[i])
		if d < minDist {
			minDist = d
			minIdx = i
		}
	}
	tca := times[minIdx]

	ric, err := geometry.Compute(primaryPos[minIdx], primaryVel[minIdx], secondaryPos[minIdx], secondaryVel[minIdx])
	if err != nil {
		return nil, fmt.Errorf("screener: ric computation failed: %w", err)
	}

	combinedSigma := profile.DefaultCovarianceKm
	pc := probability.Pc(minDist, combinedSigma)
	level := risk.Classify(profile, minDist, pc)

	var m *maneuver.Maneuver
	if minDist < profile.ManeuverKm {
		plan := maneuver.Plan(ric.RadialKm, minDist, tca)
		m = &plan
	}

	var ricPlotB64 string
	if minDist < 10 {
		b64, err := renderRICPlot(primaryName, secondaryName, times, primaryPos, primaryVel, secondaryPos, secondaryVel, minIdx)
		if err == nil {
			ricPlotB64 = b64
		}
		// A failed plot render degrades gracefully (spec §7): the telemetry
		// is still returned, just without ric_plot_png_b64.
	}

	telemetry := &Telemetry{
		PrimaryName:          primaryName,
		SecondaryName:        secondaryName,
		TCAUTC:               tca,
		MinDistKm:            minDist,
		RelativeVelocityKmS:  ric.RelativeVelKmS,
		Pc:                   pc,
		RiskLevel:            level,
		Geometry:             ric,
		CombinedCovarianceKm: combinedSigma,
		Maneuver:             m,
		ProfileName:          profile.Name,
		ProfileType:          profile.Name,
		Thresholds:           profile,
		RICPlotPNGB64:        ricPlotB64,
	}

	if p.SuppressGreen && level == risk.Green {
		return nil, nil
	}
	return telemetry, nil
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
