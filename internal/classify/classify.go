// Package classify maps a NORAD catalog ID and its TLE-derived orbit to an
// operational profile and a risk-priority tier (spec §4.5).
package classify

import (
	"github.com/celeralabs/stx-orbital/internal/risk"
	"github.com/celeralabs/stx-orbital/internal/tle"
)

// PriorityTier ranks a catalog object for sort ordering in a job result.
type PriorityTier string

const (
	Manned   PriorityTier = "MANNED"
	HighRisk PriorityTier = "HIGH-RISK"
	Catalog  PriorityTier = "CATALOG"
)

// Rank gives the numeric sort rank used by spec §4.10 step 4:
// MANNED=0 < HIGH-RISK=1 < CATALOG=2.
func (p PriorityTier) Rank() int {
	switch p {
	case Manned:
		return 0
	case HighRisk:
		return 1
	default:
		return 2
	}
}

// mannedNoradIDs is the fixed manned-asset set from spec §4.5.
var mannedNoradIDs = map[int]bool{
	25544: true, // ISS
	48274: true, // Tiangong
}

// IsManned reports whether noradID is in the fixed manned set.
func IsManned(noradID int) bool {
	return mannedNoradIDs[noradID]
}

// idRange is a closed interval [lo, hi] of NORAD catalog IDs.
type idRange struct{ lo, hi int }

func (r idRange) contains(id int) bool { return id >= r.lo && id <= r.hi }

// Constellation operator ranges from spec §4.5. The Starlink ranges overlap
// the OneWeb and Kuiper ranges; ProfileFor below resolves the overlap using
// the fixed priority order documented in spec §9 (Manned > Starlink > OneWeb
// > Kuiper > Commercial) rather than guessing at a disambiguation rule.
var (
	starlinkRanges = []idRange{{44000, 46000}, {46500, 59999}}
	onewebRanges   = []idRange{{47000, 47999}, {48000, 48500}}
	kuiperRange    = idRange{58000, 59000}
)

func inAny(ranges []idRange, id int) bool {
	for _, r := range ranges {
		if r.contains(id) {
			return true
		}
	}
	return false
}

// ProfileFor selects the operational profile for a catalog object by NORAD
// ID table lookup, resolving the documented Starlink/OneWeb/Kuiper range
// overlap with the frozen priority order: Manned > Starlink > OneWeb >
// Kuiper > Commercial.
func ProfileFor(noradID int) risk.ProfileType {
	switch {
	case IsManned(noradID):
		return risk.ISSClass
	case inAny(starlinkRanges, noradID):
		return risk.Constellation
	case inAny(onewebRanges, noradID):
		return risk.Constellation
	case kuiperRange.contains(noradID):
		return risk.Constellation
	default:
		return risk.Commercial
	}
}

// PriorityFor derives the priority tier and a human-readable reason from a
// catalog object's NORAD ID and TLE-derived orbit, per spec §4.5:
//
//	Manned asset                        -> MANNED
//	perigee altitude < 300 km           -> HIGH-RISK ("decaying orbit")
//	eccentricity > 0.1                  -> HIGH-RISK ("highly elliptical")
//	|mean-motion derivative| > 1e-5     -> HIGH-RISK ("active decay/maneuver")
//	otherwise                           -> CATALOG
func PriorityFor(noradID int, op tle.OrbitParams) (PriorityTier, string) {
	if IsManned(noradID) {
		return Manned, "manned asset"
	}
	if op.PerigeeKm < 300 {
		return HighRisk, "decaying orbit"
	}
	if op.Eccentricity > 0.1 {
		return HighRisk, "highly elliptical"
	}
	if absf(op.MeanMotionDerivative) > 1e-5 {
		return HighRisk, "active decay/maneuver"
	}
	return Catalog, ""
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
