package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/celeralabs/stx-orbital/internal/classify"
	"github.com/celeralabs/stx-orbital/internal/risk"
	"github.com/celeralabs/stx-orbital/internal/tle"
)

func TestIsManned(t *testing.T) {
	assert.True(t, classify.IsManned(25544)) // ISS
	assert.True(t, classify.IsManned(48274)) // Tiangong
	assert.False(t, classify.IsManned(40000))
}

func TestPriorityTier_Rank(t *testing.T) {
	assert.Less(t, classify.Manned.Rank(), classify.HighRisk.Rank())
	assert.Less(t, classify.HighRisk.Rank(), classify.Catalog.Rank())
}

func TestProfileFor_MannedOverridesConstellationRange(t *testing.T) {
	assert.Equal(t, risk.ISSClass, classify.ProfileFor(25544))
}

func TestProfileFor_StarlinkRangeIsConstellation(t *testing.T) {
	assert.Equal(t, risk.Constellation, classify.ProfileFor(45000))
}

func TestProfileFor_OneWebRangeIsConstellation(t *testing.T) {
	assert.Equal(t, risk.Constellation, classify.ProfileFor(47500))
}

func TestProfileFor_KuiperRangeIsConstellation(t *testing.T) {
	assert.Equal(t, risk.Constellation, classify.ProfileFor(58500))
}

func TestProfileFor_UnmatchedIDFallsBackToCommercial(t *testing.T) {
	assert.Equal(t, risk.Commercial, classify.ProfileFor(1000))
}

func TestPriorityFor_MannedTakesPrecedenceOverOrbitChecks(t *testing.T) {
	op := tle.OrbitParams{PerigeeKm: 100, Eccentricity: 0.5}
	tier, reason := classify.PriorityFor(25544, op)
	assert.Equal(t, classify.Manned, tier)
	assert.NotEmpty(t, reason)
}

func TestPriorityFor_DecayingOrbitIsHighRisk(t *testing.T) {
	op := tle.OrbitParams{PerigeeKm: 250, Eccentricity: 0.001}
	tier, reason := classify.PriorityFor(40000, op)
	assert.Equal(t, classify.HighRisk, tier)
	assert.Equal(t, "decaying orbit", reason)
}

func TestPriorityFor_HighlyEllipticalIsHighRisk(t *testing.T) {
	op := tle.OrbitParams{PerigeeKm: 500, Eccentricity: 0.2}
	tier, reason := classify.PriorityFor(40000, op)
	assert.Equal(t, classify.HighRisk, tier)
	assert.Equal(t, "highly elliptical", reason)
}

func TestPriorityFor_ActiveDecayByMeanMotionDerivative(t *testing.T) {
	op := tle.OrbitParams{PerigeeKm: 500, Eccentricity: 0.001, MeanMotionDerivative: -2e-5}
	tier, reason := classify.PriorityFor(40000, op)
	assert.Equal(t, classify.HighRisk, tier)
	assert.Equal(t, "active decay/maneuver", reason)
}

func TestPriorityFor_NominalOrbitIsCatalogTier(t *testing.T) {
	op := tle.OrbitParams{PerigeeKm: 700, Eccentricity: 0.001, MeanMotionDerivative: 1e-8}
	tier, reason := classify.PriorityFor(40000, op)
	assert.Equal(t, classify.Catalog, tier)
	assert.Empty(t, reason)
}
