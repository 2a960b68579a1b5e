package screener_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celeralabs/stx-orbital/internal/risk"
	"github.com/celeralabs/stx-orbital/internal/screener"
	"github.com/celeralabs/stx-orbital/internal/testfixtures"
	"github.com/celeralabs/stx-orbital/internal/tle"
)

func buildPropagator(t *testing.T, primary *tle.TLE) *tle.Propagator {
	t.Helper()
	prop, err := tle.Build(primary)
	require.NoError(t, err)
	return prop
}

func defaultScreenerParams() screener.Params {
	return screener.Params{HorizonDays: 1.0, Grid: 40}
}

func TestScreen_RejectsAlreadyCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := testfixtures.ISS(25544)
	secondary := testfixtures.Secondary(40001, 0.2, 0)
	profile := risk.Profiles[risk.Commercial]

	_, err := screener.Screen(ctx, "PRIMARY", buildPropagator(t, primary), "SECONDARY", buildPropagator(t, secondary), profile, defaultScreenerParams())
	assert.Error(t, err)
}

func TestScreen_ProducesConsistentTelemetry(t *testing.T) {
	primary := testfixtures.ISS(25544)
	secondary := testfixtures.Secondary(40001, 0.2, 0)
	profile := risk.Profiles[risk.Commercial]

	before := time.Now()
	telemetry, err := screener.Screen(context.Background(), "PRIMARY", buildPropagator(t, primary), "SECONDARY", buildPropagator(t, secondary), profile, defaultScreenerParams())
	require.NoError(t, err)
	require.NotNil(t, telemetry)

	assert.Equal(t, "PRIMARY", telemetry.PrimaryName)
	assert.Equal(t, "SECONDARY", telemetry.SecondaryName)
	assert.GreaterOrEqual(t, telemetry.MinDistKm, 0.0)
	assert.GreaterOrEqual(t, telemetry.RelativeVelocityKmS, 0.0)
	assert.True(t, telemetry.TCAUTC.After(before.Add(-time.Minute)))
	assert.True(t, telemetry.TCAUTC.Before(before.Add(25*time.Hour)))
	assert.Contains(t, []risk.Level{risk.Green, risk.Yellow, risk.Red}, telemetry.RiskLevel)
	assert.Equal(t, profile.Name, telemetry.ProfileType)
}

func TestScreen_SuppressGreenDiscardsForcedGreenResult(t *testing.T) {
	primary := testfixtures.ISS(25544)
	secondary := testfixtures.Secondary(40001, 0.2, 0)

	// Thresholds no real miss distance or Pc can cross: every result classifies GREEN.
	alwaysGreen := risk.Profile{
		Name: risk.Commercial, YellowKm: -1, RedKm: -1, YellowPc: 2, RedPc: 2,
		ManeuverKm: -1, DefaultCovarianceKm: 1.0,
	}

	params := defaultScreenerParams()
	params.SuppressGreen = true
	telemetry, err := screener.Screen(context.Background(), "PRIMARY", buildPropagator(t, primary), "SECONDARY", buildPropagator(t, secondary), alwaysGreen, params)
	require.NoError(t, err)
	assert.Nil(t, telemetry)
}

func TestScreen_WithoutSuppressionReturnsGreenResult(t *testing.T) {
	primary := testfixtures.ISS(25544)
	secondary := testfixtures.Secondary(40001, 0.2, 0)

	alwaysGreen := risk.Profile{
		Name: risk.Commercial, YellowKm: -1, RedKm: -1, YellowPc: 2, RedPc: 2,
		ManeuverKm: -1, DefaultCovarianceKm: 1.0,
	}

	telemetry, err := screener.Screen(context.Background(), "PRIMARY", buildPropagator(t, primary), "SECONDARY", buildPropagator(t, secondary), alwaysGreen, defaultScreenerParams())
	require.NoError(t, err)
	require.NotNil(t, telemetry)
	assert.Equal(t, risk.Green, telemetry.RiskLevel)
	assert.Nil(t, telemetry.Maneuver)
}

func TestScreen_ManeuverTriggeredWhenThresholdIsGenerous(t *testing.T) {
	primary := testfixtures.ISS(25544)
	secondary := testfixtures.Secondary(40001, 0.2, 0)

	// A maneuver threshold no miss distance can exceed forces the maneuver
	// branch regardless of the actual propagated separation.
	alwaysManeuver := risk.Profile{
		Name: risk.Commercial, YellowKm: 1e9, RedKm: 1e9, YellowPc: 2, RedPc: 2,
		ManeuverKm: 1e9, DefaultCovarianceKm: 1.0,
	}

	telemetry, err := screener.Screen(context.Background(), "PRIMARY", buildPropagator(t, primary), "SECONDARY", buildPropagator(t, secondary), alwaysManeuver, defaultScreenerParams())
	require.NoError(t, err)
	require.NotNil(t, telemetry)
	require.NotNil(t, telemetry.Maneuver)
	assert.True(t, telemetry.Maneuver.ExecutionTime.Before(telemetry.TCAUTC))
}
