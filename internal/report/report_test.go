package report_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celeralabs/stx-orbital/internal/geometry"
	"github.com/celeralabs/stx-orbital/internal/maneuver"
	"github.com/celeralabs/stx-orbital/internal/report"
	"github.com/celeralabs/stx-orbital/internal/risk"
	"github.com/celeralabs/stx-orbital/internal/screener"
)

func sampleTelemetry() *screener.Telemetry {
	return &screener.Telemetry{
		PrimaryName:         "ISS (ZARYA)",
		SecondaryName:       "SECONDARY-40001",
		TCAUTC:              time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		MinDistKm:           2.345,
		RelativeVelocityKmS: 7.5,
		Pc:                  1.2e-6,
		RiskLevel:           risk.Yellow,
		Geometry:            geometry.RIC{RadialKm: 0.5, InTrackKm: 2.1, CrossTrackKm: 0.3},
		ProfileType:         risk.ISSClass,
	}
}

func TestNewLocalRenderer_CreatesRootDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "reports")
	r, err := report.NewLocalRenderer(root)
	require.NoError(t, err)
	assert.Equal(t, root, r.RootDir())

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRender_WritesWellFormedPDFUnderJobID(t *testing.T) {
	root := t.TempDir()
	r, err := report.NewLocalRenderer(root)
	require.NoError(t, err)

	filename, err := r.Render("job-123", sampleTelemetry(), "Conjunction poses yellow-level risk; continue monitoring.")
	require.NoError(t, err)
	assert.Equal(t, "job-123_summary.pdf", filename)

	data, err := os.ReadFile(filepath.Join(root, filename))
	require.NoError(t, err)
	body := string(data)
	assert.True(t, strings.HasPrefix(body, "%PDF-1.4"))
	assert.True(t, strings.Contains(body, "%%EOF"))
	assert.True(t, strings.Contains(body, "startxref"))
	assert.True(t, strings.Contains(body, "ISS (ZARYA)"))
}

func TestRender_IncludesManeuverBlockWhenPresent(t *testing.T) {
	root := t.TempDir()
	r, err := report.NewLocalRenderer(root)
	require.NoError(t, err)

	telemetry := sampleTelemetry()
	m := maneuver.Plan(0.4, telemetry.MinDistKm, telemetry.TCAUTC)
	telemetry.Maneuver = &m

	filename, err := r.Render("job-456", telemetry, "fallback narrative text")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, filename))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Recommended maneuver")
}

func TestRender_RejectsJobIDThatEscapesRootDir(t *testing.T) {
	root := t.TempDir()
	r, err := report.NewLocalRenderer(root)
	require.NoError(t, err)

	_, err = r.Render("../../etc/passwd", sampleTelemetry(), "narrative")
	assert.Error(t, err)
}

func TestRender_EscapesParenthesesAndBackslashesInNarrative(t *testing.T) {
	root := t.TempDir()
	r, err := report.NewLocalRenderer(root)
	require.NoError(t, err)

	filename, err := r.Render("job-789", sampleTelemetry(), `edge case: (risk) path C:\data`)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, filename))
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, `\(risk\)`)
	assert.Contains(t, body, `C:\\data`)
}
