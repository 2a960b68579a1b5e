package screener

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/celeralabs/stx-orbital/internal/geometry"
)

// renderRICPlot draws the relative trajectory's radial/in-track projection
// around TCA and returns a base64-encoded PNG (spec §4.8 step 9). Grounded
// on the teacher's gridplotter.go: gonum/plot + plotter.NewLine + an
// in-memory canvas, generalized from a ring-cell time series to an RIC
// scatter around the time of closest approach. Each windowed sample's
// radial/in-track coordinates reuse geometry.Compute directly, so the plot
// axes are exactly the ones the screener already classified against.
func renderRICPlot(primaryName, secondaryName string, times []time.Time, primaryPos, primaryVel, secondaryPos, secondaryVel [][3]float64, minIdx int) (string, error) {
	lo, hi := windowAround(minIdx, len(times), 20)

	pts := make(plotter.XYs, 0, hi-lo)
	for i := lo; i < hi; i++ {
		ric, err := geometry.Compute(primaryPos[i], primaryVel[i], secondaryPos[i], secondaryVel[i])
		if err != nil {
			continue
		}
		pts = append(pts, plotter.XY{X: ric.InTrackKm, Y: ric.RadialKm})
	}
	if len(pts) == 0 {
		return "", fmt.Errorf("screener: no usable points for ric plot")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("RIC relative trajectory: %s vs %s", primaryName, secondaryName)
	p.X.Label.Text = "In-track (km)"
	p.Y.Label.Text = "Radial (km)"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return "", fmt.Errorf("screener: building ric plot line: %w", err)
	}
	line.Width = vg.Points(1.5)
	p.Add(line)

	tcaIdx := minIdx - lo
	if tcaIdx >= 0 && tcaIdx < len(pts) {
		scatter, err := plotter.NewScatter(plotter.XYs{pts[tcaIdx]})
		if err != nil {
			return "", fmt.Errorf("screener: building tca marker: %w", err)
		}
		scatter.GlyphStyle.Radius = vg.Points(4)
		p.Add(scatter)
	}

	canvas := vgimg.New(6*vg.Inch, 6*vg.Inch)
	p.Draw(draw.New(canvas))

	var buf bytes.Buffer
	png := vgimg.PngCanvas{Canvas: canvas}
	if _, err := png.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("screener: encoding ric plot png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// windowAround returns a [lo, hi) index window of at most 2*half+1 samples
// centered on idx, clamped to [0, n).
func windowAround(idx, n, half int) (int, int) {
	lo := idx - half
	if lo < 0 {
		lo = 0
	}
	hi := idx + half + 1
	if hi > n {
		hi = n
	}
	return lo, hi
}
