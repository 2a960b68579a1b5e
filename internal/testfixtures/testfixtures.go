// Package testfixtures builds column-correct, checksum-valid TLE fixtures
// for use across the test suites of tle, catalog, pipeline, screener, jobs,
// and httpapi. Centralizing fixture construction avoids every
// package's tests re-deriving the fixed-column NORAD layout by hand.
package testfixtures

import (
	"fmt"
	"strconv"

	"github.com/celeralabs/stx-orbital/internal/tle"
)

func checksum(content string) byte {
	sum := 0
	for i := 0; i < len(content); i++ {
		c := content[i]
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return byte('0' + sum%10)
}

// Params describes the orbital elements used to build one fixture TLE; zero
// fields fall back to LEO-reasonable defaults.
type Params struct {
	NoradID         int
	Name            string
	EpochDayOfYear  float64 // e.g. 264.51782528
	EpochYear2Digit int     // e.g. 8 for 2008
	MeanMotionRPD   float64 // revs/day
	Eccentricity    float64 // 0..1, e.g. 0.0006703
	InclinationDeg  float64
	RAANDeg         float64
	ArgPerigeeDeg   float64
	MeanAnomalyDeg  float64
}

// withDefaults fills zero-valued fields with an ISS-like circular LEO.
func (p Params) withDefaults() Params {
	if p.NoradID == 0 {
		p.NoradID = 25544
	}
	if p.Name == "" {
		p.Name = "TESTSAT"
	}
	if p.EpochDayOfYear == 0 {
		p.EpochDayOfYear = 200.5
	}
	if p.EpochYear2Digit == 0 {
		p.EpochYear2Digit = 24
	}
	if p.MeanMotionRPD == 0 {
		p.MeanMotionRPD = 15.5
	}
	if p.InclinationDeg == 0 {
		p.InclinationDeg = 51.6
	}
	if p.RAANDeg == 0 {
		p.RAANDeg = 247.0
	}
	if p.ArgPerigeeDeg == 0 {
		p.ArgPerigeeDeg = 130.0
	}
	if p.MeanAnomalyDeg == 0 {
		p.MeanAnomalyDeg = 325.0
	}
	return p
}

// Build constructs a checksum-valid *tle.TLE from p. Every field is built to
// its exact NORAD fixed-column width and the two content strings are
// length-asserted before a checksum digit is appended, so a width mistake
// here fails loudly instead of producing a silently misaligned fixture.
func Build(p Params) *tle.TLE {
	p = p.withDefaults()

	norad := fmt.Sprintf("%05d", p.NoradID)
	intlDesig := fmt.Sprintf("%02d001A  ", p.EpochYear2Digit%100)
	epoch := fmt.Sprintf("%02d%012.8f", p.EpochYear2Digit%100, p.EpochDayOfYear)
	elset := fmt.Sprintf("%4d", 999)

	line1Content := "1 " + norad + "U " + intlDesig + " " + epoch + " " +
		" .00000100" + " " + " 00000-0" + " " + " 10000-4" + " 0 " + elset
	line1 := mustLen68(line1Content, "line1")
	line1 += string(checksum(line1))

	ecc := strconv.FormatFloat(p.Eccentricity, 'f', 7, 64)
	if len(ecc) >= 2 {
		ecc = ecc[2:] // strip the leading "0."
	}
	for len(ecc) < 7 {
		ecc += "0"
	}
	ecc = ecc[:7]

	line2Content := "2 " + norad + " " +
		fmt.Sprintf("%8.4f", p.InclinationDeg) + " " +
		fmt.Sprintf("%8.4f", p.RAANDeg) + " " +
		ecc + " " +
		fmt.Sprintf("%8.4f", p.ArgPerigeeDeg) + " " +
		fmt.Sprintf("%8.4f", p.MeanAnomalyDeg) + " " +
		fmt.Sprintf("%11.8f", p.MeanMotionRPD) + "00001"
	line2 := mustLen68(line2Content, "line2")
	line2 += string(checksum(line2))

	t, err := tle.Parse(p.Name, line1, line2)
	if err != nil {
		panic(fmt.Sprintf("testfixtures: built an invalid TLE: %v", err))
	}
	return t
}

func mustLen68(content, label string) string {
	if len(content) != 68 {
		panic(fmt.Sprintf("testfixtures: %s content is %d chars, want 68: %q", label, len(content), content))
	}
	return content
}

// ISS returns a fixture with ISS-like elements and the given NORAD ID.
func ISS(noradID int) *tle.TLE {
	return Build(Params{NoradID: noradID, Name: "ISS (ZARYA)"})
}

// Secondary returns a fixture offset in mean anomaly (and optionally
// inclination) from an ISS-like primary, for pairwise screening tests.
func Secondary(noradID int, meanAnomalyOffsetDeg, inclinationOffsetDeg float64) *tle.TLE {
	p := Params{
		NoradID:        noradID,
		Name:           fmt.Sprintf("SECONDARY-%d", noradID),
		InclinationDeg: 51.6 + inclinationOffsetDeg,
		MeanAnomalyDeg: normalizeDeg(325.0 + meanAnomalyOffsetDeg),
	}
	return Build(p)
}

func normalizeDeg(d float64) float64 {
	for d < 0 {
		d += 360
	}
	for d >= 360 {
		d -= 360
	}
	return d
}
