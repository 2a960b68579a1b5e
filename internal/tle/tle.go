// Package tle parses NORAD two-line element sets and wraps an SGP4
// propagator that advances a TLE to position and velocity at an arbitrary
// batch of UTC epochs. The propagator itself lives in sgp4.go, adapted from
// the simplified-SGP4 (STR#3) model; it applies near-Earth terms only, with
// no SDP4 deep-space corrections. This file owns parsing, checksums and
// the derived orbit parameters cached alongside every catalog entry.
package tle

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// TLE is an immutable two-line element record. Name defaults to "SATELLITE"
// when a file upload omits it (spec §6).
type TLE struct {
	Name  string
	Line1 string
	Line2 string
}

// ParseError reports why a TLE failed to parse or validate.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "tle: " + e.Reason }

func parseErrf(format string, args ...interface{}) *ParseError {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}

// Parse validates and wraps a TLE triple. Both lines must be 69 characters,
// start with "1 "/"2 " respectively, and pass the mod-10 checksum.
func Parse(name, line1, line2 string) (*TLE, error) {
	if name == "" {
		name = "SATELLITE"
	}
	if len(line1) != 69 || !strings.HasPrefix(line1, "1 ") {
		return nil, parseErrf("line1 malformed: %q", line1)
	}
	if len(line2) != 69 || !strings.HasPrefix(line2, "2 ") {
		return nil, parseErrf("line2 malformed: %q", line2)
	}
	if !checksumOK(line1) {
		return nil, parseErrf("line1 checksum failed")
	}
	if !checksumOK(line2) {
		return nil, parseErrf("line2 checksum failed")
	}
	if line1[2:7] != line2[2:7] {
		return nil, parseErrf("catalog number mismatch: %q vs %q", line1[2:7], line2[2:7])
	}
	return &TLE{Name: name, Line1: line1, Line2: line2}, nil
}

// checksumOK replicates the NORAD mod-10 line checksum: every digit adds its
// value, every '-' adds 1, everything else adds 0, summed mod 10 must equal
// the final column. Adapted from FengXuebin-gnssgo/src/tle.go's checksum().
func checksumOK(line string) bool {
	if len(line) < 69 {
		return false
	}
	sum := 0
	for i := 0; i < 68; i++ {
		c := line[i]
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return int(line[68]-'0') == sum%10
}

// NoradID returns the catalog ID embedded in line2 (spec §3: positions 2-6,
// 0-indexed).
func (t *TLE) NoradID() (int, error) {
	s := strings.TrimSpace(t.Line2[2:7])
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, parseErrf("bad norad id %q: %v", s, err)
	}
	return id, nil
}

// field extracts a fixed-width column (0-indexed, half-open [start,end)),
// trims surrounding space, and is tolerant of a leading '+' NORAD elements
// never emit.
func field(line string, start, end int) string {
	if end > len(line) {
		end = len(line)
	}
	return strings.TrimSpace(line[start:end])
}

func parseFloatField(line string, start, end int) (float64, error) {
	s := field(line, start, end)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// OrbitParams is derived from a TLE per spec §4.6 and cached alongside every
// catalog entry. Invariant: PerigeeKm <= ApogeeKm.
type OrbitParams struct {
	PerigeeKm             float64
	ApogeeKm              float64
	InclinationDeg        float64
	RAANDeg               float64
	MeanMotionRevsPerDay  float64
	Eccentricity          float64
	MeanMotionDerivative  float64
}

const earthMu = 398600.4418 // km^3/s^2, WGS-72/84 standard gravitational parameter
const earthRadiusKm = 6378.0

// DeriveOrbitParams computes OrbitParams from a TLE using the exact column
// semantics and formulas of spec §4.6.
func DeriveOrbitParams(t *TLE) (OrbitParams, error) {
	meanMotion, err := parseFloatField(t.Line2, 52, 63)
	if err != nil {
		return OrbitParams{}, parseErrf("mean motion: %v", err)
	}
	eccentricity, err := strconv.ParseFloat("0."+strings.TrimSpace(t.Line2[26:33]), 64)
	if err != nil {
		return OrbitParams{}, parseErrf("eccentricity: %v", err)
	}
	inclination, err := parseFloatField(t.Line2, 8, 16)
	if err != nil {
		return OrbitParams{}, parseErrf("inclination: %v", err)
	}
	raan, err := parseFloatField(t.Line2, 17, 25)
	if err != nil {
		return OrbitParams{}, parseErrf("raan: %v", err)
	}
	ndot, err := parseFloatField(t.Line1, 33, 43)
	if err != nil {
		return OrbitParams{}, parseErrf("mean motion derivative: %v", err)
	}

	nRadPerSec := meanMotion * 2 * math.Pi / 86400.0
	if nRadPerSec <= 0 {
		return OrbitParams{}, parseErrf("non-positive mean motion: %v", meanMotion)
	}
	a := math.Cbrt(earthMu / (nRadPerSec * nRadPerSec))

	perigee := a*(1-eccentricity) - earthRadiusKm
	apogee := a*(1+eccentricity) - earthRadiusKm
	if perigee > apogee {
		perigee, apogee = apogee, perigee
	}

	return OrbitParams{
		PerigeeKm:            perigee,
		ApogeeKm:             apogee,
		InclinationDeg:       inclination,
		RAANDeg:              raan,
		MeanMotionRevsPerDay: meanMotion,
		Eccentricity:         eccentricity,
		MeanMotionDerivative: ndot,
	}, nil
}

// Epoch returns the TLE's element-set epoch as a UTC time, decoded from the
// 2-digit year + fractional day-of-year in line1 columns 18-32.
func (t *TLE) Epoch() (time.Time, error) {
	yy, err := parseFloatField(t.Line1, 18, 20)
	if err != nil {
		return time.Time{}, parseErrf("epoch year: %v", err)
	}
	doy, err := parseFloatField(t.Line1, 20, 32)
	if err != nil {
		return time.Time{}, parseErrf("epoch day: %v", err)
	}
	year := int(yy) + 1900
	if yy < 57 {
		year = int(yy) + 2000
	}
	base := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration((doy - 1) * float64(24*time.Hour))), nil
}

// ParseUploadedFile implements the upload parse loop from spec §6: blank
// lines trimmed, a line starting "1 " is line-1, the preceding non-"1 "/"2 "
// line (if any) is the object name, a valid pair is (line1, line2 starting
// "2 "). Per-entry parse failures are skipped, not fatal; a file yielding
// zero valid TLEs is reported as an InputError via the returned error.
func ParseUploadedFile(r io.Reader) ([]*TLE, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	var out []*TLE
	pendingName := ""
	prevLine := ""
	var line1 string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "1 "):
			if prevLine != "" && !strings.HasPrefix(prevLine, "1 ") && !strings.HasPrefix(prevLine, "2 ") {
				pendingName = prevLine
			} else {
				pendingName = "SATELLITE"
			}
			line1 = line
		case strings.HasPrefix(line, "2 ") && line1 != "":
			if t, err := Parse(pendingName, line1, line); err == nil {
				out = append(out, t)
			}
			line1 = ""
			pendingName = ""
		}
		prevLine = line
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading tle upload: %w", err)
	}
	if len(out) == 0 {
		return nil, parseErrf("no valid TLEs in upload")
	}
	return out, nil
}
