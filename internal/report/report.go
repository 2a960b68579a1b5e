// Package report renders one screened conjunction's telemetry and narrative
// into a single-page PDF summary (spec §6), written under a configured
// report root directory and validated against path traversal before every
// write or serve.
//
// No example repo in the corpus imports a PDF library (gofpdf, unidoc,
// etc.), and the document this package produces is a single fixed-layout
// page of preformatted text lines — well inside what the PDF 1.4 object
// model expresses directly. Rather than introduce a dependency nothing in
// the corpus grounds, this package emits the object stream by hand,
// documented in DESIGN.md as the one stdlib-only exception.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/celeralabs/stx-orbital/internal/screener"
	"github.com/celeralabs/stx-orbital/internal/security"
)

// Renderer produces a summary document for one telemetry/narrative pair and
// returns the filename it was written under (relative to its configured
// root).
type Renderer interface {
	Render(jobID string, t *screener.Telemetry, narrative string) (filename string, err error)
}

// LocalRenderer writes PDFs to a directory on the local filesystem.
type LocalRenderer struct {
	rootDir string
}

// NewLocalRenderer builds a renderer rooted at rootDir, creating it if
// necessary.
func NewLocalRenderer(rootDir string) (*LocalRenderer, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("report: creating root dir: %w", err)
	}
	return &LocalRenderer{rootDir: rootDir}, nil
}

// RootDir returns the directory new reports are written under; httpapi
// validates served paths against it.
func (r *LocalRenderer) RootDir() string { return r.rootDir }

// Render writes a one-page PDF summarizing t and narrative and returns its
// filename.
func (r *LocalRenderer) Render(jobID string, t *screener.Telemetry, narrative string) (string, error) {
	filename := fmt.Sprintf("%s_summary.pdf", jobID)
	path := filepath.Join(r.rootDir, filename)

	if err := security.ValidatePathWithinDirectory(path, r.rootDir); err != nil {
		return "", fmt.Errorf("report: refusing unsafe output path: %w", err)
	}

	body := buildPDF(t, narrative)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("report: writing %s: %w", path, err)
	}
	return filename, nil
}

// lines formats the telemetry + narrative into the fixed set of text lines
// that appear on the page, top to bottom.
func lines(t *screener.Telemetry, narrative string) []string {
	out := []string{
		"Conjunction Screening Summary",
		"",
		fmt.Sprintf("Primary:    %s", t.PrimaryName),
		fmt.Sprintf("Secondary:  %s", t.SecondaryName),
		fmt.Sprintf("TCA (UTC):  %s", t.TCAUTC.Format(time.RFC3339)),
		fmt.Sprintf("Miss dist:  %.3f km", t.MinDistKm),
		fmt.Sprintf("Rel. vel:   %.3f km/s", t.RelativeVelocityKmS),
		fmt.Sprintf("Pc:         %.3e", t.Pc),
		fmt.Sprintf("Risk:       %s", t.RiskLevel),
		fmt.Sprintf("Profile:    %s", t.ProfileType),
		"",
		fmt.Sprintf("Radial:     %.3f km", t.Geometry.RadialKm),
		fmt.Sprintf("In-track:   %.3f km", t.Geometry.InTrackKm),
		fmt.Sprintf("Cross-trk:  %.3f km", t.Geometry.CrossTrackKm),
	}
	if t.Maneuver != nil {
		out = append(out,
			"",
			"Recommended maneuver:",
			fmt.Sprintf("  Burn:       %s", t.Maneuver.BurnType),
			fmt.Sprintf("  Delta-v:    %.2f m/s", t.Maneuver.DeltaVMS),
			fmt.Sprintf("  Execution:  %s", t.Maneuver.ExecutionTime.Format(time.RFC3339)),
			fmt.Sprintf("  Post-miss:  %.3f km", t.Maneuver.PostManeuverMissKm),
		)
	}
	out = append(out, "", "Narrative:")
	out = append(out, wrap(narrative, 90)...)
	return out
}

// wrap breaks s into lines of at most width runes on word boundaries.
func wrap(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}
	var out []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			out = append(out, line)
			line = w
			continue
		}
		line += " " + w
	}
	out = append(out, line)
	return out
}

// escapePDFString escapes the characters PDF literal strings require.
func escapePDFString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `(`, `\(`)
	s = strings.ReplaceAll(s, `)`, `\)`)
	return s
}

// buildPDF assembles a minimal single-page PDF 1.4 document: a catalog, a
// page tree, a Helvetica content stream placing each line via Td/Tj, and the
// cross-reference table a conforming reader needs to open the file.
func buildPDF(t *screener.Telemetry, narrative string) []byte {
	var content bytes.Buffer
	content.WriteString("BT /F1 10 Tf 50 770 Td 14 TL\n")
	for _, line := range lines(t, narrative) {
		fmt.Fprintf(&content, "(%s) Tj T*\n", escapePDFString(line))
	}
	content.WriteString("ET\n")
	stream := content.Bytes()

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, 6)
	writeObj := func(n int, body string) {
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, body)
	}

	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	writeObj(3, "<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 5 0 R >> >> /MediaBox [0 0 612 792] /Contents 4 0 R >>")

	offsets[4] = buf.Len()
	fmt.Fprintf(&buf, "4 0 obj\n<< /Length %d >>\nstream\n", len(stream))
	buf.Write(stream)
	buf.WriteString("\nendstream\nendobj\n")

	writeObj(5, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 6\n0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF", xrefOffset)

	return buf.Bytes()
}
