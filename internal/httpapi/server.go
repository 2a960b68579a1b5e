// Package httpapi exposes the screening core over HTTP (spec §4.1): an
// upload endpoint that submits an asynchronous job, a status-polling
// endpoint, and a PDF download endpoint.
//
// Grounded on the teacher's internal/api.Server: a Server struct holding a
// cached *http.ServeMux behind a lazy ServeMux() accessor, a
// LoggingMiddleware with colored status codes, a writeJSONError helper, and
// a Start(ctx, listen) method that runs http.Server in the background and
// shuts it down gracefully on context cancellation.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/celeralabs/stx-orbital/internal/jobs"
	"github.com/celeralabs/stx-orbital/internal/logging"
	"github.com/celeralabs/stx-orbital/internal/security"
)

const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxUploadBytes bounds the multipart upload body (spec §4.1).
const maxUploadBytes = 10 << 20 // 10 MiB

// Server wires the job manager into an HTTP surface.
type Server struct {
	manager         *jobs.Manager
	authToken       string
	reportRootDir   string
	defaultCatalog  int

	mux *http.ServeMux
}

// NewServer builds a Server. reportRootDir is the directory report.Renderer
// writes PDFs under; authToken is the expected bearer token ("" disables
// auth).
func NewServer(manager *jobs.Manager, authToken, reportRootDir string, defaultCatalogLimit int) *Server {
	return &Server{
		manager:        manager,
		authToken:      authToken,
		reportRootDir:  reportRootDir,
		defaultCatalog: defaultCatalogLimit,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration for every
// request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)

		portPrefix := ""
		if host := r.Host; host != "" {
			if _, p, err := net.SplitHostPort(host); err == nil {
				portPrefix = ":" + p
			}
		}
		logging.Logf(
			"[%s] %s %s%s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, portPrefix, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		logging.Logf("httpapi: failed to encode json error response: %v", err)
	}
}

// ServeMux lazily builds and caches the server's route table.
func (s *Server) ServeMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}
	mux := http.NewServeMux()
	mux.Handle("/screen", s.auth(http.HandlerFunc(s.handleScreen)))
	mux.Handle("/screen_status/{job_id}", s.auth(http.HandlerFunc(s.handleStatus)))
	mux.Handle("/summary_pdf/{job_id}", s.auth(http.HandlerFunc(s.handleSummaryPDF)))
	s.mux = mux
	return s.mux
}

func (s *Server) auth(next http.Handler) http.Handler {
	return security.BearerAuth(s.authToken, next)
}

// handleScreen accepts a multipart TLE upload and submits an asynchronous
// job, returning its job ID (spec §4.1, §4.10).
func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart upload: %v", err))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "missing 'file' form field")
		return
	}
	defer file.Close()

	buf, err := io.ReadAll(file)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("reading upload: %v", err))
		return
	}

	suppressGreen := r.FormValue("suppress_green") == "true"
	catalogLimit := s.defaultCatalog
	if v := r.FormValue("catalog_limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			catalogLimit = n
		}
	}

	id, err := s.manager.Submit(r.Context(), buf, suppressGreen, catalogLimit)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"job_id": id.String()})
}

// handleStatus reports a job's current state, and its full result payload
// once terminal (spec §4.1, §4.10).
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, err := uuid.Parse(r.PathValue("job_id"))
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid job_id")
		return
	}

	job, ok := s.manager.Status(id)
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "job not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if job.Status == jobs.Failed {
		w.WriteHeader(http.StatusInternalServerError)
	}
	_ = json.NewEncoder(w).Encode(statusPayload(job))
}

// handleSummaryPDF streams a job's rendered PDF, validating the resolved
// path stays within the configured report root (spec §6 download path).
func (s *Server) handleSummaryPDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, err := uuid.Parse(r.PathValue("job_id"))
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid job_id")
		return
	}

	job, ok := s.manager.Status(id)
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.Result == nil || job.Result.PDFFilename == "" {
		s.writeJSONError(w, http.StatusNotFound, "no summary pdf for this job")
		return
	}

	filePath := s.reportRootDir + string(os.PathSeparator) + job.Result.PDFFilename
	if err := security.ValidatePathWithinDirectory(filePath, s.reportRootDir); err != nil {
		logging.Logf("httpapi: rejected pdf download path %s: %v", filePath, err)
		s.writeJSONError(w, http.StatusForbidden, "invalid file path")
		return
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		s.writeJSONError(w, http.StatusNotFound, "summary pdf not found")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", job.Result.PDFFilename))
	_, _ = w.Write(data)
}

// statusPayload shapes a Job into the JSON wire format of spec §3.
func statusPayload(job jobs.Job) map[string]interface{} {
	out := map[string]interface{}{
		"job_id":     job.ID.String(),
		"status":     string(job.Status),
		"created_at": job.CreatedAt.UTC().Format(time.RFC3339),
	}
	if job.Err != nil {
		out["error"] = job.Err.Error()
	}
	if job.Result == nil {
		return out
	}
	r := job.Result
	out["risk_level"] = string(r.RiskLevel)
	out["decision"] = r.Decision
	out["profile"] = r.Profile
	out["profile_type"] = string(r.ProfileType)
	out["geometry"] = r.Geometry
	out["has_ric_plot"] = r.HasRICPlot
	out["screening_stats"] = map[string]int{
		"catalog_size":      r.ScreeningStats.CatalogSize,
		"stage1_candidates": r.ScreeningStats.Stage1Candidates,
		"stage2_candidates": r.ScreeningStats.Stage2Candidates,
		"screened":          r.ScreeningStats.Screened,
	}
	threats := make([]map[string]interface{}, 0, len(r.Threats))
	for _, t := range r.Threats {
		threats = append(threats, map[string]interface{}{
			"secondary_name":        t.Telemetry.SecondaryName,
			"tca_utc":               t.Telemetry.TCAUTC.UTC().Format(time.RFC3339),
			"min_dist_km":           t.Telemetry.MinDistKm,
			"relative_velocity_kms": t.Telemetry.RelativeVelocityKmS,
			"pc":                    t.Telemetry.Pc,
			"risk_level":            string(t.Telemetry.RiskLevel),
			"priority_tier":         string(t.PriorityTier),
		})
	}
	out["threats"] = threats
	if r.Maneuver != nil {
		out["maneuver"] = map[string]interface{}{
			"burn_type":              string(r.Maneuver.BurnType),
			"delta_v_ms":             r.Maneuver.DeltaVMS,
			"execution_time_utc":     r.Maneuver.ExecutionTime.UTC().Format(time.RFC3339),
			"window_start_utc":       r.Maneuver.WindowStart.UTC().Format(time.RFC3339),
			"window_end_utc":         r.Maneuver.WindowEnd.UTC().Format(time.RFC3339),
			"post_maneuver_miss_km":  r.Maneuver.PostManeuverMissKm,
			"fuel_cost_kg":           r.Maneuver.FuelCostKg,
		}
	}
	return out
}

// Start runs the HTTP server until ctx is canceled, then shuts it down
// gracefully (spec §4.1).
func (s *Server) Start(ctx context.Context, listen string) error {
	server := &http.Server{
		Addr:    listen,
		Handler: LoggingMiddleware(s.ServeMux()),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logging.Logf("httpapi: shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Logf("httpapi: shutdown error: %v", err)
			if err := server.Close(); err != nil {
				return err
			}
		}
		return nil
	case err := <-errCh:
		return err
	}
}
