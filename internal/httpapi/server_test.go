package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celeralabs/stx-orbital/internal/catalog"
	"github.com/celeralabs/stx-orbital/internal/httpapi"
	"github.com/celeralabs/stx-orbital/internal/jobs"
	"github.com/celeralabs/stx-orbital/internal/pipeline"
	"github.com/celeralabs/stx-orbital/internal/report"
	"github.com/celeralabs/stx-orbital/internal/screener"
	"github.com/celeralabs/stx-orbital/internal/testfixtures"
)

func newTestServer(t *testing.T, authToken string) (*httpapi.Server, string) {
	t.Helper()
	root := t.TempDir()
	renderer, err := report.NewLocalRenderer(root)
	require.NoError(t, err)

	deps := jobs.Dependencies{
		Catalog: catalog.New(nil, time.Hour),
		Renderer: renderer,
		PipelineParams: pipeline.Params{
			Stage1AltMarginKm: 50, Stage1IncMarginDeg: 1.0,
			Stage2HorizonDays: 1.0, Stage2Grid: 10, Stage2ThresholdKm: 5000,
		},
		ScreenerParams:      screener.Params{HorizonDays: 1.0, Grid: 20},
		NarrativeTimeout:    time.Second,
		ExternalCallTimeout: time.Second,
	}
	manager := jobs.NewManager(deps, 2)
	return httpapi.NewServer(manager, authToken, root, 0), root
}

func multipartUpload(t *testing.T, fieldName, contents string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(fieldName, "upload.tle")
	require.NoError(t, err)
	_, err = part.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHandleScreen_RejectsNonPostMethod(t *testing.T) {
	server, _ := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/screen", nil)
	rec := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleScreen_RejectsMissingFileField(t *testing.T) {
	server, _ := newTestServer(t, "")
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/screen", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleScreen_AcceptsValidUploadAndReturnsJobID(t *testing.T) {
	server, _ := newTestServer(t, "")
	fixture := testfixtures.ISS(25544)
	body, contentType := multipartUpload(t, "file", fixture.Name+"\n"+fixture.Line1+"\n"+fixture.Line2+"\n")

	req := httptest.NewRequest(http.MethodPost, "/screen", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEmpty(t, out["job_id"])
}

func TestHandleScreen_RequiresBearerTokenWhenConfigured(t *testing.T) {
	server, _ := newTestServer(t, "secret-token")
	fixture := testfixtures.ISS(25544)
	body, contentType := multipartUpload(t, "file", fixture.Name+"\n"+fixture.Line1+"\n"+fixture.Line2+"\n")

	req := httptest.NewRequest(http.MethodPost, "/screen", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleStatus_UnknownJobIDIsNotFound(t *testing.T) {
	server, _ := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/screen_status/00000000-0000-0000-0000-000000000000", nil)
	rec := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStatus_MalformedJobIDIsBadRequest(t *testing.T) {
	server, _ := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/screen_status/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStatus_ReportsQueuedThenTerminalState(t *testing.T) {
	server, _ := newTestServer(t, "")
	fixture := testfixtures.ISS(25544)
	body, contentType := multipartUpload(t, "file", fixture.Name+"\n"+fixture.Line1+"\n"+fixture.Line2+"\n")

	screenReq := httptest.NewRequest(http.MethodPost, "/screen", body)
	screenReq.Header.Set("Content-Type", contentType)
	screenRec := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(screenRec, screenReq)
	require.Equal(t, http.StatusOK, screenRec.Code)

	var out map[string]string
	require.NoError(t, json.Unmarshal(screenRec.Body.Bytes(), &out))
	jobID := out["job_id"]

	deadline := time.Now().Add(5 * time.Second)
	var status string
	for time.Now().Before(deadline) {
		statusReq := httptest.NewRequest(http.MethodGet, "/screen_status/"+jobID, nil)
		statusRec := httptest.NewRecorder()
		server.ServeMux().ServeHTTP(statusRec, statusReq)
		require.Equal(t, http.StatusOK, statusRec.Code)

		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(statusRec.Body.Bytes(), &payload))
		status = payload["status"].(string)
		if status == "success" || status == "all_clear" || status == "failed" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, "all_clear", status)
}

func TestHandleSummaryPDF_NotFoundWhenJobHasNoResult(t *testing.T) {
	server, _ := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/summary_pdf/00000000-0000-0000-0000-000000000000", nil)
	rec := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStart_ShutsDownGracefullyOnContextCancel(t *testing.T) {
	server, _ := newTestServer(t, "")
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
