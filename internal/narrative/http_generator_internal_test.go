package narrative

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGenerator_SendsBearerAuthAndParsesFirstChoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "user", req.Messages[1].Role)

		resp := chatResponse{Choices: []struct {
			Message chatMessage `json:"message"`
		}{{Message: chatMessage{Role: "assistant", Content: "All clear, monitor nominally."}}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	gen := NewHTTPGenerator("test-key")
	gen.endpoint = server.URL
	gen.httpClient = server.Client()

	text, err := gen.Generate(context.Background(), "miss distance 2km, risk YELLOW")
	require.NoError(t, err)
	assert.Equal(t, "All clear, monitor nominally.", text)
}

func TestHTTPGenerator_NonOKStatusIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	gen := NewHTTPGenerator("test-key")
	gen.endpoint = server.URL
	gen.httpClient = server.Client()

	_, err := gen.Generate(context.Background(), "prompt")
	assert.Error(t, err)
}

func TestHTTPGenerator_EmptyChoicesIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponse{})
	}))
	defer server.Close()

	gen := NewHTTPGenerator("test-key")
	gen.endpoint = server.URL
	gen.httpClient = server.Client()

	_, err := gen.Generate(context.Background(), "prompt")
	assert.Error(t, err)
}
