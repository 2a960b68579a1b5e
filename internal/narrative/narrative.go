// Package narrative turns one screened conjunction's telemetry into a short
// operator-facing paragraph, via an xAI-compatible chat-completions endpoint,
// falling back to a canned string on any failure (spec §4.11). No teacher
// package calls an LLM API; this package is built fresh in the repo's
// general net/http request idiom (JSON body, bearer auth, context timeout).
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/celeralabs/stx-orbital/internal/logging"
)

const defaultEndpoint = "https://api.x.ai/v1/chat/completions"
const defaultModel = "grok-2-latest"

// fallbackNarrative is returned whenever generation fails or is disabled, so
// a job result always carries readable text.
const fallbackNarrative = "Automated narrative generation was unavailable for this event. Review the numeric telemetry (miss distance, probability of collision, and risk level) directly."

// Generator produces a short narrative from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// HTTPGenerator calls an xAI-style chat-completions endpoint.
type HTTPGenerator struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
}

// NewHTTPGenerator builds a generator using apiKey for bearer auth.
func NewHTTPGenerator(apiKey string) *HTTPGenerator {
	return &HTTPGenerator{
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		model:      defaultModel,
		httpClient: &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate issues one chat-completion request and returns the first choice's
// message content.
func (g *HTTPGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a concise spaceflight safety analyst. Summarize the conjunction event in two or three sentences for an operator."},
			{Role: "user", Content: prompt},
		},
	}
	buf, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("narrative: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("narrative: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("narrative: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("narrative: upstream returned %s: %s", resp.Status, string(body))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("narrative: decoding response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("narrative: empty response")
	}
	return parsed.Choices[0].Message.Content, nil
}

// GenerateOrFallback enforces a hard timeout and never returns an error:
// any failure (missing credentials, network error, timeout, malformed
// upstream response) degrades to fallbackNarrative (spec §7).
func GenerateOrFallback(ctx context.Context, gen Generator, prompt string, timeout time.Duration) string {
	if gen == nil {
		return fallbackNarrative
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := gen.Generate(callCtx, prompt)
	if err != nil {
		logging.Logf("narrative: generation failed, using fallback: %v", err)
		return fallbackNarrative
	}
	return text
}
