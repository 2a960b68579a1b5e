package narrative_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/celeralabs/stx-orbital/internal/narrative"
)

type mockGenerator struct {
	text  string
	err   error
	delay time.Duration
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func TestGenerateOrFallback_NilGeneratorReturnsFallback(t *testing.T) {
	got := narrative.GenerateOrFallback(context.Background(), nil, "prompt", time.Second)
	assert.NotEmpty(t, got)
}

func TestGenerateOrFallback_SuccessReturnsGeneratedText(t *testing.T) {
	gen := &mockGenerator{text: "Conjunction is low risk; no action required."}
	got := narrative.GenerateOrFallback(context.Background(), gen, "prompt", time.Second)
	assert.Equal(t, gen.text, got)
}

func TestGenerateOrFallback_ErrorFromGeneratorDegradesToFallback(t *testing.T) {
	fallback := narrative.GenerateOrFallback(context.Background(), nil, "prompt", time.Second)

	gen := &mockGenerator{err: errors.New("upstream exploded")}
	got := narrative.GenerateOrFallback(context.Background(), gen, "prompt", time.Second)
	assert.Equal(t, fallback, got)
}

func TestGenerateOrFallback_TimeoutDegradesToFallback(t *testing.T) {
	fallback := narrative.GenerateOrFallback(context.Background(), nil, "prompt", time.Second)

	gen := &mockGenerator{text: "too slow", delay: 100 * time.Millisecond}
	got := narrative.GenerateOrFallback(context.Background(), gen, "prompt", 10*time.Millisecond)
	assert.Equal(t, fallback, got)
}

func TestGenerateOrFallback_NeverReturnsEmptyString(t *testing.T) {
	gen := &mockGenerator{err: errors.New("boom")}
	got := narrative.GenerateOrFallback(context.Background(), gen, "prompt", time.Second)
	assert.NotEmpty(t, got)
}
