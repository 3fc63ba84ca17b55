// Package classifier provides mindmap.Classifier backends (Ollama, the Claude
// CLI, Gemini) and decorators that add a circuit breaker and tracing.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Hoooon22/devzip-sub000/internal/mindmap"
)

// ErrEmptyResponse is returned by backends when the model answered with
// nothing but whitespace.
var ErrEmptyResponse = errors.New("classifier: empty response")

// Backend names.
const (
	BackendOllama = "ollama"
	BackendClaude = "claude"
	BackendGemini = "gemini"
)

// Config selects and tunes a backend.
type Config struct {
	Backend string        // ollama, claude or gemini; empty = infer from Model
	URL     string        // Ollama base URL
	Model   string        // e.g. "llama3.2", "claude:haiku", "gemini:gemini-2.0-flash"
	Timeout time.Duration // per call; 0 = backend default

	GeminiAPIKey string

	Breaker BreakerConfig // zero MaxFailures disables the breaker
	Tracing bool
}

// New builds the configured backend and wraps it with the breaker and
// tracing decorators. Tracing is outermost so that calls rejected by an open
// breaker still produce a span.
func New(ctx context.Context, cfg Config) (mindmap.Classifier, error) {
	backend, model, err := resolveBackend(cfg.Backend, cfg.Model)
	if err != nil {
		return nil, err
	}

	var c mindmap.Classifier
	switch backend {
	case BackendOllama:
		if cfg.URL == "" {
			return nil, fmt.Errorf("ollama backend: url is required")
		}
		c = &Ollama{URL: strings.TrimRight(cfg.URL, "/"), Model: model, Timeout: cfg.Timeout}
	case BackendClaude:
		c = &Claude{Model: model, Timeout: cfg.Timeout}
	case BackendGemini:
		g, err := NewGemini(ctx, cfg.GeminiAPIKey, model)
		if err != nil {
			return nil, err
		}
		g.Timeout = cfg.Timeout
		c = g
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", backend)
	}

	if cfg.Breaker.MaxFailures > 0 {
		c = WithBreaker(c, cfg.Breaker)
	}
	if cfg.Tracing {
		c = WithTracing(c, nil)
	}
	return c, nil
}

// resolveBackend infers the backend from a "claude:" or "gemini:" model
// prefix when none is set explicitly, and strips the prefix from the model.
// A prefix naming a different backend than the explicit one is an error.
func resolveBackend(backend, model string) (string, string, error) {
	for _, b := range []string{BackendClaude, BackendGemini} {
		after, ok := strings.CutPrefix(model, b+":")
		if !ok {
			continue
		}
		if backend != "" && backend != b {
			return "", "", fmt.Errorf("model %q is for the %s backend, but backend is %q", model, b, backend)
		}
		return b, after, nil
	}
	if backend == "" {
		backend = BackendOllama
	}
	return backend, model, nil
}

// withTimeout applies d to ctx when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
