package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/genai"

	"github.com/Hoooon22/devzip-sub000/internal/mindmap"
)

func TestOllamaClassify(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"  GROUP:a\nMEMBERS:0,1 \n"}`))
	}))
	defer srv.Close()

	o := &Ollama{URL: srv.URL, Model: "llama3.2"}
	resp, err := o.Classify(context.Background(), "group these")

	require.NoError(t, err)
	assert.Equal(t, "GROUP:a\nMEMBERS:0,1", resp)
	assert.Equal(t, "llama3.2", got["model"])
	assert.Equal(t, "group these", got["prompt"])
	assert.Equal(t, false, got["stream"])
}

func TestOllamaErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"non-200", http.StatusInternalServerError, "model not loaded", nil},
		{"bad json", http.StatusOK, "{", nil},
		{"empty", http.StatusOK, `{"response":"   "}`, ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := (&Ollama{URL: srv.URL, Model: "m"}).Classify(context.Background(), "p")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestOllamaTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	o := &Ollama{URL: srv.URL, Model: "m", Timeout: 50 * time.Millisecond}
	_, err := o.Classify(context.Background(), "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStripMarkdownFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"```\nGROUP:a\nMEMBERS:0\n```", "GROUP:a\nMEMBERS:0"},
		{"```text\nwork, home\n```\n", "work, home"},
		{"  a\nb  ", "a\nb"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripMarkdownFences(tt.in), "input %q", tt.in)
	}
}

func TestClaudeRunsCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-claude")
	// Echoes the prompt back wrapped in a markdown fence.
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho '```'\ncat\necho\necho '```'\n"), 0o755))

	c := &Claude{Model: "haiku", Command: script}
	resp, err := c.Classify(context.Background(), "INDEX:0\nLEVEL:0\nPARENT:-1")

	require.NoError(t, err)
	assert.Equal(t, "INDEX:0\nLEVEL:0\nPARENT:-1", resp)
}

func TestClaudeFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-claude")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho 'rate limited' >&2\nexit 3\n"), 0o755))

	_, err := (&Claude{Command: script}).Classify(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestGeminiResponseText(t *testing.T) {
	assert.Equal(t, "", responseText(nil))
	assert.Equal(t, "", responseText(&genai.GenerateContentResponse{}))
	assert.Equal(t, "", responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{}},
	}))
	assert.Equal(t, "work, home", responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
			{Text: "work, "}, nil, {Text: "home\n"},
		}}}},
	}))
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "")
	require.Error(t, err)
}

func TestResolveBackend(t *testing.T) {
	tests := []struct {
		backend, model       string
		wantBackend, wantMod string
	}{
		{"", "llama3.2", BackendOllama, "llama3.2"},
		{"", "claude:haiku", BackendClaude, "haiku"},
		{"", "gemini:gemini-2.0-flash", BackendGemini, "gemini-2.0-flash"},
		{BackendClaude, "sonnet", BackendClaude, "sonnet"},
		{BackendGemini, "gemini:gemini-2.5-flash", BackendGemini, "gemini-2.5-flash"},
		{BackendOllama, "qwen2.5:7b", BackendOllama, "qwen2.5:7b"},
	}
	for _, tt := range tests {
		b, m, err := resolveBackend(tt.backend, tt.model)
		require.NoError(t, err, "%q/%q", tt.backend, tt.model)
		assert.Equal(t, tt.wantBackend, b, "backend for %q/%q", tt.backend, tt.model)
		assert.Equal(t, tt.wantMod, m, "model for %q/%q", tt.backend, tt.model)
	}
}

func TestResolveBackendPrefixConflict(t *testing.T) {
	_, _, err := resolveBackend(BackendOllama, "claude:haiku")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claude")

	_, err = New(context.Background(), Config{Backend: BackendClaude, Model: "gemini:gemini-2.0-flash"})
	assert.Error(t, err)
}

func TestNewSelectsBackend(t *testing.T) {
	c, err := New(context.Background(), Config{Backend: BackendOllama, URL: "http://localhost:11434/", Model: "m"})
	require.NoError(t, err)
	o, ok := c.(*Ollama)
	require.True(t, ok, "got %T", c)
	assert.Equal(t, "http://localhost:11434", o.URL)

	c, err = New(context.Background(), Config{Model: "claude:haiku", Breaker: BreakerConfig{MaxFailures: 2}, Tracing: true})
	require.NoError(t, err)
	_, ok = c.(*traced)
	assert.True(t, ok, "outermost decorator should be tracing, got %T", c)

	_, err = New(context.Background(), Config{Backend: "carrier-pigeon"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Backend: BackendOllama})
	assert.Error(t, err)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	failing := mindmap.ClassifierFunc(func(context.Context, string) (string, error) {
		calls.Add(1)
		return "", errors.New("connection refused")
	})
	c := WithBreaker(failing, BreakerConfig{MaxFailures: 2, Cooldown: time.Hour})

	for range 2 {
		_, err := c.Classify(context.Background(), "p")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrBreakerOpen)
	}
	_, err := c.Classify(context.Background(), "p")
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	cancelled := mindmap.ClassifierFunc(func(context.Context, string) (string, error) {
		return "", context.Canceled
	})
	c := WithBreaker(cancelled, BreakerConfig{MaxFailures: 1, Cooldown: time.Hour})

	for range 3 {
		_, err := c.Classify(context.Background(), "p")
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestBreakerPassesThrough(t *testing.T) {
	ok := mindmap.ClassifierFunc(func(context.Context, string) (string, error) { return "tags", nil })
	resp, err := WithBreaker(ok, BreakerConfig{MaxFailures: 1}).Classify(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "tags", resp)
}

func TestTracingRecordsSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	ok := mindmap.ClassifierFunc(func(context.Context, string) (string, error) { return "abc", nil })
	bad := mindmap.ClassifierFunc(func(context.Context, string) (string, error) { return "", errors.New("boom") })

	_, err := WithTracing(ok, tp).Classify(context.Background(), "hello")
	require.NoError(t, err)
	_, err = WithTracing(bad, tp).Classify(context.Background(), "hello")
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "classifier.Classify", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Len(t, spans[1].Events(), 1)
}
