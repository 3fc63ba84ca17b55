package mindmap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Classifier is the external text-in/text-out capability that proposes tags,
// groupings and levels. It may fail, time out or return ill-formed text.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

// ClassifierFunc adapts a plain function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, prompt string) (string, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Operation names reported in Outcome.
const (
	OpTags      = "extract_tags"
	OpCluster   = "cluster"
	OpHierarchy = "hierarchy"
)

// Outcome describes how one engine call used the classifier.
type Outcome struct {
	Operation string
	Items     int           // items in the request (1 for tag extraction)
	Records   int           // records accepted from the classifier response
	Discarded int           // tokens or blocks the parser rejected
	Repaired  int           // items placed by orphan repair
	Fallback  bool          // the deterministic fallback produced the result
	Skipped   bool          // the classifier was not consulted
	Err       error         // classifier error behind a fallback, if any
	Raw       string        // start of the classifier response, for auditing
	Duration  time.Duration // time spent waiting on the classifier
}

// Result collapses the outcome into one of "skipped", "fallback", "partial"
// or "ok".
func (o Outcome) Result() string {
	switch {
	case o.Skipped:
		return "skipped"
	case o.Fallback:
		return "fallback"
	case o.Repaired > 0 || o.Discarded > 0:
		return "partial"
	default:
		return "ok"
	}
}

// Observer receives one Outcome per engine call. Implementations must not
// block for long; they run on the caller's goroutine.
type Observer interface {
	Observe(ctx context.Context, o Outcome)
}

// ErrNilClassifier is returned by New when no classifier is configured.
var ErrNilClassifier = errors.New("mindmap: classifier must not be nil")

// Config holds Engine construction parameters.
type Config struct {
	Classifier Classifier   // required
	Observers  []Observer   // optional quality hooks (audit log, metrics)
	Logger     *slog.Logger // nil = slog.Default()
}

// Engine runs tag extraction, clustering and hierarchy building against one
// classifier. It holds no per-call state and is safe for concurrent use.
type Engine struct {
	classifier Classifier
	observers  []Observer
	log        *slog.Logger
}

// New creates an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Classifier == nil {
		return nil, ErrNilClassifier
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		classifier: cfg.Classifier,
		observers:  cfg.Observers,
		log:        logger,
	}, nil
}

// classify issues exactly one classifier request. A panic inside the
// classifier and a context cancelled during the call both come back as
// errors so callers only ever have to route to their fallback.
func (e *Engine) classify(ctx context.Context, prompt string) (resp string, elapsed time.Duration, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			resp, err = "", fmt.Errorf("classifier panic: %v", r)
		}
		elapsed = time.Since(start)
	}()

	if err = ctx.Err(); err != nil {
		return "", 0, err
	}
	resp, err = e.classifier.Classify(ctx, prompt)
	if err == nil {
		err = ctx.Err()
	}
	return resp, 0, err
}

// observe fans the outcome out to every observer. The caller's cancellation
// does not stop the record from being written.
func (e *Engine) observe(ctx context.Context, o Outcome) {
	if len(e.observers) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, obs := range e.observers {
		obs.Observe(ctx, o)
	}
}
