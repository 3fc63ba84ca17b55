package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Hoooon22/devzip-sub000/internal/mindmap"
)

// ErrBreakerOpen is returned without calling the backend while the breaker is
// open or its half-open probe slot is taken.
var ErrBreakerOpen = errors.New("classifier: circuit breaker open")

// BreakerConfig configures WithBreaker.
type BreakerConfig struct {
	MaxFailures uint32        // consecutive failures that open the breaker
	Cooldown    time.Duration // time open before a probe is allowed; 0 = 30s
}

type breaker struct {
	next mindmap.Classifier
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker stops calling c after cfg.MaxFailures consecutive failures and
// fails fast with ErrBreakerOpen until the cooldown passes. Cancellation by
// the caller does not count as a failure.
func WithBreaker(c mindmap.Classifier, cfg BreakerConfig) mindmap.Classifier {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &breaker{
		next: c,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "classifier",
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("classifier: breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}
}

func (b *breaker) Classify(ctx context.Context, prompt string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Classify(ctx, prompt)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", ErrBreakerOpen, err)
	}
	if err != nil {
		return "", err
	}
	return out.(string), nil
}
