// Package metrics exposes classifier quality counters for the mindmap engine
// as Prometheus metrics.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Hoooon22/devzip-sub000/internal/mindmap"
)

const namespace = "mindmap"

// Collector is a mindmap.Observer that updates Prometheus metrics.
type Collector struct {
	Calls     *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
	Repaired  *prometheus.CounterVec
	Discarded *prometheus.CounterVec
}

var _ mindmap.Observer = (*Collector)(nil)

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		Calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classifier_calls_total",
				Help:      "Engine calls by operation and result (ok, partial, fallback, skipped).",
			},
			[]string{"operation", "result"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "classifier_duration_seconds",
				Help:      "Time spent waiting on the classifier.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		Repaired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "repaired_items_total",
				Help:      "Items the classifier left out and the engine placed itself.",
			},
			[]string{"operation"},
		),
		Discarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "discarded_records_total",
				Help:      "Response tokens or blocks rejected by the parser.",
			},
			[]string{"operation"},
		),
	}

	for _, m := range []prometheus.Collector{c.Calls, c.Duration, c.Repaired, c.Discarded} {
		if err := reg.Register(m); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return c, nil
}

// Observe records o.
func (c *Collector) Observe(_ context.Context, o mindmap.Outcome) {
	c.Calls.WithLabelValues(o.Operation, o.Result()).Inc()
	if o.Skipped {
		return
	}
	c.Duration.WithLabelValues(o.Operation).Observe(o.Duration.Seconds())
	if o.Repaired > 0 {
		c.Repaired.WithLabelValues(o.Operation).Add(float64(o.Repaired))
	}
	if o.Discarded > 0 {
		c.Discarded.WithLabelValues(o.Operation).Add(float64(o.Discarded))
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
