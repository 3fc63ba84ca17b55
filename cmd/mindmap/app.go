package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Hoooon22/devzip-sub000/internal/audit"
	"github.com/Hoooon22/devzip-sub000/internal/classifier"
	"github.com/Hoooon22/devzip-sub000/internal/metrics"
	"github.com/Hoooon22/devzip-sub000/internal/mindmap"
)

// app bundles the engine with the resources it observes into. close releases
// them in reverse order of acquisition.
type app struct {
	cfg      *UserConfig
	engine   *mindmap.Engine
	audit    *audit.Store
	registry *prometheus.Registry
	closers  []func(context.Context) error
}

// newApp loads the configuration and builds the engine. A non-nil registry
// gets a metrics collector attached.
func newApp(ctx context.Context, g *Globals, registry *prometheus.Registry) (*app, error) {
	path, err := configPath(g.Config)
	if err != nil {
		return nil, err
	}
	cfg, err := loadUserConfig(path)
	if err != nil {
		return nil, err
	}
	return buildApp(ctx, cfg, nil, registry)
}

// buildApp wires cfg into an engine. A nil c builds the configured classifier.
func buildApp(ctx context.Context, cfg *UserConfig, c mindmap.Classifier, registry *prometheus.Registry) (*app, error) {
	a := &app{cfg: cfg, registry: registry}

	if cfg.Tracing.Endpoint != "" {
		shutdown, err := setupTracing(ctx, cfg.Tracing.Endpoint)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, shutdown)
	}

	if c == nil {
		var err error
		c, err = classifier.New(ctx, cfg.classifierConfig())
		if err != nil {
			a.close(ctx)
			return nil, err
		}
	}

	var observers []mindmap.Observer
	if !cfg.Audit.Disable {
		path, err := cfg.auditPath()
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		store, err := audit.Open(path)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		a.audit = store
		a.closers = append(a.closers, func(context.Context) error { return store.Close() })
		observers = append(observers, store)
	}
	if registry != nil {
		collector, err := metrics.NewCollector(registry)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		observers = append(observers, collector)
	}

	engine, err := mindmap.New(mindmap.Config{
		Classifier: c,
		Observers:  observers,
		Logger:     slog.Default(),
	})
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.engine = engine
	return a, nil
}

func (a *app) close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			slog.Warn("shutdown", "error", err)
		}
	}
	a.closers = nil
}

// setupTracing installs a global tracer provider exporting to an OTLP/gRPC
// collector at endpoint.
func setupTracing(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", "mindmap")),
	)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create resource: %w", err), exporter.Shutdown(ctx))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	slog.Debug("tracing enabled", "endpoint", endpoint)
	return tp.Shutdown, nil
}
