package classifier

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Hoooon22/devzip-sub000/internal/mindmap"
)

const tracerName = "github.com/Hoooon22/devzip-sub000/internal/classifier"

type traced struct {
	next   mindmap.Classifier
	tracer trace.Tracer
}

// WithTracing records one span per Classify call. A nil tp uses the global
// tracer provider.
func WithTracing(c mindmap.Classifier, tp trace.TracerProvider) mindmap.Classifier {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &traced{next: c, tracer: tp.Tracer(tracerName)}
}

func (t *traced) Classify(ctx context.Context, prompt string) (string, error) {
	ctx, span := t.tracer.Start(ctx, "classifier.Classify",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("classifier.prompt_length", len(prompt))),
	)
	defer span.End()

	resp, err := t.next.Classify(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("classifier.response_length", len(resp)))
	span.SetStatus(codes.Ok, "")
	return resp, nil
}
