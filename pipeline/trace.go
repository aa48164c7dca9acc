package pipeline

import (
	"context"

	"github.com/dogmatiq/flowstate/internal/tracing"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Trace returns a pipeline stage that records a span for each attempt.
func Trace(t trace.Tracer) Stage {
	return func(ctx context.Context, sc *Scope, next Sink) error {
		ctx, span := t.Start(
			ctx,
			sc.Command.Name,
			trace.WithAttributes(
				tracing.CommandAttributes(
					sc.Command.Name,
					sc.Attempt,
					sc.Command.Retryable,
				)...,
			),
		)
		defer span.End()

		err := next(ctx, sc)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		return err
	}
}
