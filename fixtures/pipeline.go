package fixtures

import (
	"context"

	"github.com/dogmatiq/flowstate/pipeline"
)

// Execute runs fn as the body of a non-retryable command.
func Execute(
	ctx context.Context,
	e *pipeline.Executor,
	fn func(context.Context, *pipeline.Scope) error,
) error {
	return e.Execute(ctx, pipeline.Command{
		Name: "<test>",
		Body: fn,
	})
}
