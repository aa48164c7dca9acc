package pipeline

import (
	"context"

	"github.com/dogmatiq/flowstate/internal/mlog"
)

// Log returns a pipeline stage that logs the result of each attempt.
func Log() Stage {
	return func(ctx context.Context, sc *Scope, next Sink) (err error) {
		defer mlog.LogCommandResult(
			sc.Logger,
			sc.Command.Name,
			sc.Attempt,
			&err,
		)

		return next(ctx, sc)
	}
}
