package pipeline

import (
	"context"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/linger/backoff"
)

// Retry returns a pipeline stage that re-executes the remainder of the
// pipeline when a retryable command fails with an OptimisticLockFailure.
//
// The command is attempted at most limit+1 times. If s is non-nil, it is used
// to compute a delay before each retry.
func Retry(limit uint, s backoff.Strategy) Stage {
	return func(ctx context.Context, sc *Scope, next Sink) error {
		for {
			err := next(ctx, sc)

			if err == nil ||
				!sc.Command.Retryable ||
				!IsRetryable(err) ||
				sc.Attempt >= limit {
				return err
			}

			sc.Attempt++

			logging.Debug(
				sc.Logger,
				"retrying '%s' command (attempt %d of %d): %s",
				sc.Command.Name,
				sc.Attempt+1,
				limit+1,
				err,
			)

			if s != nil {
				if err := linger.Sleep(ctx, s(err, sc.Attempt)); err != nil {
					return err
				}
			}
		}
	}
}
