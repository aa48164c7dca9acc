package pipeline

import (
	"context"
	"errors"

	"github.com/dogmatiq/flowstate/persistence"
	"go.uber.org/multierr"
)

// Transaction returns a pipeline stage that demarcates a store transaction
// around the remainder of the pipeline.
//
// The transaction is committed if the remainder of the pipeline succeeds,
// otherwise it is rolled back. It must be positioned within the UnitOfWork()
// stage, as it binds the scope's cache to the transaction.
func Transaction(s persistence.Store) Stage {
	return func(ctx context.Context, sc *Scope, next Sink) (err error) {
		tx, err := s.Begin(ctx)
		if err != nil {
			return classify(err, infrastructure)
		}

		sc.Tx = tx
		sc.Cache.Reader = tx
		committed := false

		defer func() {
			sc.Tx = nil

			if committed {
				return
			}

			if rerr := tx.Rollback(); rerr != nil &&
				!errors.Is(rerr, persistence.ErrTransactionClosed) {
				err = multierr.Append(err, rerr)
			}
		}()

		if err := next(ctx, sc); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return classify(err, infrastructure)
		}

		committed = true

		return nil
	}
}
