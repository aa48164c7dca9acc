package pipeline

import (
	"context"

	"github.com/dogmatiq/flowstate/event"
)

// Handle returns a pipeline sink that executes the command's body and then
// flushes the scope's entity cache to the transaction.
//
// An entity event is queued for each operation in the flushed batch.
func Handle() Sink {
	return func(ctx context.Context, sc *Scope) error {
		if err := sc.Command.Body(ctx, sc); err != nil {
			return classify(err, continuation)
		}

		batch, err := sc.Cache.Flush(ctx)
		if err != nil {
			return classify(err, continuation)
		}

		if len(batch) == 0 {
			return nil
		}

		if err := sc.Tx.Persist(ctx, batch); err != nil {
			return classify(err, infrastructure)
		}

		for _, op := range batch {
			sc.Emit(event.ForEntity(op, sc.Now))
		}

		return nil
	}
}
