package pipeline

import (
	"context"
	"time"

	"github.com/dogmatiq/flowstate/cache"
	"github.com/dogmatiq/flowstate/event"
	"github.com/dogmatiq/flowstate/internal/mlog"
)

// UnitOfWork returns a pipeline stage that allocates a fresh entity cache for
// each attempt and dispatches the attempt's events once the remainder of the
// pipeline succeeds.
//
// The cache is released when the stage returns, regardless of the outcome.
// Events queued by a failed attempt are discarded.
func UnitOfWork(now func() time.Time, d *event.Dispatcher) Stage {
	return func(ctx context.Context, sc *Scope, next Sink) error {
		sc.Now = now()
		sc.Cache = &cache.Cache{}
		sc.events = nil

		defer func() {
			sc.Cache = nil
		}()

		if err := next(ctx, sc); err != nil {
			sc.events = nil
			return err
		}

		for _, ev := range sc.events {
			mlog.LogEvent(sc.Logger, ev)
		}

		if d != nil {
			d.Dispatch(ctx, sc.events)
		}

		return nil
	}
}
