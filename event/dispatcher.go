package event

import (
	"context"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
)

// Dispatcher delivers committed events to a set of observers.
//
// It is safe for concurrent use. Observers may be added while events are
// being dispatched.
type Dispatcher struct {
	// Logger is the target for messages about observer failures.
	Logger logging.Logger

	m         sync.RWMutex
	observers []Observer
}

// Register adds observers to the dispatcher.
func (d *Dispatcher) Register(observers ...Observer) {
	d.m.Lock()
	defer d.m.Unlock()

	d.observers = append(d.observers, observers...)
}

// Dispatch notifies every observer of each event, in order.
func (d *Dispatcher) Dispatch(ctx context.Context, events []Event) {
	if len(events) == 0 {
		return
	}

	d.m.RLock()
	observers := d.observers
	d.m.RUnlock()

	for _, ev := range events {
		for _, o := range observers {
			if err := o.Notify(ctx, ev); err != nil {
				logging.Log(
					d.Logger,
					"unable to notify observer of %s event: %s",
					ev.Kind,
					err,
				)
			}
		}
	}
}
