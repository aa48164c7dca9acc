package pipeline

import (
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/flowstate/cache"
	"github.com/dogmatiq/flowstate/event"
	"github.com/dogmatiq/flowstate/persistence"
)

// Scope exposes the state of a single attempt to execute a command.
//
// Changes made via the scope only take effect if the attempt succeeds.
type Scope struct {
	// Command is the command being executed.
	Command Command

	// Attempt is the zero-based index of the current attempt.
	Attempt uint

	// Logger is the logger to use for informational messages within the context
	// of the command.
	Logger logging.Logger

	// Now is the time at which the current attempt began. All timestamps
	// recorded by the command are relative to this time.
	Now time.Time

	// Cache is the entity cache for the current attempt. It is nil outside of
	// the context stage.
	Cache *cache.Cache

	// Tx is the store transaction for the current attempt. It is nil outside
	// of the transaction stage.
	Tx persistence.Transaction

	events []event.Event
}

// Emit queues an event to be dispatched once the attempt has been committed.
//
// If ev.Time is zero, it is set to the attempt's start time.
func (sc *Scope) Emit(ev event.Event) {
	if ev.Time.IsZero() {
		ev.Time = sc.Now
	}

	sc.events = append(sc.events, ev)
}

// Events returns the events queued by the current attempt.
func (sc *Scope) Events() []event.Event {
	return sc.events
}
