package fixtures

import (
	"context"
	"sync"

	"github.com/dogmatiq/flowstate/event"
)

// EventRecorder is an event.Observer that records the events it is notified
// of.
type EventRecorder struct {
	m      sync.Mutex
	events []event.Event
}

// Notify records ev.
func (r *EventRecorder) Notify(_ context.Context, ev event.Event) error {
	r.m.Lock()
	defer r.m.Unlock()

	r.events = append(r.events, ev)

	return nil
}

// Events returns the recorded events.
func (r *EventRecorder) Events() []event.Event {
	r.m.Lock()
	defer r.m.Unlock()

	return append([]event.Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events, excluding entity events.
func (r *EventRecorder) Kinds() []event.Kind {
	var kinds []event.Kind

	for _, ev := range r.Events() {
		switch ev.Kind {
		case event.EntityCreated, event.EntityUpdated, event.EntityDeleted:
		default:
			kinds = append(kinds, ev.Kind)
		}
	}

	return kinds
}

// Reset discards the recorded events.
func (r *EventRecorder) Reset() {
	r.m.Lock()
	defer r.m.Unlock()

	r.events = nil
}
