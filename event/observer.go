package event

import (
	"context"
)

// Observer is notified of lifecycle events after they are committed.
//
// Observers are called synchronously, in emission order. An error returned by
// an observer is logged by the dispatcher but does not affect the command that
// emitted the event, which has already been committed.
type Observer interface {
	Notify(ctx context.Context, ev Event) error
}

// ObserverFunc is an adaptor that allows an ordinary function to be used as an
// Observer.
type ObserverFunc func(ctx context.Context, ev Event) error

// Notify calls fn(ctx, ev).
func (fn ObserverFunc) Notify(ctx context.Context, ev Event) error {
	return fn(ctx, ev)
}

// Filter returns an observer that forwards only events of the given kinds to o.
func Filter(o Observer, kinds ...Kind) Observer {
	set := map[Kind]struct{}{}
	for _, k := range kinds {
		set[k] = struct{}{}
	}

	return ObserverFunc(func(ctx context.Context, ev Event) error {
		if _, ok := set[ev.Kind]; ok {
			return o.Notify(ctx, ev)
		}
		return nil
	})
}
