package pipeline

import (
	"context"
)

// Command is a top-level operation executed as a single unit-of-work.
type Command struct {
	// Name is a short human-readable description of the command, used in log
	// messages and trace spans.
	Name string

	// Retryable indicates that the command may be re-executed from scratch
	// when its changes conflict with those of a concurrent command.
	Retryable bool

	// Body performs the command's work via the scope's entity cache.
	//
	// It may be called more than once if the command is retryable, each time
	// with a fresh cache, so it must not have side-effects beyond the scope.
	Body func(context.Context, *Scope) error
}
