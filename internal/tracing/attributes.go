package tracing

import (
	"github.com/dogmatiq/flowstate/persistence"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// CommandNameKey is a span attribute key for the name of a command.
	CommandNameKey = attribute.Key("flowstate.command")

	// CommandAttemptKey is a span attribute key for the one-based attempt
	// number of a command.
	CommandAttemptKey = attribute.Key("flowstate.attempt")

	// CommandRetryableKey is a span attribute key that indicates whether a
	// command may be retried.
	CommandRetryableKey = attribute.Key("flowstate.retryable")
)

var (
	// JobIDKey is a span attribute key for the ID of a job.
	JobIDKey = attribute.Key("flowstate.job.id")

	// JobKindKey is a span attribute key for the kind of a job.
	JobKindKey = attribute.Key("flowstate.job.kind")

	// JobHandlerTypeKey is a span attribute key for a job's handler type.
	JobHandlerTypeKey = attribute.Key("flowstate.job.handler_type")

	// JobRetriesKey is a span attribute key for the number of retries a job
	// has remaining.
	JobRetriesKey = attribute.Key("flowstate.job.retries")

	// ExecutionIDKey is a span attribute key for the ID of an execution.
	ExecutionIDKey = attribute.Key("flowstate.execution.id")

	// ProcessInstanceIDKey is a span attribute key for the ID of a process
	// instance.
	ProcessInstanceIDKey = attribute.Key("flowstate.process_instance.id")
)

// CommandAttributes returns the standard attributes describing an attempt to
// execute a command.
func CommandAttributes(name string, attempt uint, retryable bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		CommandNameKey.String(name),
		CommandAttemptKey.Int(int(attempt) + 1),
		CommandRetryableKey.Bool(retryable),
	}
}

// JobAttributes returns the standard attributes describing a job.
func JobAttributes(j *persistence.Job) []attribute.KeyValue {
	return []attribute.KeyValue{
		JobIDKey.String(j.ID),
		JobKindKey.String(string(j.Kind)),
		JobHandlerTypeKey.String(j.HandlerType),
		JobRetriesKey.Int(j.Retries),
		ExecutionIDKey.String(j.ExecutionID),
		ProcessInstanceIDKey.String(j.ProcessInstanceID),
	}
}
