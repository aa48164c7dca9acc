package definition

// Document is the serialized form of a process definition.
type Document struct {
	ID         string         `yaml:"id"`
	Name       string         `yaml:"name,omitempty"`
	Activities []ActivitySpec `yaml:"activities"`
	Flows      []FlowSpec     `yaml:"flows"`
}

// ActivitySpec is the serialized form of an activity.
type ActivitySpec struct {
	ID   string `yaml:"id"`
	Type Kind   `yaml:"type"`
	Name string `yaml:"name,omitempty"`

	// Delegate is the name of the Go function invoked by a task.
	Delegate string `yaml:"delegate,omitempty"`

	// Script is the Lua source executed by a script task.
	Script string `yaml:"script,omitempty"`

	// Event is the name of the signal a receive task waits for.
	Event string `yaml:"event,omitempty"`

	// Timer is the schedule of a timer catch event or timer boundary event.
	Timer *TimerSpec `yaml:"timer,omitempty"`

	// ErrorCode is the code thrown by an error end event, or caught by an
	// error boundary event. An empty code on a boundary catches all errors.
	ErrorCode string `yaml:"errorCode,omitempty"`

	// AttachedTo is the ID of the activity a boundary event is attached to.
	AttachedTo string `yaml:"attachedTo,omitempty"`

	// AsyncBefore causes the activity to be entered by a job rather than
	// synchronously.
	AsyncBefore bool `yaml:"asyncBefore,omitempty"`

	// Default is the ID of the outgoing flow taken when no other flow's
	// condition is satisfied.
	Default string `yaml:"default,omitempty"`

	MultiInstance *MultiInstanceSpec `yaml:"multiInstance,omitempty"`

	// Activities and Flows form the body of a sub-process.
	Activities []ActivitySpec `yaml:"activities,omitempty"`
	Flows      []FlowSpec     `yaml:"flows,omitempty"`
}

// FlowSpec is the serialized form of a sequence flow.
type FlowSpec struct {
	ID        string `yaml:"id"`
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	Condition string `yaml:"condition,omitempty"`
}

// TimerSpec is the serialized form of a timer. Exactly one field must be set.
type TimerSpec struct {
	// Duration is a Go duration string, such as "1h30m".
	Duration string `yaml:"duration,omitempty"`

	// Date is an RFC 3339 timestamp.
	Date string `yaml:"date,omitempty"`
}

// MultiInstanceSpec is the serialized form of multi-instance characteristics.
type MultiInstanceSpec struct {
	Sequential          bool   `yaml:"sequential,omitempty"`
	Cardinality         string `yaml:"cardinality,omitempty"`
	Collection          string `yaml:"collection,omitempty"`
	ElementVariable     string `yaml:"elementVariable,omitempty"`
	CompletionCondition string `yaml:"completionCondition,omitempty"`
}
