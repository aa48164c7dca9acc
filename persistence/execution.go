package persistence

// ExecutionState is the lifecycle state of an execution.
type ExecutionState int

const (
	// ExecutionCreated is the state of an execution that has not yet entered
	// any activity.
	ExecutionCreated ExecutionState = iota

	// ExecutionActive is the state of an execution that is running or waiting.
	ExecutionActive

	// ExecutionSuspended is the state of an execution whose process instance
	// has been suspended.
	ExecutionSuspended

	// ExecutionEnded is the state of an execution that has finished.
	ExecutionEnded
)

func (s ExecutionState) String() string {
	switch s {
	case ExecutionCreated:
		return "created"
	case ExecutionActive:
		return "active"
	case ExecutionSuspended:
		return "suspended"
	default:
		return "ended"
	}
}

// Execution is a path of control through a process instance.
//
// Executions form a tree rooted at the process instance's root execution.
type Execution struct {
	ID                  string
	ProcessInstanceID   string
	ParentID            string
	ProcessDefinitionID string
	ActivityID          string
	BusinessKey         string

	IsActive            bool
	IsScope             bool
	IsConcurrent        bool
	IsEnded             bool
	IsSuspended         bool
	IsMultiInstanceRoot bool

	// Variables is the variable frame owned by this execution. Only scope
	// executions hold variables.
	Variables map[string]any

	Revision uint64
}

// IsProcessInstance returns true if x is the root of its process instance.
func (x *Execution) IsProcessInstance() bool {
	return x.ParentID == ""
}

// State returns the lifecycle state of x.
func (x *Execution) State() ExecutionState {
	switch {
	case x.IsEnded:
		return ExecutionEnded
	case x.IsSuspended:
		return ExecutionSuspended
	case x.ActivityID == "":
		return ExecutionCreated
	default:
		return ExecutionActive
	}
}

// EntityType returns ExecutionType.
func (x *Execution) EntityType() Type { return ExecutionType }

// EntityID returns x.ID.
func (x *Execution) EntityID() string { return x.ID }

// EntityRevision returns x.Revision.
func (x *Execution) EntityRevision() uint64 { return x.Revision }

// References returns the parent execution, if any.
func (x *Execution) References() []Ref {
	if x.ParentID == "" {
		return nil
	}

	return []Ref{{ExecutionType, x.ParentID}}
}

// CloneEntity returns a deep copy of x.
func (x *Execution) CloneEntity() Entity {
	return x.Clone()
}

// Clone returns a deep copy of x.
func (x *Execution) Clone() *Execution {
	c := *x
	c.Variables = CloneVariables(x.Variables)
	return &c
}

// CloneVariables returns a deep copy of a variable frame.
func CloneVariables(vars map[string]any) map[string]any {
	if vars == nil {
		return nil
	}

	c := make(map[string]any, len(vars))
	for k, v := range vars {
		c[k] = cloneValue(v)
	}

	return c
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return CloneVariables(v)
	case []any:
		c := make([]any, len(v))
		for i, x := range v {
			c[i] = cloneValue(x)
		}
		return c
	default:
		return v
	}
}
