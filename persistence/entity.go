package persistence

import "fmt"

// Type identifies a kind of entity managed by the engine.
type Type int

const (
	// ExecutionType is the entity type of Execution.
	ExecutionType Type = iota

	// TaskType is the entity type of Task.
	TaskType

	// JobType is the entity type of Job.
	JobType
)

// Types is the set of all entity types, in dependency order.
var Types = []Type{ExecutionType, TaskType, JobType}

// Rank returns the position of t in the static dependency order.
//
// Entities of a lower rank are inserted before, and deleted after, entities of
// a higher rank.
func (t Type) Rank() int {
	switch t {
	case ExecutionType:
		return 0
	case TaskType, JobType:
		return 1
	default:
		panic(fmt.Sprintf("unrecognized entity type: %d", t))
	}
}

func (t Type) String() string {
	switch t {
	case ExecutionType:
		return "execution"
	case TaskType:
		return "task"
	case JobType:
		return "job"
	default:
		return fmt.Sprintf("<unknown %d>", int(t))
	}
}

// Ref is a reference to a specific entity.
type Ref struct {
	Type Type
	ID   string
}

func (r Ref) String() string {
	return r.Type.String() + ":" + r.ID
}

// Entity is a record managed by the engine's unit-of-work.
type Entity interface {
	// EntityType returns the type of the entity.
	EntityType() Type

	// EntityID returns the entity's unique identifier.
	EntityID() string

	// EntityRevision returns the revision of the entity as last persisted.
	// It is zero if the entity has never been persisted.
	EntityRevision() uint64

	// References returns the entities that this entity depends upon.
	//
	// A referenced entity must be inserted before, and deleted after, this
	// entity.
	References() []Ref

	// CloneEntity returns a deep copy of the entity.
	CloneEntity() Entity
}

// RefOf returns a reference to e.
func RefOf(e Entity) Ref {
	return Ref{e.EntityType(), e.EntityID()}
}
