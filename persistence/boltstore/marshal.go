package boltstore

import (
	"fmt"
	"time"

	"github.com/dogmatiq/flowstate/persistence"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// marshal encodes an entity as a protocol buffers structpb.Struct.
func marshal(e persistence.Entity) ([]byte, error) {
	var m map[string]any

	switch e := e.(type) {
	case *persistence.Execution:
		vars := map[string]any{}
		for k, v := range e.Variables {
			vars[k] = v
		}

		m = map[string]any{
			"id":                  e.ID,
			"processInstanceId":   e.ProcessInstanceID,
			"parentId":            e.ParentID,
			"processDefinitionId": e.ProcessDefinitionID,
			"activityId":          e.ActivityID,
			"businessKey":         e.BusinessKey,
			"isActive":            e.IsActive,
			"isScope":             e.IsScope,
			"isConcurrent":        e.IsConcurrent,
			"isEnded":             e.IsEnded,
			"isSuspended":         e.IsSuspended,
			"isMultiInstanceRoot": e.IsMultiInstanceRoot,
			"variables":           vars,
			"hasVariables":        e.Variables != nil,
			"revision":            e.Revision,
		}
	case *persistence.Job:
		m = map[string]any{
			"id":                   e.ID,
			"kind":                 string(e.Kind),
			"dueDate":              marshalTime(e.DueDate),
			"executionId":          e.ExecutionID,
			"processInstanceId":    e.ProcessInstanceID,
			"handlerType":          e.HandlerType,
			"handlerConfiguration": e.HandlerConfiguration,
			"retries":              e.Retries,
			"failures":             e.Failures,
			"lockOwner":            e.LockOwner,
			"lockExpirationTime":   marshalTime(e.LockExpirationTime),
			"exceptionMessage":     e.ExceptionMessage,
			"exceptionStack":       e.ExceptionStack,
			"isSuspended":          e.IsSuspended,
			"revision":             e.Revision,
		}
	case *persistence.Task:
		m = map[string]any{
			"id":                  e.ID,
			"name":                e.Name,
			"executionId":         e.ExecutionID,
			"processInstanceId":   e.ProcessInstanceID,
			"processDefinitionId": e.ProcessDefinitionID,
			"activityId":          e.ActivityID,
			"createdAt":           marshalTime(e.CreatedAt),
			"revision":            e.Revision,
		}
	default:
		panic(fmt.Sprintf("unsupported entity: %T", e))
	}

	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal %s: %w", persistence.RefOf(e), err)
	}

	return proto.Marshal(s)
}

// unmarshal decodes an entity of type t.
func unmarshal(t persistence.Type, data []byte) (persistence.Entity, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, err
	}

	r := reader(s.AsMap())

	switch t {
	case persistence.ExecutionType:
		x := &persistence.Execution{
			ID:                  r.str("id"),
			ProcessInstanceID:   r.str("processInstanceId"),
			ParentID:            r.str("parentId"),
			ProcessDefinitionID: r.str("processDefinitionId"),
			ActivityID:          r.str("activityId"),
			BusinessKey:         r.str("businessKey"),
			IsActive:            r.boolean("isActive"),
			IsScope:             r.boolean("isScope"),
			IsConcurrent:        r.boolean("isConcurrent"),
			IsEnded:             r.boolean("isEnded"),
			IsSuspended:         r.boolean("isSuspended"),
			IsMultiInstanceRoot: r.boolean("isMultiInstanceRoot"),
			Revision:            uint64(r.number("revision")),
		}

		if r.boolean("hasVariables") {
			x.Variables, _ = r["variables"].(map[string]any)
			if x.Variables == nil {
				x.Variables = map[string]any{}
			}
		}

		return x, nil

	case persistence.JobType:
		return &persistence.Job{
			ID:                   r.str("id"),
			Kind:                 persistence.JobKind(r.str("kind")),
			DueDate:              r.time("dueDate"),
			ExecutionID:          r.str("executionId"),
			ProcessInstanceID:    r.str("processInstanceId"),
			HandlerType:          r.str("handlerType"),
			HandlerConfiguration: r.str("handlerConfiguration"),
			Retries:              int(r.number("retries")),
			Failures:             uint(r.number("failures")),
			LockOwner:            r.str("lockOwner"),
			LockExpirationTime:   r.time("lockExpirationTime"),
			ExceptionMessage:     r.str("exceptionMessage"),
			ExceptionStack:       r.str("exceptionStack"),
			IsSuspended:          r.boolean("isSuspended"),
			Revision:             uint64(r.number("revision")),
		}, nil

	default:
		return &persistence.Task{
			ID:                  r.str("id"),
			Name:                r.str("name"),
			ExecutionID:         r.str("executionId"),
			ProcessInstanceID:   r.str("processInstanceId"),
			ProcessDefinitionID: r.str("processDefinitionId"),
			ActivityID:          r.str("activityId"),
			CreatedAt:           r.time("createdAt"),
			Revision:            uint64(r.number("revision")),
		}, nil
	}
}

func marshalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}

// reader extracts typed fields from a decoded struct.
type reader map[string]any

func (r reader) str(k string) string {
	s, _ := r[k].(string)
	return s
}

func (r reader) boolean(k string) bool {
	b, _ := r[k].(bool)
	return b
}

func (r reader) number(k string) float64 {
	n, _ := r[k].(float64)
	return n
}

func (r reader) time(k string) time.Time {
	s := r.str(k)
	if s == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}

	return t
}
