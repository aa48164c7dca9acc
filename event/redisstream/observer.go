// Package redisstream publishes lifecycle events to a Redis stream.
package redisstream

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dogmatiq/flowstate/event"
	"github.com/redis/go-redis/v9"
)

// DefaultStream is the default name of the stream that events are added to.
var DefaultStream = "flowstate:events"

// Client is the subset of the Redis client used by Observer.
//
// It is satisfied by *redis.Client and *redis.ClusterClient.
type Client interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Observer is an event.Observer that adds each lifecycle event to a Redis
// stream.
type Observer struct {
	// Client is the Redis client used to add events to the stream.
	Client Client

	// Stream is the name of the stream. If it is empty, DefaultStream is used.
	Stream string

	// MaxLen, if non-zero, is the approximate number of entries retained in
	// the stream.
	MaxLen int64

	// IncludeEntityEvents, if true, publishes the entity-created,
	// entity-updated and entity-deleted events as well as the process-level
	// lifecycle events.
	IncludeEntityEvents bool
}

// Notify adds ev to the stream.
func (o *Observer) Notify(ctx context.Context, ev event.Event) error {
	if !o.IncludeEntityEvents && ev.Entity != nil {
		return nil
	}

	data, err := sonic.Marshal(marshalEvent(ev))
	if err != nil {
		return fmt.Errorf("unable to marshal %s event: %w", ev.Kind, err)
	}

	stream := o.Stream
	if stream == "" {
		stream = DefaultStream
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"kind":  string(ev.Kind),
			"event": data,
		},
	}

	if o.MaxLen > 0 {
		args.MaxLen = o.MaxLen
		args.Approx = true
	}

	if err := o.Client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("unable to add %s event to the %s stream: %w", ev.Kind, stream, err)
	}

	return nil
}

// payload is the JSON representation of an event within a stream entry.
type payload struct {
	Kind                event.Kind `json:"kind"`
	Time                time.Time  `json:"time"`
	ProcessInstanceID   string     `json:"processInstanceId,omitempty"`
	ProcessDefinitionID string     `json:"processDefinitionId,omitempty"`
	ExecutionID         string     `json:"executionId,omitempty"`
	ActivityID          string     `json:"activityId,omitempty"`
	TaskID              string     `json:"taskId,omitempty"`
	JobID               string     `json:"jobId,omitempty"`
	EntityType          string     `json:"entityType,omitempty"`
	EntityID            string     `json:"entityId,omitempty"`
	EntityRevision      uint64     `json:"entityRevision,omitempty"`
	Message             string     `json:"message,omitempty"`
}

func marshalEvent(ev event.Event) payload {
	p := payload{
		Kind:                ev.Kind,
		Time:                ev.Time,
		ProcessInstanceID:   ev.ProcessInstanceID,
		ProcessDefinitionID: ev.ProcessDefinitionID,
		ExecutionID:         ev.ExecutionID,
		ActivityID:          ev.ActivityID,
		TaskID:              ev.TaskID,
		JobID:               ev.JobID,
		Message:             ev.Message,
	}

	if ev.Entity != nil {
		p.EntityType = ev.Entity.EntityType().String()
		p.EntityID = ev.Entity.EntityID()
		p.EntityRevision = ev.Entity.EntityRevision()
	}

	return p
}
