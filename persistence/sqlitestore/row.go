package sqlitestore

import (
	"database/sql"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dogmatiq/flowstate/persistence"
)

var (
	executionColumns = []string{
		"id",
		"revision",
		"process_instance_id",
		"parent_id",
		"process_definition_id",
		"activity_id",
		"business_key",
		"is_active",
		"is_scope",
		"is_concurrent",
		"is_ended",
		"is_suspended",
		"is_multi_instance_root",
		"variables",
	}

	jobColumns = []string{
		"id",
		"revision",
		"kind",
		"due_date",
		"execution_id",
		"process_instance_id",
		"handler_type",
		"handler_configuration",
		"retries",
		"failures",
		"lock_owner",
		"lock_expiration_time",
		"exception_message",
		"exception_stack",
		"is_suspended",
	}

	taskColumns = []string{
		"id",
		"revision",
		"name",
		"execution_id",
		"process_instance_id",
		"process_definition_id",
		"activity_id",
		"created_at",
	}
)

// scan reads an entity of type t from the current row.
func scan(t persistence.Type, rows *sql.Rows) (persistence.Entity, error) {
	switch t {
	case persistence.ExecutionType:
		var (
			x      persistence.Execution
			parent sql.NullString
			vars   sql.NullString
		)

		if err := rows.Scan(
			&x.ID,
			&x.Revision,
			&x.ProcessInstanceID,
			&parent,
			&x.ProcessDefinitionID,
			&x.ActivityID,
			&x.BusinessKey,
			&x.IsActive,
			&x.IsScope,
			&x.IsConcurrent,
			&x.IsEnded,
			&x.IsSuspended,
			&x.IsMultiInstanceRoot,
			&vars,
		); err != nil {
			return nil, err
		}

		x.ParentID = parent.String

		if vars.Valid {
			x.Variables = map[string]any{}
			if err := sonic.UnmarshalString(vars.String, &x.Variables); err != nil {
				return nil, err
			}
		}

		return &x, nil

	case persistence.JobType:
		var (
			j         persistence.Job
			kind      string
			due, lock sql.NullInt64
		)

		if err := rows.Scan(
			&j.ID,
			&j.Revision,
			&kind,
			&due,
			&j.ExecutionID,
			&j.ProcessInstanceID,
			&j.HandlerType,
			&j.HandlerConfiguration,
			&j.Retries,
			&j.Failures,
			&j.LockOwner,
			&lock,
			&j.ExceptionMessage,
			&j.ExceptionStack,
			&j.IsSuspended,
		); err != nil {
			return nil, err
		}

		j.Kind = persistence.JobKind(kind)
		j.DueDate = fromNanos(due)
		j.LockExpirationTime = fromNanos(lock)

		return &j, nil

	default:
		var (
			t       persistence.Task
			created sql.NullInt64
		)

		if err := rows.Scan(
			&t.ID,
			&t.Revision,
			&t.Name,
			&t.ExecutionID,
			&t.ProcessInstanceID,
			&t.ProcessDefinitionID,
			&t.ActivityID,
			&created,
		); err != nil {
			return nil, err
		}

		t.CreatedAt = fromNanos(created)

		return &t, nil
	}
}

// values returns the column values for e, excluding id and revision, in the
// same order as the column lists.
func values(e persistence.Entity) ([]any, error) {
	switch e := e.(type) {
	case *persistence.Execution:
		var vars sql.NullString

		if e.Variables != nil {
			s, err := sonic.MarshalString(e.Variables)
			if err != nil {
				return nil, err
			}

			vars = sql.NullString{String: s, Valid: true}
		}

		return []any{
			e.ProcessInstanceID,
			sql.NullString{String: e.ParentID, Valid: e.ParentID != ""},
			e.ProcessDefinitionID,
			e.ActivityID,
			e.BusinessKey,
			e.IsActive,
			e.IsScope,
			e.IsConcurrent,
			e.IsEnded,
			e.IsSuspended,
			e.IsMultiInstanceRoot,
			vars,
		}, nil

	case *persistence.Job:
		return []any{
			string(e.Kind),
			toNanos(e.DueDate),
			e.ExecutionID,
			e.ProcessInstanceID,
			e.HandlerType,
			e.HandlerConfiguration,
			e.Retries,
			e.Failures,
			e.LockOwner,
			toNanos(e.LockExpirationTime),
			e.ExceptionMessage,
			e.ExceptionStack,
			e.IsSuspended,
		}, nil

	default:
		t := e.(*persistence.Task)

		return []any{
			t.Name,
			t.ExecutionID,
			t.ProcessInstanceID,
			t.ProcessDefinitionID,
			t.ActivityID,
			toNanos(t.CreatedAt),
		}, nil
	}
}

func columnsOf(t persistence.Type) []string {
	switch t {
	case persistence.ExecutionType:
		return executionColumns
	case persistence.JobType:
		return jobColumns
	default:
		return taskColumns
	}
}

func toNanos(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNanos(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}

	return time.Unix(0, n.Int64).UTC()
}
