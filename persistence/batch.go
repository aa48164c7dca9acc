package persistence

import (
	"context"
	"fmt"
)

// Batch is a set of operations that are committed to the store atomically.
type Batch []Operation

// MustValidate panics if the batch contains any operations that operate on the
// same entity.
func (b Batch) MustValidate() {
	seen := make(map[Ref]struct{}, len(b))

	for _, op := range b {
		r := RefOf(op.Subject())

		if _, ok := seen[r]; ok {
			panic(fmt.Sprintf(
				"batch contains multiple operations for the same entity (%s)",
				r,
			))
		}

		seen[r] = struct{}{}
	}
}

// AcceptVisitor visits each operation in the batch, in order.
//
// It stops at the first error.
func (b Batch) AcceptVisitor(ctx context.Context, v OperationVisitor) error {
	for _, op := range b {
		if err := op.AcceptVisitor(ctx, v); err != nil {
			return err
		}
	}

	return nil
}
