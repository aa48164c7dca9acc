package cache

import (
	"context"
	"fmt"
	"sort"

	"github.com/dogmatiq/flowstate/persistence"
)

// OrphanError is returned by Flush() when an entity is deleted while an entity
// that depends on it is not.
type OrphanError struct {
	Parent persistence.Ref
	Child  persistence.Ref
}

func (e OrphanError) Error() string {
	return fmt.Sprintf(
		"can not delete %s, %s still depends on it",
		e.Parent,
		e.Child,
	)
}

// Flush returns the batch of operations that persists the changes made within
// this command.
//
// Inserts come first, ordered so that referenced entities precede the entities
// that reference them. Updates follow, ordered by type and ID. Deletes come
// last, ordered so that referencing entities precede the entities they
// reference.
func (c *Cache) Flush(ctx context.Context) (persistence.Batch, error) {
	var ins, upd, del []*entry

	for _, en := range c.entries {
		switch en.state {
		case inserted:
			ins = append(ins, en)
		case updated:
			upd = append(upd, en)
		case deleted:
			del = append(del, en)
		}
	}

	if err := c.checkOrphans(ctx, del); err != nil {
		return nil, err
	}

	var batch persistence.Batch

	for _, en := range orderByReferences(ins, false) {
		batch = append(batch, persistence.Insert{Entity: en.entity})
	}

	sort.Slice(upd, func(i, j int) bool {
		a, b := upd[i].entity, upd[j].entity
		if a.EntityType() != b.EntityType() {
			return a.EntityType().Rank() < b.EntityType().Rank()
		}
		return a.EntityID() < b.EntityID()
	})

	for _, en := range upd {
		batch = append(batch, persistence.Update{Entity: en.entity})
	}

	for _, en := range orderByReferences(del, true) {
		batch = append(batch, persistence.Delete{Entity: en.entity})
	}

	return batch, nil
}

// checkOrphans verifies that every entity depending on a deleted execution is
// itself deleted.
func (c *Cache) checkOrphans(ctx context.Context, del []*entry) error {
	for _, en := range del {
		x, ok := en.entity.(*persistence.Execution)
		if !ok {
			continue
		}

		parent := persistence.RefOf(x)

		children, err := c.FindExecutions(ctx, persistence.ExecutionQuery{ParentID: x.ID})
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return OrphanError{parent, persistence.RefOf(children[0])}
		}

		jobs, err := c.FindJobs(ctx, persistence.JobQuery{ExecutionID: x.ID})
		if err != nil {
			return err
		}
		if len(jobs) > 0 {
			return OrphanError{parent, persistence.RefOf(jobs[0])}
		}

		tasks, err := c.FindTasks(ctx, persistence.TaskQuery{ExecutionID: x.ID})
		if err != nil {
			return err
		}
		if len(tasks) > 0 {
			return OrphanError{parent, persistence.RefOf(tasks[0])}
		}
	}

	return nil
}

// orderByReferences sorts entries by type rank, then staging order, then
// moves each entry after any entry it references. If reverse is true the
// resulting order is reversed.
func orderByReferences(entries []*entry, reverse bool) []*entry {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		ra, rb := a.entity.EntityType().Rank(), b.entity.EntityType().Rank()
		if ra != rb {
			return ra < rb
		}
		return a.seq < b.seq
	})

	pending := map[persistence.Ref]*entry{}
	for _, en := range entries {
		pending[persistence.RefOf(en.entity)] = en
	}

	result := make([]*entry, 0, len(entries))

	var visit func(en *entry)
	visit = func(en *entry) {
		r := persistence.RefOf(en.entity)
		if _, ok := pending[r]; !ok {
			return
		}
		delete(pending, r)

		for _, dep := range en.entity.References() {
			if d, ok := pending[dep]; ok {
				visit(d)
			}
		}

		result = append(result, en)
	}

	for _, en := range entries {
		visit(en)
	}

	if reverse {
		for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
			result[i], result[j] = result[j], result[i]
		}
	}

	return result
}
