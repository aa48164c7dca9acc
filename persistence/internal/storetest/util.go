package storetest

import (
	"context"

	"github.com/dogmatiq/flowstate/persistence"
	"github.com/onsi/gomega"
)

// persist persists a batch in its own transaction.
func persist(
	ctx context.Context,
	s persistence.Store,
	ops ...persistence.Operation,
) error {
	return persistence.Persist(ctx, s, persistence.Batch(ops))
}

// mustPersist persists a batch and asserts that no error occurs.
func mustPersist(
	ctx context.Context,
	s persistence.Store,
	ops ...persistence.Operation,
) {
	err := persist(ctx, s, ops...)
	gomega.ExpectWithOffset(1, err).ShouldNot(gomega.HaveOccurred())
}

// load loads an entity in its own transaction.
func load(
	ctx context.Context,
	s persistence.Store,
	t persistence.Type,
	id string,
) (persistence.Entity, bool) {
	var (
		e  persistence.Entity
		ok bool
	)

	err := persistence.WithTransaction(
		ctx,
		s,
		func(tx persistence.Transaction) error {
			var err error
			e, ok, err = tx.Load(ctx, t, id)
			return err
		},
	)
	gomega.ExpectWithOffset(1, err).ShouldNot(gomega.HaveOccurred())

	return e, ok
}

// read runs fn inside a transaction that is rolled back afterwards.
func read(
	ctx context.Context,
	s persistence.Store,
	fn func(persistence.Transaction),
) {
	tx, err := s.Begin(ctx)
	gomega.ExpectWithOffset(1, err).ShouldNot(gomega.HaveOccurred())
	defer tx.Rollback()

	fn(tx)
}
