package persistence

import "context"

// WithTransaction executes fn inside a transaction.
//
// If fn returns nil the transaction is committed. Otherwise, the transaction is
// rolled-back and the error is returned.
func WithTransaction(
	ctx context.Context,
	s Store,
	fn func(Transaction) error,
) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Persist commits a single batch of operations in its own transaction.
func Persist(ctx context.Context, s Store, b Batch) error {
	return WithTransaction(
		ctx,
		s,
		func(tx Transaction) error {
			return tx.Persist(ctx, b)
		},
	)
}
