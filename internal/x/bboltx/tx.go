package bboltx

import "go.etcd.io/bbolt"

// View executes fn within a read-only transaction.
func View(db *bbolt.DB, fn func(tx *bbolt.Tx)) {
	Must(db.View(func(tx *bbolt.Tx) error {
		fn(tx)
		return nil
	}))
}

// Update executes fn within a read-write transaction.
//
// If fn panics with a PanicSentinel the transaction is rolled back and the
// panic propagates to the caller.
func Update(db *bbolt.DB, fn func(tx *bbolt.Tx)) {
	Must(db.Update(func(tx *bbolt.Tx) (err error) {
		defer Recover(&err)
		fn(tx)
		return nil
	}))
}
