package boltstore

import (
	"time"

	"github.com/dogmatiq/flowstate/internal/x/bboltx"
	"github.com/dogmatiq/flowstate/persistence"
	"go.etcd.io/bbolt"
)

var (
	// recordsBucketKey is the key for the root bucket that contains a child
	// bucket for each entity type.
	//
	// Within each child bucket the keys are entity IDs and the values are
	// structpb.Struct values marshaled using protocol buffers.
	recordsBucketKey = []byte("records")

	// indexBucketKey is the key for the root bucket that contains secondary
	// indexes.
	//
	// Each index is a child bucket whose keys are the indexed value. The values
	// are further sub-buckets in which the keys are entity IDs and the values
	// are always nil. This allows representation of multiple entities with the
	// same indexed value.
	indexBucketKey = []byte("index")

	executionParentIndex   = []byte("execution.parent")
	executionInstanceIndex = []byte("execution.instance")
	jobExecutionIndex      = []byte("job.execution")
	jobInstanceIndex       = []byte("job.instance")
	taskExecutionIndex     = []byte("task.execution")
	taskInstanceIndex      = []byte("task.instance")

	// jobDueIndex indexes jobs by their due date. The keys are fixed-width
	// UTC timestamps so that byte order matches chronological order.
	jobDueIndex = []byte("job.due")
)

// dueKeyFormat is a fixed-width time format that sorts lexically.
const dueKeyFormat = "2006-01-02T15:04:05.000000000Z"

func dueKey(t time.Time) []byte {
	return []byte(t.UTC().Format(dueKeyFormat))
}

func typeBucketKey(t persistence.Type) []byte {
	return []byte(t.String())
}

// recordBucket returns the bucket containing records of type t, or nil if it
// does not exist.
func recordBucket(tx *bbolt.Tx, t persistence.Type) *bbolt.Bucket {
	return bboltx.Bucket(tx, recordsBucketKey, typeBucketKey(t))
}

// addToIndex adds id to the index entry for key.
func addToIndex(tx *bbolt.Tx, index []byte, key []byte, id string) {
	if len(key) == 0 {
		return
	}

	b := bboltx.CreateBucketIfNotExists(tx, indexBucketKey, index, key)
	bboltx.Put(b, []byte(id), nil)
}

// removeFromIndex removes id from the index entry for key.
func removeFromIndex(tx *bbolt.Tx, index []byte, key []byte, id string) {
	if len(key) == 0 {
		return
	}

	parent := bboltx.Bucket(tx, indexBucketKey, index)
	if parent == nil {
		return
	}

	b := parent.Bucket(key)
	if b == nil {
		return
	}

	bboltx.Delete(b, []byte(id))
	bboltx.DeleteBucketIfEmpty(parent, key)
}

// scanIndex calls fn for each ID in the index entry for key.
func scanIndex(tx *bbolt.Tx, index []byte, key []byte, fn func(id string)) {
	b := bboltx.Bucket(tx, indexBucketKey, index, key)
	if b == nil {
		return
	}

	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		fn(string(k))
	}
}
