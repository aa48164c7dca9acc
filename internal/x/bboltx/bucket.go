package bboltx

import "go.etcd.io/bbolt"

// CreateBucketIfNotExists creates nested buckets with names given by the
// elements of path.
func CreateBucketIfNotExists(p BucketParent, path ...[]byte) *bbolt.Bucket {
	if len(path) == 0 {
		panic("at least one path element must be provided")
	}

	var b *bbolt.Bucket

	for _, n := range path {
		var err error
		b, err = p.CreateBucketIfNotExists(n)
		Must(err)

		p = b
	}

	return b
}

// Bucket gets nested buckets with names given by the elements of path.
//
// It returns nil if any of the nested buckets does not exist.
func Bucket(p BucketParent, path ...[]byte) (b *bbolt.Bucket) {
	if len(path) == 0 {
		panic("at least one path element must be provided")
	}

	for _, n := range path {
		b = p.Bucket(n)
		if b == nil {
			return nil
		}

		p = b
	}

	return b
}

// Put writes a value to a bucket.
func Put(b *bbolt.Bucket, k, v []byte) {
	Must(b.Put(k, v))
}

// Delete removes a key from a bucket.
func Delete(b *bbolt.Bucket, k []byte) {
	Must(b.Delete(k))
}

// DeleteBucketIfEmpty removes the child bucket named k from p if it contains
// no keys.
func DeleteBucketIfEmpty(p BucketParent, k []byte) {
	b := p.Bucket(k)
	if b == nil {
		return
	}

	if k, _ := b.Cursor().First(); k != nil {
		return
	}

	Must(p.DeleteBucket(k))
}
