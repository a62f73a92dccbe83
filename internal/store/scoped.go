package store

// Scoped wraps a Tx so every bucket name is namespaced under prefix,
// letting one physical Store (one Postgres connection, one in-memory map)
// back several markets without their bucket constants colliding — the
// engine packages (position, pool, ...) are written against fixed bucket
// names and have no notion of which market they are operating on.
func Scoped(tx Tx, prefix string) Tx {
	return &scopedTx{tx: tx, prefix: prefix}
}

type scopedTx struct {
	tx     Tx
	prefix string
}

func (s *scopedTx) bucket(b string) string { return s.prefix + ":" + b }

func (s *scopedTx) Get(bucket string, key Key) ([]byte, error) {
	return s.tx.Get(s.bucket(bucket), key)
}

func (s *scopedTx) Set(bucket string, key Key, value []byte) error {
	return s.tx.Set(s.bucket(bucket), key, value)
}

func (s *scopedTx) Delete(bucket string, key Key) error {
	return s.tx.Delete(s.bucket(bucket), key)
}

func (s *scopedTx) Range(bucket string, from, to Key, fn func(Entry) bool) error {
	return s.tx.Range(s.bucket(bucket), from, to, fn)
}

func (s *scopedTx) RangeDescending(bucket string, from, to Key, fn func(Entry) bool) error {
	return s.tx.RangeDescending(s.bucket(bucket), from, to, fn)
}

func (s *scopedTx) MultiGet(bucket string, keys []Key) (map[string][]byte, error) {
	return s.tx.MultiGet(s.bucket(bucket), keys)
}

func (s *scopedTx) Commit() error   { return s.tx.Commit() }
func (s *scopedTx) Rollback() error { return s.tx.Rollback() }
