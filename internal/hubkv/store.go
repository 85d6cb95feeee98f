// Package hubkv wraps github.com/cockroachdb/pebble as the embedded ordered
// key-value store required by the hub event log: atomic multi-key
// transactions (batches), point get, and range iteration with
// inclusive-lower/exclusive-upper byte bounds (spec §6's KV store contract).
//
// The teacher repo (steveyegge/beads) has no embedded KV store of its own —
// its storage backends speak database/sql over dolt/sqlite. Pebble is wired
// in from the wider example pack, where ethereum-go-ethereum's go.mod
// depends on it for exactly this role.
package hubkv

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/timjrobinson/hub-monorepo/internal/hubevents/errs"
)

// Store is an embedded ordered key-value store.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if absent) a pebble database at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errs.Wrap(errs.ErrStorageFailure, "hubkv: open %s: %v", dir, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errs.Wrap(errs.ErrStorageFailure, "hubkv: close: %v", err)
	}
	return nil
}

// Get returns the value stored at key, or errs.ErrNotFound if absent.
func (s *Store) Get(key []byte) ([]byte, error) {
	v, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrStorageFailure, "hubkv: get %x: %v", key, err)
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// NewBatch returns a new atomic write batch. Mutations are not visible to
// readers until Commit is called on the Batch.
func (s *Store) NewBatch() *Batch {
	return &Batch{b: s.db.NewBatch()}
}

// NewIterator returns an iterator bounded by [lower, upper). A nil upper
// means unbounded above.
func (s *Store) NewIterator(lower, upper []byte) (*Iterator, error) {
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, errs.Wrap(errs.ErrStorageFailure, "hubkv: new iterator: %v", err)
	}
	return &Iterator{it: it}, nil
}

// Batch is an atomic, uncommitted set of mutations.
type Batch struct {
	b *pebble.Batch
}

// Set stages a put of key/value.
func (t *Batch) Set(key, value []byte) error {
	if err := t.b.Set(key, value, nil); err != nil {
		return errs.Wrap(errs.ErrStorageFailure, "hubkv: batch set: %v", err)
	}
	return nil
}

// Delete stages a delete of key.
func (t *Batch) Delete(key []byte) error {
	if err := t.b.Delete(key, nil); err != nil {
		return errs.Wrap(errs.ErrStorageFailure, "hubkv: batch delete: %v", err)
	}
	return nil
}

// DeleteRange stages a delete of [start, end).
func (t *Batch) DeleteRange(start, end []byte) error {
	if err := t.b.DeleteRange(start, end, nil); err != nil {
		return errs.Wrap(errs.ErrStorageFailure, "hubkv: batch delete range: %v", err)
	}
	return nil
}

// Commit applies the batch atomically and durably.
func (t *Batch) Commit() error {
	if err := t.b.Commit(pebble.Sync); err != nil {
		return errs.Wrap(errs.ErrStorageFailure, "hubkv: batch commit: %v", err)
	}
	return nil
}

// Close discards the batch without committing it.
func (t *Batch) Close() error {
	return t.b.Close()
}

// Iterator walks keys in [lower, upper) order.
type Iterator struct {
	it *pebble.Iterator
}

// SeekGE positions the iterator at the first key >= target.
func (it *Iterator) SeekGE(target []byte) bool {
	return it.it.SeekGE(target)
}

// Next advances the iterator and reports whether a valid entry remains.
func (it *Iterator) Next() bool {
	return it.it.Next()
}

// Valid reports whether the iterator is positioned at a valid entry.
func (it *Iterator) Valid() bool {
	return it.it.Valid()
}

// Key returns the current key. The slice is only valid until the next
// iterator call; callers that retain it must copy.
func (it *Iterator) Key() []byte {
	return it.it.Key()
}

// Value returns the current value, subject to the same lifetime rule as Key.
func (it *Iterator) Value() []byte {
	return it.it.Value()
}

// Close releases the iterator's resources.
func (it *Iterator) Close() error {
	if err := it.it.Close(); err != nil {
		return fmt.Errorf("hubkv: close iterator: %w", err)
	}
	return nil
}
