package hubkv

import (
	"errors"
	"testing"

	"github.com/timjrobinson/hub-monorepo/internal/hubevents/errs"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get([]byte("missing"))
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("got %v, want errs.ErrNotFound", err)
	}
}

func TestBatchSetCommitThenGet(t *testing.T) {
	s := openTestStore(t)
	b := s.NewBatch()
	if err := b.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("batch set: %v", err)
	}
	if err := b.Commit(); err != nil {
		t.Fatalf("batch commit: %v", err)
	}

	got, err := s.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("Get = %q, want %q", got, "v")
	}
}

func TestBatchDeleteRemovesKey(t *testing.T) {
	s := openTestStore(t)
	b := s.NewBatch()
	_ = b.Set([]byte("k"), []byte("v"))
	if err := b.Commit(); err != nil {
		t.Fatalf("batch commit: %v", err)
	}

	b2 := s.NewBatch()
	if err := b2.Delete([]byte("k")); err != nil {
		t.Fatalf("batch delete: %v", err)
	}
	if err := b2.Commit(); err != nil {
		t.Fatalf("batch commit: %v", err)
	}

	if _, err := s.Get([]byte("k")); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("got %v, want errs.ErrNotFound after delete", err)
	}
}

func TestIteratorWalksBoundedRange(t *testing.T) {
	s := openTestStore(t)
	b := s.NewBatch()
	for _, k := range []string{"a", "b", "c", "d"} {
		_ = b.Set([]byte(k), []byte(k))
	}
	if err := b.Commit(); err != nil {
		t.Fatalf("batch commit: %v", err)
	}

	it, err := s.NewIterator([]byte("b"), []byte("d"))
	if err != nil {
		t.Fatalf("NewIterator: %v", err)
	}
	defer it.Close()

	var got []string
	for ok := it.SeekGE([]byte("b")); ok; ok = it.Next() {
		got = append(got, string(it.Key()))
	}
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("iterator walked %v, want [b c]", got)
	}
}
