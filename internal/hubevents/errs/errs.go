// Package errs defines the sentinel error taxonomy shared by the hub event
// log components: ID generation, the event log, the commit coordinator, and
// the storage cache all return one of these via errors.Is/errors.As.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParam covers unknown store kinds, unknown event kinds, ID
	// overflow, and malformed iterator bounds.
	ErrInvalidParam = errors.New("hubevents: invalid param")

	// ErrStorageFailure covers any KV-level error encountered during commit,
	// read, or prune.
	ErrStorageFailure = errors.New("hubevents: storage failure")

	// ErrTooBusy is returned when the commit slot's queue is full or a
	// caller's acquire attempt exceeds lock_timeout.
	ErrTooBusy = errors.New("hubevents: too busy")

	// ErrNotFound is returned by GetEvent for an absent ID.
	ErrNotFound = errors.New("hubevents: not found")
)

// Wrap annotates err with a sentinel from this package so errors.Is(wrapped,
// sentinel) succeeds while the formatted message is still available from
// Error().
func Wrap(sentinel error, format string, args ...any) error {
	return &wrapped{sentinel: sentinel, msg: fmt.Sprintf(format, args...)}
}

type wrapped struct {
	sentinel error
	msg      string
}

func (w *wrapped) Error() string { return w.msg }

func (w *wrapped) Unwrap() error { return w.sentinel }
