package eventlog

import (
	"encoding/binary"

	"github.com/timjrobinson/hub-monorepo/internal/hubevents/errs"
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventid"
)

// RootPrefix namespaces every key this package owns within the shared KV
// store, following erigon-lib/kv/tables.go's convention of a short name plus
// a one-line key/value layout comment per keyspace.
const (
	// HubEvents: id_be8 -> encoded Event. The 9-byte key is [prefix | id_be8].
	RootPrefixHubEvents byte = 0x01
)

// eventKeyLen is the fixed length of a fully-qualified event key: 1-byte
// prefix + 8-byte big-endian ID.
const eventKeyLen = 1 + 8

// MakeEventKey encodes id into the 9-byte [prefix|id_be8] layout of spec
// §3's Log Key. An id of 0 is treated as "no id supplied" and yields the
// 1-byte prefix-only key — the lower bound for full-log scans (spec §9: this
// corner is preserved, not silently fixed). Commit takes no caller-supplied
// ID, and it does not itself check the generated ID against 0.
func MakeEventKey(id eventid.ID) []byte {
	if id == 0 {
		return []byte{RootPrefixHubEvents}
	}
	key := make([]byte, eventKeyLen)
	key[0] = RootPrefixHubEvents
	binary.BigEndian.PutUint64(key[1:], uint64(id))
	return key
}

// SplitEventKey decodes a fully-qualified 9-byte event key back into its ID.
func SplitEventKey(key []byte) (eventid.ID, error) {
	if len(key) != eventKeyLen || key[0] != RootPrefixHubEvents {
		return 0, errs.Wrap(errs.ErrInvalidParam, "eventlog: malformed event key %x", key)
	}
	return eventid.ID(binary.BigEndian.Uint64(key[1:])), nil
}

// lowerBound returns the inclusive lower bound for a scan starting at
// fromID. fromID == 0 yields the bare prefix (the start of the whole log).
func lowerBound(fromID eventid.ID) []byte {
	return MakeEventKey(fromID)
}

// upperBound returns the exclusive upper bound for a scan. If toID is set
// (non-zero), it is MakeEventKey(toID) verbatim (exclusive by construction,
// since the caller never wants toID's own entry included — callers who do
// want it pass toID+1). If toID is zero, the bound is the byte-wise
// increment of the bare RootPrefixHubEvents prefix, promoting a carry
// cleanly; if the prefix is 0xFF (no successor exists), an error is
// returned rather than scanning the whole key space — spec §4.4.
func upperBound(toID eventid.ID) ([]byte, error) {
	if toID != 0 {
		return MakeEventKey(toID), nil
	}
	return incrementPrefix([]byte{RootPrefixHubEvents})
}

// incrementPrefix returns the lexicographically next byte string after the
// prefix that is NOT itself prefixed by prefix — i.e. the smallest key that
// sorts after every key beginning with prefix. Promotes carries through
// trailing 0xFF bytes; returns an error if prefix is all 0xFF (no successor
// exists in the key space).
func incrementPrefix(prefix []byte) ([]byte, error) {
	out := make([]byte, len(prefix))
	copy(out, prefix)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1], nil
		}
	}
	return nil, errs.Wrap(errs.ErrInvalidParam, "eventlog: prefix %x has no successor", prefix)
}

// Bounds returns the [lower, upper) iterator bounds for a scan starting at
// fromID (0 = start of log) and ending before toID (0 = end of log).
func Bounds(fromID, toID eventid.ID) (lower, upper []byte, err error) {
	lower = lowerBound(fromID)
	upper, err = upperBound(toID)
	if err != nil {
		return nil, nil, err
	}
	return lower, upper, nil
}
