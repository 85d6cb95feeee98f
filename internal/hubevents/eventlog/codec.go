package eventlog

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/timjrobinson/hub-monorepo/internal/hubevents/errs"
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventid"
)

// wireVersion is bumped if the on-disk event envelope layout ever changes.
// Schema migration of log entries is explicitly out of scope (spec §1
// Non-goals); this constant exists only so a future reader can tell a
// version-1 entry apart from garbage.
const wireVersion = 1

// Encode serializes an Event to the opaque bytes stored at its key. The
// envelope is [version:1 | kind:1 | account:varint | store:1 |
// payload_len:varint | payload]. Payload itself is produced by an external
// collaborator (spec §1/§6) and is never interpreted here.
func Encode(e Event) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(wireVersion)
	buf.WriteByte(byte(e.Kind))
	var varintBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(varintBuf[:], e.Account)
	buf.Write(varintBuf[:n])
	buf.WriteByte(byte(e.Store))
	n = binary.PutUvarint(varintBuf[:], uint64(len(e.Payload)))
	buf.Write(varintBuf[:n])
	buf.Write(e.Payload)
	return buf.Bytes(), nil
}

// Decode parses the bytes stored at id's key back into an Event. Any
// decode failure is fatal for the caller's read — spec §4.2: "the core does
// not attempt tolerant decoding."
func Decode(id eventid.ID, raw []byte) (Event, error) {
	r := bytes.NewReader(raw)

	version, err := r.ReadByte()
	if err != nil {
		return Event{}, errs.Wrap(errs.ErrStorageFailure, "eventlog: decode %s: empty envelope", id)
	}
	if version != wireVersion {
		return Event{}, errs.Wrap(errs.ErrStorageFailure, "eventlog: decode %s: unknown wire version %d", id, version)
	}

	kindByte, err := r.ReadByte()
	if err != nil {
		return Event{}, errs.Wrap(errs.ErrStorageFailure, "eventlog: decode %s: truncated kind: %v", id, err)
	}

	account, err := binary.ReadUvarint(r)
	if err != nil {
		return Event{}, errs.Wrap(errs.ErrStorageFailure, "eventlog: decode %s: truncated account: %v", id, err)
	}

	storeByte, err := r.ReadByte()
	if err != nil {
		return Event{}, errs.Wrap(errs.ErrStorageFailure, "eventlog: decode %s: truncated store: %v", id, err)
	}

	payloadLen, err := binary.ReadUvarint(r)
	if err != nil {
		return Event{}, errs.Wrap(errs.ErrStorageFailure, "eventlog: decode %s: truncated payload length: %v", id, err)
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil && payloadLen > 0 {
		return Event{}, errs.Wrap(errs.ErrStorageFailure, "eventlog: decode %s: truncated payload: %v", id, err)
	}

	return Event{
		ID:      id,
		Kind:    Kind(kindByte),
		Account: account,
		Store:   StoreKind(storeByte),
		Payload: payload,
	}, nil
}

// MakeTsHash builds the composite (timestamp, hash) byte string described in
// the GLOSSARY: lexicographic order over the concatenation equals order
// over the (timestamp, hash) tuple, since timestamp is fixed-width
// big-endian and hash is compared byte-for-byte after it.
func MakeTsHash(farcasterTimestamp uint32, hash []byte) []byte {
	out := make([]byte, 4+len(hash))
	binary.BigEndian.PutUint32(out, farcasterTimestamp)
	copy(out[4:], hash)
	return out
}

// CompareTsHash reports -1, 0, or 1 the way bytes.Compare does, for callers
// that want named comparison semantics instead of raw byte comparison.
func CompareTsHash(a, b []byte) int {
	return bytes.Compare(a, b)
}

