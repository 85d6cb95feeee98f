package storecache

import (
	"encoding/binary"

	"github.com/timjrobinson/hub-monorepo/internal/hubevents/errs"
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventlog"
)

// MessagePayload is the wire shape of an Event.Payload for the four
// message-lifecycle kinds (MergeMessage, PruneMessage, RevokeMessage,
// MergeUsernameProof): [ts_hash_len:varint | ts_hash | delta_storage_units:
// zigzag-varint]. Built by the per-store merge logic before it calls the
// commit coordinator; storecache only ever decodes it.
type MessagePayload struct {
	TsHash            []byte
	DeltaStorageUnits int32
}

// EncodeMessagePayload serializes p for use as an Event.Payload.
func EncodeMessagePayload(p MessagePayload) []byte {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(p.TsHash)))
	out := append([]byte(nil), lenBuf[:n]...)
	out = append(out, p.TsHash...)
	var zBuf [binary.MaxVarintLen64]byte
	zn := binary.PutVarint(zBuf[:], int64(p.DeltaStorageUnits))
	out = append(out, zBuf[:zn]...)
	return out
}

func decodeMessagePayload(raw []byte) (MessagePayload, error) {
	tsHashLen, n := binary.Uvarint(raw)
	if n <= 0 {
		return MessagePayload{}, errs.Wrap(errs.ErrStorageFailure, "storecache: truncated payload: ts-hash length")
	}
	raw = raw[n:]
	if uint64(len(raw)) < tsHashLen {
		return MessagePayload{}, errs.Wrap(errs.ErrStorageFailure, "storecache: truncated payload: ts-hash")
	}
	tsHash := raw[:tsHashLen]
	raw = raw[tsHashLen:]
	delta, n := binary.Varint(raw)
	if n <= 0 {
		return MessagePayload{}, errs.Wrap(errs.ErrStorageFailure, "storecache: truncated payload: delta storage units")
	}
	return MessagePayload{TsHash: tsHash, DeltaStorageUnits: int32(delta)}, nil
}

// OnChainPayload is the wire shape for MergeOnChainEvent: the account's
// storage-unit balance changed by an amount independent of any message
// (a purchase, a refund, an expiry).
type OnChainPayload struct {
	DeltaStorageUnits int32
}

// EncodeOnChainPayload serializes p for use as an Event.Payload.
func EncodeOnChainPayload(p OnChainPayload) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutVarint(buf[:], int64(p.DeltaStorageUnits))
	return append([]byte(nil), buf[:n]...)
}

func decodeOnChainPayload(raw []byte) (OnChainPayload, error) {
	delta, n := binary.Varint(raw)
	if n <= 0 {
		return OnChainPayload{}, errs.Wrap(errs.ErrStorageFailure, "storecache: truncated on-chain payload")
	}
	return OnChainPayload{DeltaStorageUnits: int32(delta)}, nil
}

// ProcessEvent updates the cache from a just-committed Event, in the order
// the commit coordinator hands them over (spec §5: post-commit fan-out must
// preserve commit order). It is the only place besides SyncFromDB that
// mutates counts/earliest/storageUnits.
func (c *Cache) ProcessEvent(e eventlog.Event) error {
	switch e.Kind {
	case eventlog.KindMergeMessage, eventlog.KindMergeUsernameProof:
		p, err := decodeMessagePayload(e.Payload)
		if err != nil {
			return err
		}
		c.applyMerge(e.Account, e.Store, p)
	case eventlog.KindPruneMessage, eventlog.KindRevokeMessage:
		p, err := decodeMessagePayload(e.Payload)
		if err != nil {
			return err
		}
		c.applyRemoval(e.Account, e.Store, p)
	case eventlog.KindMergeOnChainEvent:
		p, err := decodeOnChainPayload(e.Payload)
		if err != nil {
			return err
		}
		c.applyOnChain(e.Account, p)
	default:
		return errs.Wrap(errs.ErrInvalidParam, "storecache: unhandled event kind %s", e.Kind)
	}
	return nil
}

func (c *Cache) applyMerge(account uint64, store eventlog.StoreKind, p MessagePayload) {
	k := key{account, store}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[k]++
	st := c.earliest[k]
	switch {
	case st.needsRefresh:
		// The true floor is unknown until the next durable scan — a
		// still-older message may exist in the index, so the newly merged
		// tsHash cannot be installed as the floor. Leave needsRefresh set.
	case !st.present:
		c.earliest[k] = tsHashState{present: true, bytes: p.TsHash}
	case eventlog.CompareTsHash(p.TsHash, st.bytes) < 0:
		c.earliest[k] = tsHashState{present: true, bytes: p.TsHash}
	}
	c.addStorageUnitsLocked(account, p.DeltaStorageUnits)
}

// applyRemoval handles PruneMessage/RevokeMessage. If the removed message
// was the cached floor, the floor cannot be known without a durable scan —
// it is marked needsRefresh rather than guessed, and recomputed lazily on
// the next GetUsage call that is given a DBIndex (spec §9 "Cache repair").
func (c *Cache) applyRemoval(account uint64, store eventlog.StoreKind, p MessagePayload) {
	k := key{account, store}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts[k] > 0 {
		c.counts[k]--
	}
	st := c.earliest[k]
	if st.present && eventlog.CompareTsHash(p.TsHash, st.bytes) == 0 {
		if c.counts[k] == 0 {
			c.earliest[k] = tsHashState{present: false}
		} else {
			c.earliest[k] = tsHashState{needsRefresh: true}
		}
	}
	c.addStorageUnitsLocked(account, p.DeltaStorageUnits)
}

func (c *Cache) applyOnChain(account uint64, p OnChainPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addStorageUnitsLocked(account, p.DeltaStorageUnits)
}

// addStorageUnitsLocked applies delta to account's balance, clamping at zero
// — storage units never go negative even if deltas race with an expiry.
func (c *Cache) addStorageUnitsLocked(account uint64, delta int32) {
	cur := int64(c.storageUnits[account]) + int64(delta)
	if cur < 0 {
		cur = 0
	}
	c.storageUnits[account] = uint32(cur)
}

// AccountSnapshot is an immutable per-account view returned by Snapshot.
type AccountSnapshot struct {
	Account      uint64
	StorageUnits uint32
	Counts       map[eventlog.StoreKind]uint32
}

// Snapshot returns a point-in-time copy of account's cache state, safe for
// the caller to retain without holding any lock.
func (c *Cache) Snapshot(account uint64) AccountSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := AccountSnapshot{
		Account:      account,
		StorageUnits: c.storageUnits[account],
		Counts:       make(map[eventlog.StoreKind]uint32),
	}
	for k, n := range c.counts {
		if k.account == account {
			out.Counts[k.store] = n
		}
	}
	return out
}
