// Package prunability implements the read-only decision of whether a
// message is eligible to be pruned, per spec §4.7. It never touches the KV
// store directly — every input comes from the in-memory usage cache, so the
// decision is cheap enough to run on every merge.
package prunability

import (
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventlog"
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/storecache"
)

// FarcasterTimeFunc returns the current Farcaster epoch time (seconds since
// the Farcaster epoch), injected so tests can drive it deterministically
// instead of reading the wall clock.
type FarcasterTimeFunc func() (uint32, error)

// Message is the minimal shape the oracle needs of a candidate message —
// just enough of spec §4.7's inputs to decide prunability without pulling
// in the full message schema the per-store merge logic owns.
type Message struct {
	Account uint64
	Store   eventlog.StoreKind
	TsHash  []byte
	// Timestamp is the message's own Farcaster timestamp, used for the
	// time-limit check independent of the ts-hash comparison.
	Timestamp uint32
}

// Oracle decides prunability using only the in-memory cache — no KV access
// (spec §4.7).
type Oracle struct {
	cache *storecache.Cache
	now   FarcasterTimeFunc
}

// New builds an Oracle reading from cache, using now to obtain the current
// Farcaster time for the time-limit check.
func New(cache *storecache.Cache, now FarcasterTimeFunc) *Oracle {
	return &Oracle{cache: cache, now: now}
}

// IsPrunable runs spec §4.7's algorithm, stopping at the first definitive
// answer:
//  1. Obtain the current Farcaster time; fail if unavailable.
//  2. If timeLimitSeconds is set and the message is older than it, prunable
//     regardless of size or floor position.
//  3. Let units be the account's storage-unit balance. If the set's message
//     count is under sizeLimit*units, the set isn't full — not prunable on
//     size grounds.
//  4. Otherwise the set is full: the message is prunable only if its ts-hash
//     is strictly smaller than the set's current floor (earliest by ts-hash
//     order) — a full set displaces its oldest entry, and anything
//     lexicographically smaller than today's floor would become the new one.
//     A message equal to the floor, or a set with no known floor, is not
//     prunable.
func (o *Oracle) IsPrunable(msg Message, sizeLimit uint32, timeLimitSeconds *uint32) (bool, error) {
	now, err := o.now()
	if err != nil {
		return false, err
	}

	if timeLimitSeconds != nil {
		threshold := int64(now) - int64(*timeLimitSeconds)
		if int64(msg.Timestamp) < threshold {
			return true, nil
		}
	}

	units := o.cache.GetStorageUnits(msg.Account)
	count := o.cache.GetMessageCount(msg.Account, msg.Store)
	capacity := uint64(sizeLimit) * uint64(units)
	if uint64(count) < capacity {
		return false, nil
	}

	earliest := o.cache.GetEarliestTsHash(msg.Account, msg.Store)
	if earliest == nil {
		return false, nil
	}
	return eventlog.CompareTsHash(msg.TsHash, earliest) < 0, nil
}
