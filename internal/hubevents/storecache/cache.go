// Package storecache maintains the in-memory per-(account, store) usage
// cache that drives pruning decisions: message counts and the earliest
// time-hashed key per set, plus per-account storage-unit quotas (spec §4.3).
package storecache

import (
	"fmt"
	"log"
	"sync"

	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventlog"
)

// tsHashState is the tri-state of an (account, set)'s earliest_ts_hash:
// present (with the bytes), absent (the set is empty), or needsRefresh (the
// floor was just removed and must be recomputed from the durable index
// before it can be trusted again) — spec §9's "Cache repair" note, made
// explicit instead of overloading a nil byte slice for two different
// meanings.
type tsHashState struct {
	present bool
	needsRefresh bool
	bytes   []byte
}

type key struct {
	account uint64
	store   eventlog.StoreKind
}

// Usage bundles the fields of spec §6's get_usage upward-interface entry:
// { used, earliest_timestamp, earliest_hash }.
type Usage struct {
	Used             uint32
	EarliestTsHash   []byte // nil if absent or stale-pending-refresh
	NeedsRefresh     bool
}

// DBIndex is the durable message index storecache consults for SyncFromDB
// and for lazily recomputing an invalidated earliest_ts_hash. It is an
// external collaborator's contract (spec §1: "the individual per-store
// merge logic" owns message storage) — storecache only ever reads through
// it.
type DBIndex interface {
	// ScanEarliestTsHash returns the lexicographically smallest tsHash
	// currently stored for (account, store), or nil if the set is empty.
	ScanEarliestTsHash(account uint64, store eventlog.StoreKind) ([]byte, error)
	// ScanAllCounts returns the full set of live (account, store) ->
	// message-count pairs, for a cold-start rebuild.
	ScanAllCounts() (map[[2]uint64]uint32, error)
	// ScanAllStorageUnits returns every account's current on-chain storage
	// unit balance, for a cold-start rebuild.
	ScanAllStorageUnits() (map[uint64]uint32, error)
}

// Cache is the shared-read, single-writer usage cache of spec §4.3. Writes
// only ever come from the commit coordinator's post-commit hook (ProcessEvent),
// from a full SyncFromDB rebuild, or from GetUsage storing a floor it has just
// recomputed through a DBIndex; SyncFromDB must not overlap with commits
// (spec §5).
type Cache struct {
	mu            sync.RWMutex
	counts        map[key]uint32
	earliest      map[key]tsHashState
	storageUnits  map[uint64]uint32
	logger        *log.Logger
}

// New creates an empty cache. Call SyncFromDB before serving reads.
func New(logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.Default()
	}
	return &Cache{
		counts:       make(map[key]uint32),
		earliest:     make(map[key]tsHashState),
		storageUnits: make(map[uint64]uint32),
		logger:       logger,
	}
}

// GetMessageCount returns the live message count for (account, store). O(1).
func (c *Cache) GetMessageCount(account uint64, store eventlog.StoreKind) uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts[key{account, store}]
}

// GetEarliestTsHash returns the tsHash of the oldest live message in
// (account, store), or nil if the set is empty or the floor currently needs
// refresh from the durable index (callers that need a guaranteed-fresh
// value should go through GetUsage with a DBIndex).
func (c *Cache) GetEarliestTsHash(account uint64, store eventlog.StoreKind) []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := c.earliest[key{account, store}]
	if !st.present || st.needsRefresh {
		return nil
	}
	return st.bytes
}

// GetStorageUnits returns the account's current storage-unit balance. Zero
// is valid (an account that has never purchased storage) — it logs a line
// through the cache's logger but is not an error, per spec §4.3.
func (c *Cache) GetStorageUnits(account uint64) uint32 {
	c.mu.RLock()
	units := c.storageUnits[account]
	c.mu.RUnlock()
	if units == 0 {
		c.logger.Printf("storecache: account %d has zero storage units", account)
	}
	return units
}

// GetUsage bundles GetMessageCount/GetEarliestTsHash into the get_usage
// shape of spec §6. If the earliest marker needs refresh, idx is consulted
// to recompute it lazily (spec §9's "Cache repair": "compute lazily on next
// read" policy, applied consistently across every store kind).
func (c *Cache) GetUsage(account uint64, store eventlog.StoreKind, idx DBIndex) (Usage, error) {
	c.mu.RLock()
	k := key{account, store}
	count := c.counts[k]
	st := c.earliest[k]
	c.mu.RUnlock()

	if !st.needsRefresh {
		hash := st.bytes
		if !st.present {
			hash = nil
		}
		return Usage{Used: count, EarliestTsHash: hash}, nil
	}

	if idx == nil {
		return Usage{Used: count, NeedsRefresh: true}, nil
	}

	hash, err := idx.ScanEarliestTsHash(account, store)
	if err != nil {
		return Usage{}, err
	}

	c.mu.Lock()
	c.earliest[k] = tsHashState{present: hash != nil, bytes: hash}
	c.mu.Unlock()

	return Usage{Used: count, EarliestTsHash: hash}, nil
}

// SyncFromDB performs a full rebuild by scanning the durable message
// indices. Callable at startup; permitted to be slow (spec §4.3). Must not
// overlap with commits.
func (c *Cache) SyncFromDB(idx DBIndex) error {
	counts, err := idx.ScanAllCounts()
	if err != nil {
		return fmt.Errorf("storecache: sync counts: %w", err)
	}
	units, err := idx.ScanAllStorageUnits()
	if err != nil {
		return fmt.Errorf("storecache: sync storage units: %w", err)
	}

	newCounts := make(map[key]uint32, len(counts))
	newEarliest := make(map[key]tsHashState, len(counts))
	for pair, n := range counts {
		k := key{account: pair[0], store: eventlog.StoreKind(pair[1])}
		newCounts[k] = n
		hash, err := idx.ScanEarliestTsHash(k.account, k.store)
		if err != nil {
			return fmt.Errorf("storecache: sync earliest ts-hash for account %d store %s: %w", k.account, k.store, err)
		}
		newEarliest[k] = tsHashState{present: hash != nil, bytes: hash}
	}

	c.mu.Lock()
	c.counts = newCounts
	c.earliest = newEarliest
	c.storageUnits = units
	c.mu.Unlock()
	return nil
}
