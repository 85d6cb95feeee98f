package eventlog

import (
	"context"
	"time"

	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventid"
	"github.com/timjrobinson/hub-monorepo/internal/hubkv"
)

// DefaultPruneTimeLimit is spec §6's prune_time_limit_default.
const DefaultPruneTimeLimit = 3 * 24 * time.Hour

// pruneBudget bounds a single PruneEvents call's wall-clock time, per
// spec §4.8. Exceeding it is not an error — the deleted range is always a
// contiguous prefix of the log, so a partial prune simply leaves a later
// prefix for the next invocation to pick up.
const pruneBudget = 10 * time.Minute

// pruneBatchSize caps how many deletes accumulate in one KV batch before
// committing, so a very large prune doesn't hold one unbounded batch in
// memory.
const pruneBatchSize = 1000

// PruneEvents deletes all log entries with id < makeEventId(now - epoch -
// timeLimit, 0), per spec §4.8. epochMS and nowMS are both caller-supplied
// so the operation is deterministic in tests.
func PruneEvents(ctx context.Context, kv *hubkv.Store, epochMS, nowMS int64, timeLimit time.Duration) (deleted int, err error) {
	cutoffMS := nowMS - epochMS - timeLimit.Milliseconds()
	if cutoffMS <= 0 {
		// No ID lies below Make(0, 0); a zero toID would mean "end of log"
		// to Bounds, so return before building the range.
		return 0, nil
	}
	cutoffID := eventid.Make(uint64(cutoffMS), 0)

	lower, upper, err := Bounds(0, cutoffID)
	if err != nil {
		return 0, err
	}

	deadline := time.Now().Add(pruneBudget)

	for {
		select {
		case <-ctx.Done():
			return deleted, nil
		default:
		}
		if time.Now().After(deadline) {
			return deleted, nil
		}

		n, more, err := pruneBatch(kv, lower, upper)
		deleted += n
		if err != nil {
			return deleted, err
		}
		if !more {
			return deleted, nil
		}
	}
}

// pruneBatch deletes up to pruneBatchSize keys from [lower, upper),
// returning the count removed and whether more keys remain in the range.
func pruneBatch(kv *hubkv.Store, lower, upper []byte) (count int, more bool, err error) {
	it, err := kv.NewIterator(lower, upper)
	if err != nil {
		return 0, false, err
	}
	defer it.Close()

	batch := kv.NewBatch()
	defer batch.Close()

	ok := it.SeekGE(lower)
	for ; ok && count < pruneBatchSize; ok = it.Next() {
		key := append([]byte(nil), it.Key()...)
		if err := batch.Delete(key); err != nil {
			return count, false, err
		}
		count++
	}

	if count > 0 {
		if err := batch.Commit(); err != nil {
			return 0, false, err
		}
	}

	return count, ok, nil
}
