package eventlog

import (
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/errs"
	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventid"
	"github.com/timjrobinson/hub-monorepo/internal/hubkv"
)

// Log provides read access to the durable event log: point lookup, full
// scan, and paginated scan (spec §4.4). Log itself never writes: appends
// happen through the commit coordinator's Batch-based append, and deletes
// through PruneEvents.
type Log struct {
	kv *hubkv.Store
}

// NewLog wraps kv as an event log reader.
func NewLog(kv *hubkv.Store) *Log {
	return &Log{kv: kv}
}

// GetEvent performs a point lookup by ID. Returns errs.ErrNotFound if id
// isn't present, or the decode error (wrapped errs.ErrStorageFailure) if the
// stored bytes are corrupt.
func (l *Log) GetEvent(id eventid.ID) (Event, error) {
	raw, err := l.kv.Get(MakeEventKey(id))
	if err != nil {
		return Event{}, err
	}
	return Decode(id, raw)
}

// GetEvents performs a full scan from fromID (0 = start of log) to the end
// of the log. Used by subscribers bootstrapping from an ID (spec §4.4).
func (l *Log) GetEvents(fromID eventid.ID) ([]Event, error) {
	lower, upper, err := Bounds(fromID, 0)
	if err != nil {
		return nil, err
	}
	return l.scan(lower, upper, 0)
}

// Page is the result of a bounded scan: the events found and the cursor to
// resume from.
type Page struct {
	Events        []Event
	NextPageEvent eventid.ID
}

// GetEventsPage scans up to pageSize entries >= fromID. NextPageEvent is
// (last yielded ID + 1), or fromID unchanged if no entries were found —
// spec §4.4 / Testable Property 7. The caller paginates by passing
// NextPageEvent back as the next call's fromID.
func (l *Log) GetEventsPage(fromID eventid.ID, pageSize int) (Page, error) {
	if pageSize <= 0 {
		return Page{}, errs.Wrap(errs.ErrInvalidParam, "eventlog: page size must be positive, got %d", pageSize)
	}

	lower, upper, err := Bounds(fromID, 0)
	if err != nil {
		return Page{}, err
	}

	events, err := l.scan(lower, upper, pageSize)
	if err != nil {
		return Page{}, err
	}

	next := fromID
	if len(events) > 0 {
		next = events[len(events)-1].ID + 1
	}
	return Page{Events: events, NextPageEvent: next}, nil
}

// scan iterates [lower, upper), decoding up to limit entries (0 = no
// limit). Any decode failure is fatal for the iteration (spec §4.2/§7).
func (l *Log) scan(lower, upper []byte, limit int) ([]Event, error) {
	it, err := l.kv.NewIterator(lower, upper)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []Event
	for ok := it.SeekGE(lower); ok; ok = it.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}
		key := append([]byte(nil), it.Key()...)
		value := append([]byte(nil), it.Value()...)

		id, err := SplitEventKey(key)
		if err != nil {
			return nil, err
		}
		event, err := Decode(id, value)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, nil
}
