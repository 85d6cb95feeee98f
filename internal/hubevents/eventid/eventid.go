// Package eventid implements the hub's monotonic 53-bit event-ID generator.
//
// Layout: [timestamp:41 | sequence:12]. timestamp is milliseconds since the
// project epoch; sequence is an intra-millisecond counter. IDs issued by one
// Generator are strictly increasing, per spec §4.1.
package eventid

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/timjrobinson/hub-monorepo/internal/hubevents/errs"
)

const (
	// TimestampBits is the width of the timestamp field.
	TimestampBits = 41
	// SequenceBits is the width of the sequence field.
	SequenceBits = 12

	// MaxTimestamp is one past the largest timestamp representable in
	// TimestampBits (an exclusive bound).
	MaxTimestamp = uint64(1) << TimestampBits
	// MaxSequence is one past the largest sequence representable in
	// SequenceBits (an exclusive bound).
	MaxSequence = uint64(1) << SequenceBits
)

// ID is a 53-bit event identifier: [timestamp:41 | sequence:12].
type ID uint64

// Split decomposes an ID back into its timestamp and sequence parts.
func Split(id ID) (timestamp uint64, sequence uint64) {
	v := uint64(id)
	return v >> SequenceBits, v & (MaxSequence - 1)
}

// Make packs a (timestamp, sequence) pair into an ID without validating
// bounds — callers that need validation should go through Generator.Next.
func Make(timestamp, sequence uint64) ID {
	return ID((timestamp << SequenceBits) | sequence)
}

var (
	meter             = otel.Meter("github.com/timjrobinson/hub-monorepo/eventid")
	clockRegressions  metric.Int64Counter
	overflowsRejected metric.Int64Counter
)

func init() {
	clockRegressions, _ = meter.Int64Counter("bd.events.clock_regressions_total",
		metric.WithDescription("Times the generator observed now_ms regress behind its last timestamp"),
		metric.WithUnit("{regression}"),
	)
	overflowsRejected, _ = meter.Int64Counter("bd.events.id_overflow_total",
		metric.WithDescription("generate() calls rejected due to timestamp or sequence overflow"),
		metric.WithUnit("{overflow}"),
	)
}

// Generator produces strictly-increasing event IDs. It is safe for
// concurrent use, though spec §4.5 routes all calls through the single
// commit-slot holder so contention is not expected in practice.
type Generator struct {
	mu            sync.Mutex
	epochMS       int64
	lastTimestamp uint64
	lastSeq       uint64
	hasState      bool
}

// New creates a Generator pinned to epochMS (milliseconds, e.g. the
// Farcaster epoch), with no prior state — the first call to Next seeds
// lastTimestamp from its now_ms argument.
func New(epochMS int64) *Generator {
	return &Generator{epochMS: epochMS}
}

// Recover seeds (lastTimestamp, lastSeq) from the highest extant log key, as
// split by the caller (typically eventlog.SplitEventKey). Called once at
// startup before serving; spec §4.1 Recovery.
func (g *Generator) Recover(lastTimestamp, lastSeq uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastTimestamp = lastTimestamp
	g.lastSeq = lastSeq
	g.hasState = true
}

// Next generates the next event ID for the given wall-clock time in
// milliseconds. A now_ms that appears to move backwards relative to the
// last issued timestamp does not regress the generator's output (the
// timestamp part is pinned to max(lastTimestamp, t)) — spec §9's resolution
// of the "clock moves backwards" open question. Regressions are counted,
// not failed.
func (g *Generator) Next(nowMS int64) (ID, error) {
	t := nowMS - g.epochMS
	if t < 0 {
		t = 0
	}
	tu := uint64(t)

	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case !g.hasState:
		g.lastTimestamp = tu
		g.lastSeq = 0
		g.hasState = true
	case tu == g.lastTimestamp:
		g.lastSeq++
	case tu < g.lastTimestamp:
		// Pinned-max monotonicity (spec §9): the observable timestamp never
		// regresses, so a clock that moves backwards is treated exactly like
		// "still within the pinned millisecond" — the sequence counter keeps
		// advancing rather than resetting, which would otherwise re-emit an
		// ID already handed out at (lastTimestamp, 0).
		clockRegressions.Add(context.Background(), 1)
		g.lastSeq++
	default:
		g.lastTimestamp = tu
		g.lastSeq = 0
	}

	if g.lastTimestamp >= MaxTimestamp {
		overflowsRejected.Add(context.Background(), 1)
		return 0, errs.Wrap(errs.ErrInvalidParam, "eventid: timestamp %d exceeds %d-bit range", g.lastTimestamp, TimestampBits)
	}
	if g.lastSeq >= MaxSequence {
		overflowsRejected.Add(context.Background(), 1)
		return 0, errs.Wrap(errs.ErrInvalidParam, "eventid: sequence %d exceeds %d-bit range in timestamp %d", g.lastSeq, SequenceBits, g.lastTimestamp)
	}

	return Make(g.lastTimestamp, g.lastSeq), nil
}

// String renders an ID as "timestamp.sequence" for logging.
func (id ID) String() string {
	ts, seq := Split(id)
	return fmt.Sprintf("%d.%d", ts, seq)
}
