// Package eventlog implements the durable, totally-ordered event log: key
// layout and codec (spec §4.2), range iteration and pagination (spec §4.4),
// and time-bounded pruning (spec §4.8).
package eventlog

import "github.com/timjrobinson/hub-monorepo/internal/hubevents/eventid"

// Kind identifies the five event kinds the hub emits, per spec §3.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindMergeMessage
	KindPruneMessage
	KindRevokeMessage
	KindMergeUsernameProof
	KindMergeOnChainEvent
)

// String renders a Kind for logging.
func (k Kind) String() string {
	switch k {
	case KindMergeMessage:
		return "MergeMessage"
	case KindPruneMessage:
		return "PruneMessage"
	case KindRevokeMessage:
		return "RevokeMessage"
	case KindMergeUsernameProof:
		return "MergeUsernameProof"
	case KindMergeOnChainEvent:
		return "MergeOnChainEvent"
	default:
		return "Unknown"
	}
}

// StoreKind enumerates the hub's logical message stores — the cache
// dimension of spec §3's Store Kinds.
type StoreKind uint8

const (
	StoreUnknown StoreKind = iota
	StoreCasts
	StoreLinks
	StoreReactions
	StoreUserData
	StoreVerifications
	StoreUsernameProofs
)

func (s StoreKind) String() string {
	switch s {
	case StoreCasts:
		return "Casts"
	case StoreLinks:
		return "Links"
	case StoreReactions:
		return "Reactions"
	case StoreUserData:
		return "UserData"
	case StoreVerifications:
		return "Verifications"
	case StoreUsernameProofs:
		return "UsernameProofs"
	default:
		return "Unknown"
	}
}

// Event is the tagged record of spec §3: {id, kind, payload}. Payload is
// opaque to the core — it is produced and consumed by external
// collaborators (the per-store merge logic owns its own schema).
type Event struct {
	ID      eventid.ID
	Kind    Kind
	Account uint64
	Store   StoreKind
	Payload []byte
}

// Args is what a caller hands to the commit coordinator: an Event with ID
// left zero (the coordinator stamps it in).
type Args struct {
	Kind    Kind
	Account uint64
	Store   StoreKind
	Payload []byte
}
