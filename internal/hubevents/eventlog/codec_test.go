package eventlog

import (
	"bytes"
	"testing"

	"github.com/timjrobinson/hub-monorepo/internal/hubevents/eventid"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	id := eventid.Make(42, 3)
	e := Event{
		ID:      id,
		Kind:    KindMergeMessage,
		Account: 7,
		Store:   StoreCasts,
		Payload: []byte("hello"),
	}
	raw, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(id, raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.ID != e.ID || got.Kind != e.Kind || got.Account != e.Account || got.Store != e.Store || !bytes.Equal(got.Payload, e.Payload) {
		t.Fatalf("Decode(Encode(e)) = %+v, want %+v", got, e)
	}
}

func TestEncodeDecodeEmptyPayload(t *testing.T) {
	e := Event{ID: 1, Kind: KindMergeOnChainEvent, Account: 1, Store: StoreUnknown}
	raw, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(1, raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Payload) != 0 {
		t.Fatalf("Payload = %x, want empty", got.Payload)
	}
}

func TestDecodeRejectsTruncatedEnvelope(t *testing.T) {
	if _, err := Decode(1, nil); err == nil {
		t.Fatal("expected an error decoding an empty envelope")
	}
	if _, err := Decode(1, []byte{wireVersion, byte(KindMergeMessage)}); err == nil {
		t.Fatal("expected an error decoding a truncated account varint")
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	if _, err := Decode(1, []byte{99}); err == nil {
		t.Fatal("expected an error for an unrecognized wire version")
	}
}

func TestMakeTsHashOrdering(t *testing.T) {
	a := MakeTsHash(10, []byte("a"))
	b := MakeTsHash(10, []byte("b"))
	c := MakeTsHash(11, []byte("a"))
	if CompareTsHash(a, b) >= 0 {
		t.Fatal("same timestamp, 'a' hash should sort before 'b' hash")
	}
	if CompareTsHash(b, c) >= 0 {
		t.Fatal("timestamp 10 should sort before timestamp 11 regardless of hash")
	}
}
