package engine

import (
	"bytes"
	"errors"
	"testing"

	"github.com/barracuda156/mailindex/persistence"
	"github.com/barracuda156/mailindex/wal"
)

func buildSnapshot(t *testing.T) *Snapshot {
	t.Helper()

	entries := []wal.Entry{
		{Type: wal.OpPrepareReplace, DocID: "m1", Terms: []wal.TermCount{
			{Term: "hello", Count: 2}, {Term: "world", Count: 1},
		}},
		{Type: wal.OpPrepareReplace, DocID: "m2", Terms: []wal.TermCount{
			{Term: "hello", Count: 1}, {Term: "there", Count: 3},
		}},
	}
	return applyBatch(emptySnapshot(), 1, entries)
}

func TestSnapshotContainerRoundTrip(t *testing.T) {
	for _, comp := range []persistence.Compression{
		persistence.CompressionNone,
		persistence.CompressionLZ4,
		persistence.CompressionZSTD,
	} {
		snap := buildSnapshot(t)

		var buf bytes.Buffer
		if err := snap.WriteTo(&buf, nil, comp); err != nil {
			t.Fatalf("comp %d: write: %v", comp, err)
		}

		got, err := LoadSnapshot(buf.Bytes())
		if err != nil {
			t.Fatalf("comp %d: load: %v", comp, err)
		}

		if got.Revision() != snap.Revision() || got.Len() != snap.Len() {
			t.Fatalf("comp %d: revision/len mismatch: %d/%d vs %d/%d",
				comp, got.Revision(), got.Len(), snap.Revision(), snap.Len())
		}
		if got.totalTerms != snap.totalTerms || got.nextLocal != snap.nextLocal {
			t.Fatalf("comp %d: counters drifted", comp)
		}
		for _, id := range []string{"m1", "m2"} {
			if !got.Exists(id) {
				t.Fatalf("comp %d: lost doc %s", comp, id)
			}
		}

		// Ranked retrieval must agree before and after the round trip.
		want, _ := snap.Search("hello there", 0, 10)
		have, _ := got.Search("hello there", 0, 10)
		if len(want.IDs) != len(have.IDs) {
			t.Fatalf("comp %d: search disagreement: %v vs %v", comp, want.IDs, have.IDs)
		}
		for i := range want.IDs {
			if want.IDs[i] != have.IDs[i] {
				t.Fatalf("comp %d: ranking changed: %v vs %v", comp, want.IDs, have.IDs)
			}
		}
	}
}

func TestLoadSnapshotRejectsGarbage(t *testing.T) {
	snap := buildSnapshot(t)
	var buf bytes.Buffer
	if err := snap.WriteTo(&buf, nil, persistence.CompressionNone); err != nil {
		t.Fatalf("write: %v", err)
	}
	valid := buf.Bytes()

	badMagic := bytes.Clone(valid)
	badMagic[0] = 'X'
	noFooter := bytes.Clone(valid)
	noFooter[len(noFooter)-24] = 'X'

	cases := map[string][]byte{
		"empty":     {},
		"short":     []byte("MIS1"),
		"bad magic": badMagic,
		"no footer": noFooter,
	}

	for name, data := range cases {
		if _, err := LoadSnapshot(data); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("%s: expected ErrCorrupt, got %v", name, err)
		}
	}
}

func TestLoadSnapshotDetectsSectionCorruption(t *testing.T) {
	snap := buildSnapshot(t)

	var buf bytes.Buffer
	if err := snap.WriteTo(&buf, nil, persistence.CompressionNone); err != nil {
		t.Fatalf("write: %v", err)
	}

	data := buf.Bytes()
	// Flip a byte in the middle of the payload area.
	data[len(data)/2] ^= 0xff

	_, err := LoadSnapshot(data)
	if err == nil {
		t.Fatal("expected corruption to be detected")
	}
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}
