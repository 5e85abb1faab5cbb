package postings

import (
	"bytes"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
)

func TestSetRemoveCount(t *testing.T) {
	l := NewList()
	l.Set(1, 2)
	l.Set(7, 1)
	l.Set(3, 5)

	if l.Len() != 3 {
		t.Fatalf("Len = %d, want 3", l.Len())
	}
	if !l.Contains(7) || l.Count(3) != 5 {
		t.Fatal("unexpected contents")
	}

	l.Remove(7)
	if l.Contains(7) || l.Count(7) != 0 || l.Len() != 2 {
		t.Fatal("remove did not take effect")
	}

	// Setting a zero count behaves like a removal.
	l.Set(1, 0)
	if l.Contains(1) {
		t.Fatal("zero-count set should remove the document")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	l := NewList()
	l.Set(10, 1)

	c := l.Clone()
	c.Set(10, 9)
	c.Set(20, 2)

	if l.Count(10) != 1 || l.Contains(20) {
		t.Fatal("mutating a clone leaked into the original")
	}
}

func TestIterateAscending(t *testing.T) {
	l := NewList()
	l.Set(30, 3)
	l.Set(10, 1)
	l.Set(20, 2)

	var ids, counts []uint32
	l.Iterate(func(id, count uint32) bool {
		ids = append(ids, id)
		counts = append(counts, count)
		return true
	})

	wantIDs := []uint32{10, 20, 30}
	for i, id := range wantIDs {
		if ids[i] != id || counts[i] != uint32(i+1) {
			t.Fatalf("iterate order: ids=%v counts=%v", ids, counts)
		}
	}
}

func TestOrInto(t *testing.T) {
	a := NewList()
	a.Set(1, 1)
	a.Set(2, 1)
	b := NewList()
	b.Set(2, 1)
	b.Set(3, 1)

	union := roaring.New()
	a.OrInto(union)
	b.OrInto(union)

	if union.GetCardinality() != 3 {
		t.Fatalf("union cardinality = %d, want 3", union.GetCardinality())
	}
}

func TestSerializationRoundTrip(t *testing.T) {
	l := NewList()
	for i := uint32(0); i < 100; i += 7 {
		l.Set(i, i%5+1)
	}

	var buf bytes.Buffer
	if _, err := l.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}

	got, err := ReadList(&buf)
	if err != nil {
		t.Fatalf("ReadList failed: %v", err)
	}
	if got.Len() != l.Len() {
		t.Fatalf("Len = %d, want %d", got.Len(), l.Len())
	}
	l.Iterate(func(id, count uint32) bool {
		if got.Count(id) != count {
			t.Errorf("count mismatch for id %d: %d != %d", id, got.Count(id), count)
		}
		return true
	})
}

func TestReadListTruncated(t *testing.T) {
	l := NewList()
	l.Set(1, 1)
	l.Set(2, 2)

	var buf bytes.Buffer
	if _, err := l.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	truncated := buf.Bytes()[:buf.Len()-2]
	if _, err := ReadList(bytes.NewReader(truncated)); err == nil {
		t.Fatal("expected error on truncated input")
	}
}
