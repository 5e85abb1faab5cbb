// Package postings implements the inverted-index posting lists.
//
// A List holds the set of documents containing one term as a Roaring bitmap
// of internal doc ids, plus the per-document occurrence count used for
// ranking. Lists reachable from a published snapshot are treated as
// immutable; writers clone before modifying.
package postings

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring/v2"
)

// List is the posting list for a single term.
type List struct {
	docs   *roaring.Bitmap
	counts map[uint32]uint32
}

// NewList creates an empty posting list.
func NewList() *List {
	return &List{
		docs:   roaring.New(),
		counts: make(map[uint32]uint32),
	}
}

// Set records that doc id contains the term count times.
func (l *List) Set(id, count uint32) {
	if count == 0 {
		l.Remove(id)
		return
	}
	l.docs.Add(id)
	l.counts[id] = count
}

// Remove drops the document from the list.
func (l *List) Remove(id uint32) {
	l.docs.Remove(id)
	delete(l.counts, id)
}

// Contains reports whether the document carries the term.
func (l *List) Contains(id uint32) bool {
	return l.docs.Contains(id)
}

// Count returns the term's occurrence count in the document (0 if absent).
func (l *List) Count(id uint32) uint32 {
	return l.counts[id]
}

// Len returns the document frequency of the term.
func (l *List) Len() int {
	return int(l.docs.GetCardinality())
}

// IsEmpty reports whether no document carries the term.
func (l *List) IsEmpty() bool {
	return l.docs.IsEmpty()
}

// Clone returns a deep copy safe to mutate independently.
func (l *List) Clone() *List {
	counts := make(map[uint32]uint32, len(l.counts))
	for id, c := range l.counts {
		counts[id] = c
	}
	return &List{docs: l.docs.Clone(), counts: counts}
}

// OrInto unions the list's document set into dst.
func (l *List) OrInto(dst *roaring.Bitmap) {
	dst.Or(l.docs)
}

// Iterate yields (id, count) pairs in ascending id order.
func (l *List) Iterate(yield func(id, count uint32) bool) {
	it := l.docs.Iterator()
	for it.HasNext() {
		id := it.Next()
		if !yield(id, l.counts[id]) {
			return
		}
	}
}

// Serialized layout: [bitmapLen u32][roaring bytes][count u32 per id in
// ascending id order]. Ids are not duplicated; counts follow bitmap order.

// WriteTo serializes the list.
func (l *List) WriteTo(w io.Writer) (int64, error) {
	bmBytes, err := l.docs.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("postings: marshal bitmap: %w", err)
	}

	var n int64
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(bmBytes)))
	m, err := w.Write(hdr[:])
	n += int64(m)
	if err != nil {
		return n, err
	}
	m, err = w.Write(bmBytes)
	n += int64(m)
	if err != nil {
		return n, err
	}

	it := l.docs.Iterator()
	var cnt [4]byte
	for it.HasNext() {
		binary.LittleEndian.PutUint32(cnt[:], l.counts[it.Next()])
		m, err = w.Write(cnt[:])
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// ReadList deserializes a list written by WriteTo.
func ReadList(r io.Reader) (*List, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	bmLen := binary.LittleEndian.Uint32(hdr[:])

	bmBytes := make([]byte, bmLen)
	if _, err := io.ReadFull(r, bmBytes); err != nil {
		return nil, fmt.Errorf("postings: read bitmap: %w", err)
	}

	bm := roaring.New()
	if err := bm.UnmarshalBinary(bmBytes); err != nil {
		return nil, fmt.Errorf("postings: unmarshal bitmap: %w", err)
	}

	counts := make(map[uint32]uint32, bm.GetCardinality())
	it := bm.Iterator()
	var cnt [4]byte
	for it.HasNext() {
		id := it.Next()
		if _, err := io.ReadFull(r, cnt[:]); err != nil {
			return nil, fmt.Errorf("postings: read counts: %w", err)
		}
		c := binary.LittleEndian.Uint32(cnt[:])
		if c == 0 {
			return nil, errors.New("postings: zero count for present document")
		}
		counts[id] = c
	}

	return &List{docs: bm, counts: counts}, nil
}
