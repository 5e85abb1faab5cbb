package engine

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/barracuda156/mailindex/codec"
	"github.com/barracuda156/mailindex/persistence"
	"github.com/barracuda156/mailindex/postings"
)

var (
	snapshotMagic         = [4]byte{'M', 'I', 'S', '1'}
	snapshotDirMagic      = [4]byte{'M', 'I', 'D', '1'}
	snapshotFooterMagic   = [4]byte{'M', 'I', 'F', '1'}
	snapshotFormatVersion = uint16(1)
)

const (
	snapshotSectionMeta      = uint16(1)
	snapshotSectionDocuments = uint16(2)
	snapshotSectionPostings  = uint16(3)
)

// docRecord is one committed document. Records reachable from a published
// snapshot are immutable; replacement installs a fresh record.
type docRecord struct {
	DocID string `json:"doc_id"`

	// Length is the total term occurrence count, used for ranking.
	Length uint32 `json:"length"`

	// Terms is the document's forward index, needed to retract its
	// postings when the document is replaced or removed.
	Terms map[string]uint32 `json:"terms"`
}

// Snapshot is an immutable view of the committed index at one revision.
// All read operations run against a snapshot; a snapshot never changes
// after it is published, so no locking is needed to use one.
type Snapshot struct {
	revision   uint64
	nextLocal  uint32
	totalTerms uint64

	byExt    map[string]uint32
	docs     map[uint32]*docRecord
	postings map[string]*postings.List
}

// emptySnapshot is the state of a freshly created index.
func emptySnapshot() *Snapshot {
	return &Snapshot{
		byExt:    make(map[string]uint32),
		docs:     make(map[uint32]*docRecord),
		postings: make(map[string]*postings.List),
	}
}

// Revision returns the commit revision this snapshot was taken at.
func (s *Snapshot) Revision() uint64 { return s.revision }

// Len returns the number of documents in the snapshot.
func (s *Snapshot) Len() int { return len(s.docs) }

// Exists reports whether the document is present in the snapshot.
func (s *Snapshot) Exists(docID string) bool {
	_, ok := s.byExt[docID]
	return ok
}

// List returns all document ids in lexical order. The order is part of the
// contract: repeated calls against one snapshot always agree.
func (s *Snapshot) List() []string {
	ids := make([]string, 0, len(s.byExt))
	for id := range s.byExt {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// snapshotMeta is the codec-marshaled meta section.
type snapshotMeta struct {
	Revision   uint64 `json:"revision"`
	NextLocal  uint32 `json:"next_local"`
	TotalTerms uint64 `json:"total_terms"`
	DocCount   int    `json:"doc_count"`
}

// WriteTo writes the snapshot container to w.
//
// Format:
//  1. header (magic, version, compression, codec name)
//  2. meta section (codec marshaled)
//  3. documents section (codec marshaled forward index)
//  4. postings section (binary roaring posting lists)
//  5. directory (type/offset/length/checksum per section)
//  6. footer (directory offset/length)
//
// Section payloads are individually compressed and checksummed; checksums
// cover the stored bytes.
func (s *Snapshot) WriteTo(w io.Writer, c codec.Codec, comp persistence.Compression) error {
	if c == nil {
		c = codec.Default
	}

	codecName := c.Name()

	// Header (16 bytes + codec name)
	// [0:4]   magic
	// [4:6]   version
	// [6]     compression
	// [7]     reserved
	// [8:10]  codec name len
	// [10:12] section count
	// [12:16] reserved
	var hdr [16]byte
	copy(hdr[0:4], snapshotMagic[:])
	binary.LittleEndian.PutUint16(hdr[4:6], snapshotFormatVersion)
	hdr[6] = byte(comp)
	binary.LittleEndian.PutUint16(hdr[8:10], uint16(len(codecName)))
	binary.LittleEndian.PutUint16(hdr[10:12], 3)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, codecName); err != nil {
		return err
	}

	cw := &countingWriter{w: w, n: int64(len(hdr)) + int64(len(codecName))}

	writeSection := func(sectionType uint16, payload []byte) (snapshotSectionEntry, error) {
		stored, err := persistence.CompressBlock(payload, comp)
		if err != nil {
			return snapshotSectionEntry{}, err
		}
		entry := snapshotSectionEntry{
			Type:     sectionType,
			Offset:   uint64(cw.n),
			Len:      uint64(len(stored)),
			Checksum: persistence.Checksum(stored),
		}
		if _, err := cw.Write(stored); err != nil {
			return snapshotSectionEntry{}, err
		}
		return entry, nil
	}

	metaBytes, err := c.Marshal(snapshotMeta{
		Revision:   s.revision,
		NextLocal:  s.nextLocal,
		TotalTerms: s.totalTerms,
		DocCount:   len(s.docs),
	})
	if err != nil {
		return fmt.Errorf("encode meta section: %w", err)
	}
	metaEntry, err := writeSection(snapshotSectionMeta, metaBytes)
	if err != nil {
		return err
	}

	docBytes, err := c.Marshal(s.docs)
	if err != nil {
		return fmt.Errorf("encode documents section: %w", err)
	}
	docEntry, err := writeSection(snapshotSectionDocuments, docBytes)
	if err != nil {
		return err
	}

	postingBytes, err := marshalPostings(s.postings)
	if err != nil {
		return fmt.Errorf("encode postings section: %w", err)
	}
	postingEntry, err := writeSection(snapshotSectionPostings, postingBytes)
	if err != nil {
		return err
	}

	dirOff := uint64(cw.n)
	if err := writeSnapshotDirectory(cw, []snapshotSectionEntry{metaEntry, docEntry, postingEntry}); err != nil {
		return err
	}
	dirLen := uint64(cw.n) - dirOff

	return writeSnapshotFooter(cw, dirOff, dirLen)
}

// LoadSnapshot parses a snapshot container from data, verifying every
// section checksum. Failures wrap ErrCorrupt.
func LoadSnapshot(data []byte) (*Snapshot, error) {
	comp, c, sections, err := parseSnapshotContainer(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	section := func(sectionType uint16) ([]byte, error) {
		entry, ok := sections[sectionType]
		if !ok {
			return nil, fmt.Errorf("%w: missing section %d", ErrCorrupt, sectionType)
		}
		stored := data[entry.Offset : entry.Offset+entry.Len]
		if err := persistence.VerifyChecksum(stored, entry.Checksum); err != nil {
			return nil, fmt.Errorf("%w: section %d: %w", ErrCorrupt, sectionType, err)
		}
		payload, err := persistence.DecompressBlock(stored, comp)
		if err != nil {
			return nil, fmt.Errorf("%w: section %d: %w", ErrCorrupt, sectionType, err)
		}
		return payload, nil
	}

	metaBytes, err := section(snapshotSectionMeta)
	if err != nil {
		return nil, err
	}
	var meta snapshotMeta
	if err := c.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("%w: decode meta: %w", ErrCorrupt, err)
	}

	docBytes, err := section(snapshotSectionDocuments)
	if err != nil {
		return nil, err
	}
	docs := make(map[uint32]*docRecord)
	if err := c.Unmarshal(docBytes, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode documents: %w", ErrCorrupt, err)
	}
	if len(docs) != meta.DocCount {
		return nil, fmt.Errorf("%w: document count mismatch: meta says %d, section holds %d", ErrCorrupt, meta.DocCount, len(docs))
	}

	postingBytes, err := section(snapshotSectionPostings)
	if err != nil {
		return nil, err
	}
	lists, err := unmarshalPostings(postingBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: decode postings: %w", ErrCorrupt, err)
	}

	byExt := make(map[string]uint32, len(docs))
	for local, rec := range docs {
		if _, dup := byExt[rec.DocID]; dup {
			return nil, fmt.Errorf("%w: duplicate document id %q", ErrCorrupt, rec.DocID)
		}
		byExt[rec.DocID] = local
	}

	return &Snapshot{
		revision:   meta.Revision,
		nextLocal:  meta.NextLocal,
		totalTerms: meta.TotalTerms,
		byExt:      byExt,
		docs:       docs,
		postings:   lists,
	}, nil
}

// marshalPostings serializes the term dictionary with its posting lists.
// Layout: [termCount u32] { [termLen u16][term][posting list] }*, terms in
// lexical order.
func marshalPostings(lists map[string]*postings.List) ([]byte, error) {
	terms := make([]string, 0, len(lists))
	for term := range lists {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	var buf bytes.Buffer
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(terms)))
	buf.Write(n[:])

	for _, term := range terms {
		var tl [2]byte
		binary.LittleEndian.PutUint16(tl[:], uint16(len(term)))
		buf.Write(tl[:])
		buf.WriteString(term)
		if _, err := lists[term].WriteTo(&buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func unmarshalPostings(data []byte) (map[string]*postings.List, error) {
	r := bytes.NewReader(data)

	var n [4]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return nil, err
	}
	termCount := binary.LittleEndian.Uint32(n[:])

	lists := make(map[string]*postings.List, termCount)
	for i := uint32(0); i < termCount; i++ {
		var tl [2]byte
		if _, err := io.ReadFull(r, tl[:]); err != nil {
			return nil, err
		}
		termBytes := make([]byte, binary.LittleEndian.Uint16(tl[:]))
		if _, err := io.ReadFull(r, termBytes); err != nil {
			return nil, err
		}
		list, err := postings.ReadList(r)
		if err != nil {
			return nil, fmt.Errorf("term %q: %w", termBytes, err)
		}
		lists[string(termBytes)] = list
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("trailing bytes after postings")
	}
	return lists, nil
}

type snapshotSectionEntry struct {
	Type     uint16
	Offset   uint64
	Len      uint64
	Checksum uint32
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

func writeSnapshotDirectory(w io.Writer, entries []snapshotSectionEntry) error {
	// Directory header (12 bytes)
	// [0:4]  magic
	// [4:6]  version
	// [6:8]  reserved
	// [8:12] entry count
	var hdr [12]byte
	copy(hdr[0:4], snapshotDirMagic[:])
	binary.LittleEndian.PutUint16(hdr[4:6], snapshotFormatVersion)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(entries)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	// Each entry is 32 bytes:
	// [0:2]   type
	// [2:4]   reserved
	// [4:8]   checksum (CRC32)
	// [8:16]  offset
	// [16:24] length
	// [24:32] reserved
	for _, e := range entries {
		var b [32]byte
		binary.LittleEndian.PutUint16(b[0:2], e.Type)
		binary.LittleEndian.PutUint32(b[4:8], e.Checksum)
		binary.LittleEndian.PutUint64(b[8:16], e.Offset)
		binary.LittleEndian.PutUint64(b[16:24], e.Len)
		if _, err := w.Write(b[:]); err != nil {
			return err
		}
	}
	return nil
}

func writeSnapshotFooter(w io.Writer, dirOffset, dirLen uint64) error {
	// Footer (24 bytes)
	// [0:4]   magic
	// [4:6]   version
	// [6:8]   reserved
	// [8:16]  directory offset
	// [16:24] directory length
	var b [24]byte
	copy(b[0:4], snapshotFooterMagic[:])
	binary.LittleEndian.PutUint16(b[4:6], snapshotFormatVersion)
	binary.LittleEndian.PutUint64(b[8:16], dirOffset)
	binary.LittleEndian.PutUint64(b[16:24], dirLen)
	_, err := w.Write(b[:])
	return err
}

func parseSnapshotContainer(data []byte) (persistence.Compression, codec.Codec, map[uint16]snapshotSectionEntry, error) {
	if len(data) < 16+24 {
		return 0, nil, nil, fmt.Errorf("truncated snapshot: %d bytes", len(data))
	}

	if [4]byte(data[0:4]) != snapshotMagic {
		return 0, nil, nil, fmt.Errorf("bad snapshot magic")
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != snapshotFormatVersion {
		return 0, nil, nil, fmt.Errorf("unsupported snapshot version %d", v)
	}
	comp := persistence.Compression(data[6])
	nameLen := int(binary.LittleEndian.Uint16(data[8:10]))
	sectionCount := int(binary.LittleEndian.Uint16(data[10:12]))
	if sectionCount <= 0 {
		return 0, nil, nil, fmt.Errorf("invalid section count %d", sectionCount)
	}
	if 16+nameLen > len(data) {
		return 0, nil, nil, fmt.Errorf("truncated codec name")
	}

	c := codec.Default
	if nameLen > 0 {
		name := string(data[16 : 16+nameLen])
		cc, ok := codec.ByName(name)
		if !ok {
			return 0, nil, nil, fmt.Errorf("unsupported snapshot codec %q", name)
		}
		c = cc
	}

	// Footer
	foot := data[len(data)-24:]
	if [4]byte(foot[0:4]) != snapshotFooterMagic {
		return 0, nil, nil, fmt.Errorf("missing snapshot footer")
	}
	dirOff := binary.LittleEndian.Uint64(foot[8:16])
	dirLen := binary.LittleEndian.Uint64(foot[16:24])
	dataEnd := uint64(len(data) - 24)
	if dirLen < 12 || dirOff > dataEnd || dirLen > dataEnd-dirOff {
		return 0, nil, nil, fmt.Errorf("invalid directory range")
	}

	dir := data[dirOff : dirOff+dirLen]
	if [4]byte(dir[0:4]) != snapshotDirMagic {
		return 0, nil, nil, fmt.Errorf("bad directory magic")
	}
	entryCount := int(binary.LittleEndian.Uint32(dir[8:12]))
	if entryCount != sectionCount || uint64(12+entryCount*32) != dirLen {
		return 0, nil, nil, fmt.Errorf("directory entry count mismatch")
	}

	sections := make(map[uint16]snapshotSectionEntry, entryCount)
	for i := 0; i < entryCount; i++ {
		b := dir[12+i*32 : 12+(i+1)*32]
		entry := snapshotSectionEntry{
			Type:     binary.LittleEndian.Uint16(b[0:2]),
			Checksum: binary.LittleEndian.Uint32(b[4:8]),
			Offset:   binary.LittleEndian.Uint64(b[8:16]),
			Len:      binary.LittleEndian.Uint64(b[16:24]),
		}
		if entry.Offset > dataEnd || entry.Len > dataEnd-entry.Offset {
			return 0, nil, nil, fmt.Errorf("section %d out of range", entry.Type)
		}
		sections[entry.Type] = entry
	}

	return comp, c, sections, nil
}
