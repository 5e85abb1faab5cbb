package wal

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Record layout (little-endian):
//
//	[Type u8][SeqNum u64] then per type:
//	  OpPrepareReplace: [docIDLen u32][docID][termCount u32]
//	                    {[termLen u32][term][count u32]}*
//	  OpPrepareDelete:  [docIDLen u32][docID]
//	  OpCommit:         [revision u64]

const maxStringLen = 1 << 20 // sanity bound when decoding

func writeString(w io.Writer, s string) error {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
	if _, err := w.Write(n[:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n [4]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return "", err
	}
	l := binary.LittleEndian.Uint32(n[:])
	if l > maxStringLen {
		return "", fmt.Errorf("wal: string length %d exceeds bound", l)
	}
	buf := make([]byte, l)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func encodeEntry(w io.Writer, e *Entry) error {
	hdr := [9]byte{byte(e.Type)}
	binary.LittleEndian.PutUint64(hdr[1:], e.SeqNum)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	switch e.Type {
	case OpPrepareReplace:
		if err := writeString(w, e.DocID); err != nil {
			return err
		}
		var n [4]byte
		binary.LittleEndian.PutUint32(n[:], uint32(len(e.Terms)))
		if _, err := w.Write(n[:]); err != nil {
			return err
		}
		for _, tc := range e.Terms {
			if err := writeString(w, tc.Term); err != nil {
				return err
			}
			binary.LittleEndian.PutUint32(n[:], tc.Count)
			if _, err := w.Write(n[:]); err != nil {
				return err
			}
		}
	case OpPrepareDelete:
		if err := writeString(w, e.DocID); err != nil {
			return err
		}
	case OpCommit:
		// commit records carry a revision and go through encodeCommit
		return fmt.Errorf("wal: commit records must use encodeCommit")
	default:
		return fmt.Errorf("wal: unsupported record type %d", e.Type)
	}
	return nil
}

func encodeCommit(w io.Writer, seqNum, revision uint64) error {
	var buf [17]byte
	buf[0] = byte(OpCommit)
	binary.LittleEndian.PutUint64(buf[1:9], seqNum)
	binary.LittleEndian.PutUint64(buf[9:17], revision)
	_, err := w.Write(buf[:])
	return err
}

// decodeRecord reads one record. For OpCommit the revision is returned in
// the second value.
func decodeRecord(r io.Reader) (*Entry, uint64, error) {
	var hdr [9]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, 0, err
	}

	e := &Entry{
		Type:   OperationType(hdr[0]),
		SeqNum: binary.LittleEndian.Uint64(hdr[1:]),
	}

	switch e.Type {
	case OpPrepareReplace:
		docID, err := readString(r)
		if err != nil {
			return nil, 0, err
		}
		e.DocID = docID

		var n [4]byte
		if _, err := io.ReadFull(r, n[:]); err != nil {
			return nil, 0, err
		}
		termCount := binary.LittleEndian.Uint32(n[:])
		if termCount > maxStringLen {
			return nil, 0, fmt.Errorf("wal: term count %d exceeds bound", termCount)
		}
		e.Terms = make([]TermCount, 0, termCount)
		for i := uint32(0); i < termCount; i++ {
			term, err := readString(r)
			if err != nil {
				return nil, 0, err
			}
			if _, err := io.ReadFull(r, n[:]); err != nil {
				return nil, 0, err
			}
			e.Terms = append(e.Terms, TermCount{
				Term:  term,
				Count: binary.LittleEndian.Uint32(n[:]),
			})
		}
		return e, 0, nil

	case OpPrepareDelete:
		docID, err := readString(r)
		if err != nil {
			return nil, 0, err
		}
		e.DocID = docID
		return e, 0, nil

	case OpCommit:
		var rev [8]byte
		if _, err := io.ReadFull(r, rev[:]); err != nil {
			return nil, 0, err
		}
		return e, binary.LittleEndian.Uint64(rev[:]), nil

	default:
		return nil, 0, fmt.Errorf("wal: unknown record type %d", hdr[0])
	}
}
