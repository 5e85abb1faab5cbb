package wal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/barracuda156/mailindex/persistence"
)

// ReplayCommitted invokes fn once per sealed batch, in commit order, with the
// revision the batch was committed at. An incomplete frame at the tail of the
// file (a torn write from a crash) is truncated away; a checksum or decode
// failure on a complete frame is reported as corruption.
//
// Replay must run before the first Commit: it restores the sequence number
// and the durable tail offset.
func (w *WAL) ReplayCommitted(fn func(revision uint64, entries []Entry) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("wal: closed")
	}

	offset := int64(walHeaderLen)
	goodOffset := offset

	var frameHdr [frameHeaderLen]byte

	for {
		n, err := w.file.ReadAt(frameHdr[:], offset)
		if err == io.EOF && n == 0 {
			break
		}
		if err != nil {
			// Torn frame header.
			break
		}

		payloadLen := binary.LittleEndian.Uint32(frameHdr[0:4])
		wantCRC := binary.LittleEndian.Uint32(frameHdr[4:8])
		if payloadLen == 0 || payloadLen > maxBatchBytes {
			return fmt.Errorf("wal: corrupt batch frame at offset %d: payload length %d", offset, payloadLen)
		}

		payload := make([]byte, payloadLen)
		if _, err := w.file.ReadAt(payload, offset+frameHeaderLen); err != nil {
			// Torn payload.
			break
		}

		if got := persistence.Checksum(payload); got != wantCRC {
			return fmt.Errorf("wal: corrupt batch at offset %d: %w", offset, &persistence.ChecksumMismatchError{
				Expected: wantCRC,
				Actual:   got,
			})
		}

		if w.decoder != nil {
			payload, err = w.decoder.DecodeAll(payload, nil)
			if err != nil {
				return fmt.Errorf("wal: decompress batch at offset %d: %w", offset, err)
			}
		}

		revision, commitSeq, entries, err := decodeBatch(payload)
		if err != nil {
			return fmt.Errorf("wal: decode batch at offset %d: %w", offset, err)
		}

		if err := fn(revision, entries); err != nil {
			return err
		}
		w.seqNum = commitSeq

		offset += frameHeaderLen + int64(payloadLen)
		goodOffset = offset
	}

	// Drop any torn tail so the next commit appends onto a clean boundary.
	if info, err := w.file.Stat(); err == nil && info.Size() > goodOffset {
		if err := w.file.Truncate(goodOffset); err != nil {
			return fmt.Errorf("wal: truncate torn tail: %w", err)
		}
	}
	w.goodOffset = goodOffset

	return nil
}

// decodeBatch decodes one sealed batch: zero or more prepare records followed
// by exactly one commit record.
func decodeBatch(payload []byte) (uint64, uint64, []Entry, error) {
	r := bytes.NewReader(payload)

	var entries []Entry
	for {
		e, revision, err := decodeRecord(r)
		if err != nil {
			if err == io.EOF {
				return 0, 0, nil, fmt.Errorf("batch missing commit record")
			}
			return 0, 0, nil, err
		}

		if e.Type == OpCommit {
			if r.Len() != 0 {
				return 0, 0, nil, fmt.Errorf("trailing bytes after commit record")
			}
			return revision, e.SeqNum, entries, nil
		}
		entries = append(entries, *e)
	}
}
