// Package wal implements a write-ahead log for document index mutations.
//
// Mutations are buffered by the caller and appended as a single framed batch
// at commit time: a run of prepare records followed by one commit record
// carrying the new index revision. Replay applies only batches whose commit
// record made it to disk, so a torn tail from a crash never surfaces
// half-applied state.
package wal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/barracuda156/mailindex/internal/fs"
	"github.com/barracuda156/mailindex/persistence"
)

const (
	walFileName = "index.wal"

	// Each batch is framed as [payloadLen u32][crc32 u32][payload]. The
	// checksum covers the (possibly compressed) payload.
	frameHeaderLen = 8

	maxBatchBytes = 1 << 30
)

// WAL is a write-ahead log backed by a single append-only file.
// It is safe for use by a single writer; replay happens before writes start.
type WAL struct {
	mu sync.Mutex

	opts Options
	fsys fs.FileSystem
	file fs.File
	path string

	// goodOffset is the file size after the last durable commit. A failed
	// append rolls the file back to this offset so a retry starts clean.
	goodOffset int64

	seqNum  uint64
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	closed  bool
}

// New opens (or creates) the write-ahead log in the configured directory.
func New(optFns ...func(o *Options)) (*WAL, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.FS == nil {
		opts.FS = fs.Default
	}

	w := &WAL{
		opts: opts,
		fsys: opts.FS,
		path: filepath.Join(opts.Path, walFileName),
	}

	if opts.Compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.CompressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			enc.Close()
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		w.encoder = enc
		w.decoder = dec
	}

	if err := w.open(); err != nil {
		return nil, err
	}

	return w, nil
}

func (w *WAL) open() error {
	info, err := w.fsys.Stat(w.path)
	exists := err == nil && info.Size() >= walHeaderLen

	file, err := w.fsys.OpenFile(w.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open wal file: %w", err)
	}
	w.file = file

	if !exists {
		if err := writeHeader(file, headerInfo{
			Compressed:       w.opts.Compress,
			CompressionLevel: w.opts.CompressionLevel,
		}); err != nil {
			file.Close()
			return fmt.Errorf("write wal header: %w", err)
		}
		if err := file.Sync(); err != nil {
			file.Close()
			return fmt.Errorf("sync wal header: %w", err)
		}
		w.goodOffset = walHeaderLen
		return nil
	}

	hdr, err := readHeader(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("read wal header: %w", err)
	}
	if hdr.Compressed != w.opts.Compress {
		file.Close()
		return fmt.Errorf("wal compression mode mismatch: file compressed=%v, configured=%v", hdr.Compressed, w.opts.Compress)
	}

	// goodOffset and seqNum are fixed up by Replay before the first commit.
	w.goodOffset = info.Size()
	return nil
}

// Commit appends the batch followed by a commit record carrying revision,
// then makes it durable per the configured durability mode. On error the log
// is rolled back to its pre-commit size and the caller may retry with the
// same batch.
func (w *WAL) Commit(revision uint64, entries []Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("wal: closed")
	}

	startSeq := w.seqNum

	var batch bytes.Buffer
	for i := range entries {
		w.seqNum++
		entries[i].SeqNum = w.seqNum
		if err := encodeEntry(&batch, &entries[i]); err != nil {
			w.seqNum = startSeq
			return fmt.Errorf("encode wal entry: %w", err)
		}
	}
	w.seqNum++
	if err := encodeCommit(&batch, w.seqNum, revision); err != nil {
		w.seqNum = startSeq
		return fmt.Errorf("encode commit record: %w", err)
	}

	payload := batch.Bytes()
	if w.encoder != nil {
		payload = w.encoder.EncodeAll(payload, nil)
	}

	frame := make([]byte, frameHeaderLen+len(payload))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(frame[4:8], persistence.Checksum(payload))
	copy(frame[frameHeaderLen:], payload)

	if err := w.append(frame); err != nil {
		w.rollback()
		w.seqNum = startSeq
		return err
	}

	if w.opts.DurabilityMode == DurabilitySync {
		if err := w.file.Sync(); err != nil {
			w.rollback()
			w.seqNum = startSeq
			return fmt.Errorf("sync wal: %w", err)
		}
	}

	w.goodOffset += int64(len(frame))
	return nil
}

func (w *WAL) append(frame []byte) error {
	if _, err := w.file.Seek(w.goodOffset, io.SeekStart); err != nil {
		return fmt.Errorf("seek wal tail: %w", err)
	}
	if _, err := w.file.Write(frame); err != nil {
		return fmt.Errorf("append wal batch: %w", err)
	}
	return nil
}

// rollback truncates the file back to the last durable commit boundary.
// Truncate failures are ignored; replay discards the torn tail anyway.
func (w *WAL) rollback() {
	_ = w.file.Truncate(w.goodOffset)
}

// Truncate discards all logged batches after their effects have been
// checkpointed, leaving a fresh header.
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("wal: closed")
	}

	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate wal: %w", err)
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek wal: %w", err)
	}
	if err := writeHeader(w.file, headerInfo{
		Compressed:       w.opts.Compress,
		CompressionLevel: w.opts.CompressionLevel,
	}); err != nil {
		return fmt.Errorf("rewrite wal header: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync wal: %w", err)
	}

	w.goodOffset = walHeaderLen
	return nil
}

// Size returns the current size of the log file in bytes.
func (w *WAL) Size() (int64, error) {
	info, err := w.fsys.Stat(w.path)
	if err != nil {
		return 0, fmt.Errorf("stat wal: %w", err)
	}
	return info.Size(), nil
}

// ShouldCheckpoint reports whether the log has grown past the configured
// operation count or size thresholds since the last checkpoint.
func (w *WAL) ShouldCheckpoint(opsSinceCheckpoint int) bool {
	if w.opts.CheckpointOps > 0 && opsSinceCheckpoint >= w.opts.CheckpointOps {
		return true
	}
	if w.opts.CheckpointMB > 0 {
		if size, err := w.Size(); err == nil && size >= int64(w.opts.CheckpointMB)*1024*1024 {
			return true
		}
	}
	return false
}

// Close flushes and closes the underlying file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.encoder != nil {
		w.encoder.Close()
	}
	if w.decoder != nil {
		w.decoder.Close()
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return fmt.Errorf("sync wal on close: %w", err)
	}
	return w.file.Close()
}
