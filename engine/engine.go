// Package engine implements the durable document index: a write-ahead
// logged mutation path, immutable copy-on-write snapshots for reads, and
// checkpointing of the committed state into a verified container file.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/barracuda156/mailindex/internal/fs"
	"github.com/barracuda156/mailindex/manifest"
	"github.com/barracuda156/mailindex/postings"
	"github.com/barracuda156/mailindex/resource"
	"github.com/barracuda156/mailindex/wal"
)

// Engine owns the single mutation path of the index and publishes immutable
// snapshots for readers. Stage and Commit calls are serialized by an
// internal mutex; snapshot acquisition never blocks on the writer.
type Engine struct {
	opts    Options
	fsys    fs.FileSystem
	log     *slog.Logger
	metrics Metrics
	rc      *resource.Controller

	wal      *wal.WAL
	manifest *manifest.Store

	// mu serializes the writer path: staging, commit, checkpoint.
	mu           sync.Mutex
	pending      []wal.Entry
	pendingBytes int64
	manifestID   uint64
	opsSinceCP   int
	closed       bool

	// snapMu guards the published snapshot pointer only; the snapshot
	// itself is immutable.
	snapMu  sync.RWMutex
	current *Snapshot

	unlock func() error
}

// StageReplace buffers "replace all terms of docID" until the next Commit.
// The terms map gives each term's occurrence count.
func (e *Engine) StageReplace(docID string, terms map[string]uint32) error {
	entry := wal.Entry{
		Type:  wal.OpPrepareReplace,
		DocID: docID,
		Terms: sortedTermCounts(terms),
	}
	return e.stage(entry)
}

// StageDelete buffers "delete docID" until the next Commit. Deleting an
// unknown document commits as a no-op.
func (e *Engine) StageDelete(docID string) error {
	return e.stage(wal.Entry{
		Type:  wal.OpPrepareDelete,
		DocID: docID,
	})
}

func (e *Engine) stage(entry wal.Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	cost := stagedCost(entry)
	if !e.rc.TryAcquireBuffer(cost) {
		return fmt.Errorf("stage %q: %w", entry.DocID, ErrBufferFull)
	}

	e.pending = append(e.pending, entry)
	e.pendingBytes += cost
	return nil
}

// PendingOps returns the number of staged, uncommitted operations.
func (e *Engine) PendingOps() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Commit durably applies all staged operations as one atomic batch and
// publishes the resulting snapshot at the next revision. On failure the
// staged operations are kept and the published snapshot is unchanged; the
// caller may retry.
func (e *Engine) Commit() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.commitLocked()
}

func (e *Engine) commitLocked() error {
	if e.closed {
		return ErrClosed
	}
	if len(e.pending) == 0 {
		return nil
	}

	start := time.Now()
	base := e.Snapshot()
	revision := base.revision + 1

	if err := e.wal.Commit(revision, e.pending); err != nil {
		e.metrics.CommitFailed()
		e.log.Error("commit failed, staged operations retained",
			slog.Uint64("revision", revision),
			slog.Int("ops", len(e.pending)),
			slog.Any("error", err))
		return fmt.Errorf("commit revision %d: %w", revision, err)
	}

	next := applyBatch(base, revision, e.pending)
	e.publish(next)

	ops := len(e.pending)
	e.opsSinceCP += ops
	e.pending = nil
	e.rc.ReleaseBuffer(e.pendingBytes)
	e.pendingBytes = 0

	e.metrics.CommitApplied(ops, revision, time.Since(start))
	e.log.Debug("commit applied",
		slog.Uint64("revision", revision),
		slog.Int("ops", ops),
		slog.Int("docs", next.Len()))

	if e.opts.AutoCheckpoint && e.wal.ShouldCheckpoint(e.opsSinceCP) {
		// Commit durability is already guaranteed by the WAL; a failed
		// checkpoint only delays log truncation.
		if err := e.checkpointLocked(context.Background()); err != nil {
			e.log.Warn("auto checkpoint failed", slog.Any("error", err))
		}
	}

	return nil
}

// Rollback discards all staged, uncommitted operations.
func (e *Engine) Rollback() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending = nil
	e.rc.ReleaseBuffer(e.pendingBytes)
	e.pendingBytes = 0
}

// Snapshot returns the current committed snapshot. The returned value is
// immutable and stays valid after later commits; it simply keeps observing
// its own revision.
func (e *Engine) Snapshot() *Snapshot {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.current
}

func (e *Engine) publish(s *Snapshot) {
	e.snapMu.Lock()
	e.current = s
	e.snapMu.Unlock()
}

// Metrics returns the engine's metrics sink.
func (e *Engine) Metrics() Metrics { return e.metrics }

// Close flushes staged operations, folds the WAL into a final snapshot and
// releases the data directory. The engine is unusable afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	var firstErr error
	if err := e.commitLocked(); err != nil {
		firstErr = err
	}
	if firstErr == nil && e.opsSinceCP > 0 {
		if err := e.checkpointLocked(context.Background()); err != nil {
			firstErr = err
		}
	}

	e.closed = true

	if err := e.wal.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if e.unlock != nil {
		if err := e.unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// applyBatch builds the next snapshot from base plus one committed batch.
// Maps are copied up front; posting lists and document records are shared
// with base and cloned only when the batch touches them.
func applyBatch(base *Snapshot, revision uint64, entries []wal.Entry) *Snapshot {
	next := &Snapshot{
		revision:   revision,
		nextLocal:  base.nextLocal,
		totalTerms: base.totalTerms,
		byExt:      maps.Clone(base.byExt),
		docs:       maps.Clone(base.docs),
		postings:   maps.Clone(base.postings),
	}

	cloned := make(map[string]bool)
	mutable := func(term string) *postings.List {
		if cloned[term] {
			return next.postings[term]
		}
		list, ok := next.postings[term]
		if ok {
			list = list.Clone()
		} else {
			list = postings.NewList()
		}
		next.postings[term] = list
		cloned[term] = true
		return list
	}

	retract := func(local uint32, rec *docRecord) {
		for term := range rec.Terms {
			list := mutable(term)
			list.Remove(local)
			if list.IsEmpty() {
				delete(next.postings, term)
				delete(cloned, term)
			}
		}
		next.totalTerms -= uint64(rec.Length)
	}

	for _, entry := range entries {
		switch entry.Type {
		case wal.OpPrepareReplace:
			local, existed := next.byExt[entry.DocID]
			if existed {
				retract(local, next.docs[local])
			} else {
				local = next.nextLocal
				next.nextLocal++
				next.byExt[entry.DocID] = local
			}

			rec := &docRecord{
				DocID: entry.DocID,
				Terms: make(map[string]uint32, len(entry.Terms)),
			}
			for _, tc := range entry.Terms {
				if tc.Count == 0 {
					continue
				}
				rec.Terms[tc.Term] = tc.Count
				rec.Length += tc.Count
				mutable(tc.Term).Set(local, tc.Count)
			}
			next.docs[local] = rec
			next.totalTerms += uint64(rec.Length)

		case wal.OpPrepareDelete:
			local, ok := next.byExt[entry.DocID]
			if !ok {
				continue
			}
			retract(local, next.docs[local])
			delete(next.docs, local)
			delete(next.byExt, entry.DocID)
		}
	}

	return next
}

func sortedTermCounts(terms map[string]uint32) []wal.TermCount {
	out := make([]wal.TermCount, 0, len(terms))
	for term, count := range terms {
		out = append(out, wal.TermCount{Term: term, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Term < out[j].Term })
	return out
}

func stagedCost(entry wal.Entry) int64 {
	cost := int64(len(entry.DocID)) + 16
	for _, tc := range entry.Terms {
		cost += int64(len(tc.Term)) + 8
	}
	return cost
}
