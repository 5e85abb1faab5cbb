package mailindex

import (
	"context"
	"time"

	"github.com/barracuda156/mailindex/blobstore"
	"github.com/barracuda156/mailindex/engine"
	"github.com/barracuda156/mailindex/internal/fs"
	"github.com/barracuda156/mailindex/tokenizer"
)

// Index is a persistent full-text document index. It holds the single
// writer handle for its data directory; reads may run concurrently from any
// number of goroutines while one writer sequence of Index/Remove/Commit
// proceeds at a time.
//
// Reads always observe the latest committed revision. Writes staged since
// the last Commit are never visible to reads.
type Index struct {
	path string
	eng  *engine.Engine
}

// Open opens (or creates) the index rooted at path. The directory is
// exclusively owned by the returned handle until Close; a second Open on
// the same path fails with engine.ErrLocked.
//
// Open recovers the last committed revision after a crash: a partially
// written commit is discarded, a fully committed one is replayed.
func Open(path string, optFns ...func(*Options)) (*Index, error) {
	opts := Options{Engine: engine.DefaultOptions}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Engine.Path = path

	eng, err := engine.Open(func(o *engine.Options) {
		*o = opts.Engine
	})
	if err != nil {
		return nil, translateOpenError(path, err)
	}
	return &Index{path: path, eng: eng}, nil
}

// Path returns the data directory the index was opened at.
func (ix *Index) Path() string { return ix.path }

// Index tokenizes the document's field text and stages a full replacement
// of the document's terms. A previously indexed document with the same id
// loses all of its prior terms; term sets are replaced, never merged.
//
// The staged operation becomes durable and visible to reads only after
// Commit.
func (ix *Index) Index(docID string, fields []string) error {
	if docID == "" {
		return ErrEmptyDocID
	}
	terms := tokenizer.TermCounts(tokenizer.TokenizeFields(fields))
	return translateWriteError(ix.eng.StageReplace(docID, terms))
}

// Remove stages deletion of the document. Removing an id that was never
// indexed is a no-op, not an error.
func (ix *Index) Remove(docID string) error {
	if docID == "" {
		return ErrEmptyDocID
	}
	return translateWriteError(ix.eng.StageDelete(docID))
}

// Commit durably applies every operation staged since the previous commit
// and advances the index to a new revision. The batch is atomic: on failure
// the index stays at its prior revision and the staged operations are
// retained for a retry.
func (ix *Index) Commit() error {
	return translateWriteError(ix.eng.Commit())
}

// Rollback discards all staged operations without applying them.
func (ix *Index) Rollback() {
	ix.eng.Rollback()
}

// PendingOps reports the number of staged operations awaiting Commit.
func (ix *Index) PendingOps() int {
	return ix.eng.PendingOps()
}

// Search ranks committed documents matching the free-text query and returns
// the page [offset, offset+max) of their ids, best match first. A document
// matches when it contains at least one query term; ties in score break by
// ascending document id, so pagination over an unchanged index is stable.
// hasMore reports whether at least one further match exists beyond the
// returned page.
//
// An empty or symbol-only query matches nothing.
func (ix *Index) Search(query string, offset, max uint) (ids []string, hasMore bool, err error) {
	snap := ix.eng.Snapshot()

	start := time.Now()
	res, err := snap.Search(query, int(offset), int(max))
	if err != nil {
		return nil, false, err
	}
	ix.eng.Metrics().SearchExecuted(len(tokenizer.Tokenize(query)), res.Total, time.Since(start))

	return res.IDs, res.HasMore, nil
}

// List returns the ids of all committed documents in lexical order.
func (ix *Index) List() ([]string, error) {
	return ix.eng.Snapshot().List(), nil
}

// Exists reports whether the document is present in the committed index.
func (ix *Index) Exists(docID string) bool {
	return ix.eng.Snapshot().Exists(docID)
}

// Len returns the number of committed documents.
func (ix *Index) Len() int {
	return ix.eng.Snapshot().Len()
}

// Snapshot pins the current committed revision. The returned view is
// immutable: reads against it never observe later commits, so it gives
// repeat-stable pagination while the index keeps moving. Snapshots are
// cheap and need no release.
func (ix *Index) Snapshot() *engine.Snapshot {
	return ix.eng.Snapshot()
}

// Checkpoint folds the write-ahead log into a fresh snapshot file and
// truncates the log. Reopening after a checkpoint replays nothing.
func (ix *Index) Checkpoint(ctx context.Context) error {
	return ix.eng.Checkpoint(ctx)
}

// Backup checkpoints the index and uploads a consistent copy of its durable
// state to the blob store under prefix. The backup pointer is uploaded
// last, so a partial upload is never restorable.
func (ix *Index) Backup(ctx context.Context, store blobstore.BlobStore, prefix string) error {
	return ix.eng.Backup(ctx, store, prefix)
}

// Restore materializes a backup taken with Backup into dir, which must not
// already contain an index. The snapshot is verified before anything is
// written. The restored directory can then be opened with Open.
func Restore(ctx context.Context, store blobstore.BlobStore, prefix, dir string) error {
	return engine.Restore(ctx, store, prefix, dir, fs.Default)
}

// Close commits any staged operations, checkpoints, and releases the
// directory lock. The handle is unusable afterwards.
func (ix *Index) Close() error {
	return translateWriteError(ix.eng.Close())
}
