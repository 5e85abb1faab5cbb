package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/barracuda156/mailindex/manifest"
	"github.com/barracuda156/mailindex/persistence"
	"github.com/barracuda156/mailindex/resource"
)

// Checkpoint folds the committed state into a fresh snapshot file, swaps the
// manifest to it and truncates the WAL. Readers are unaffected; the snapshot
// being persisted is immutable.
func (e *Engine) Checkpoint(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	return e.checkpointLocked(ctx)
}

func (e *Engine) checkpointLocked(ctx context.Context) error {
	if err := e.rc.AcquireJob(ctx); err != nil {
		return err
	}
	defer e.rc.ReleaseJob()

	start := time.Now()
	snap := e.Snapshot()

	filename := snapshotFileName(snap.revision)
	path := filepath.Join(e.opts.Path, filename)

	if err := persistence.SaveToFile(e.fsys, path, func(w io.Writer) error {
		return snap.WriteTo(resource.NewThrottledWriter(ctx, w, e.rc), e.opts.Codec, e.opts.SnapshotCompression)
	}); err != nil {
		return fmt.Errorf("write snapshot %s: %w", filename, err)
	}

	m := &manifest.Manifest{
		ID:           e.manifestID,
		Revision:     snap.revision,
		SnapshotFile: filename,
		DocCount:     snap.Len(),
	}
	if err := e.manifest.Save(m); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	e.manifestID = m.ID

	if err := e.wal.Truncate(); err != nil {
		return fmt.Errorf("truncate wal: %w", err)
	}
	e.opsSinceCP = 0

	e.pruneSnapshots(filename)

	var size int64
	if info, err := e.fsys.Stat(path); err == nil {
		size = info.Size()
	}
	e.metrics.CheckpointCompleted(snap.revision, size, time.Since(start))
	e.log.Info("checkpoint completed",
		slog.Uint64("revision", snap.revision),
		slog.Int("docs", snap.Len()),
		slog.Int64("bytes", size),
		slog.Duration("took", time.Since(start)))

	return nil
}

// pruneSnapshots removes superseded snapshot files. Best effort; the
// manifest decides which file is live.
func (e *Engine) pruneSnapshots(keep string) {
	entries, err := e.fsys.ReadDir(e.opts.Path)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if name == keep || !strings.HasPrefix(name, "snapshot-") || !strings.HasSuffix(name, ".idx") {
			continue
		}
		_ = e.fsys.Remove(filepath.Join(e.opts.Path, name))
	}
}

func snapshotFileName(revision uint64) string {
	return fmt.Sprintf("snapshot-%012d.idx", revision)
}
