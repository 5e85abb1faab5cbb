package engine

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/barracuda156/mailindex/codec"
	"github.com/barracuda156/mailindex/internal/fs"
	"github.com/barracuda156/mailindex/internal/mmap"
	"github.com/barracuda156/mailindex/manifest"
	"github.com/barracuda156/mailindex/wal"
)

// Open opens (or creates) the index in the configured data directory and
// recovers it to the last committed revision: the manifest names the base
// snapshot, and committed WAL batches newer than it are replayed on top.
// A torn WAL tail from a crash is discarded.
func Open(optFns ...func(o *Options)) (*Engine, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.FS == nil {
		opts.FS = fs.Default
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Metrics == nil {
		opts.Metrics = NopMetrics{}
	}

	if err := opts.FS.MkdirAll(opts.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	unlock, err := acquireDirLock(filepath.Join(opts.Path, "LOCK"))
	if err != nil {
		return nil, err
	}

	e := &Engine{
		opts:     opts,
		fsys:     opts.FS,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		rc:       opts.Resources,
		manifest: manifest.NewStore(opts.FS, opts.Path),
		unlock:   unlock,
	}

	if err := e.recover(); err != nil {
		unlock()
		return nil, err
	}

	return e, nil
}

func (e *Engine) recover() error {
	m, err := e.manifest.Load()
	if err != nil {
		return fmt.Errorf("%w: load manifest: %w", ErrCorrupt, err)
	}
	e.manifestID = m.ID

	snap := emptySnapshot()
	if m.SnapshotFile != "" {
		snap, err = e.loadSnapshotFile(m.SnapshotFile)
		if err != nil {
			return err
		}
		if snap.revision != m.Revision {
			return fmt.Errorf("%w: snapshot %s is at revision %d, manifest says %d",
				ErrCorrupt, m.SnapshotFile, snap.revision, m.Revision)
		}
	}

	walOpts := e.opts.WAL
	w, err := wal.New(func(o *wal.Options) {
		*o = walOpts
		o.Path = e.opts.Path
		o.FS = e.fsys
	})
	if err != nil {
		return fmt.Errorf("open wal: %w", err)
	}
	e.wal = w

	batches := 0
	err = w.ReplayCommitted(func(revision uint64, entries []wal.Entry) error {
		// Batches at or below the snapshot revision were already folded
		// into it; a crash between snapshot save and WAL truncation
		// leaves them behind.
		if revision <= snap.revision {
			return nil
		}
		if revision != snap.revision+1 {
			return fmt.Errorf("%w: wal continues at revision %d, expected %d",
				ErrCorrupt, revision, snap.revision+1)
		}
		snap = applyBatch(snap, revision, entries)
		batches++
		return nil
	})
	if err != nil {
		w.Close()
		return fmt.Errorf("replay wal: %w", err)
	}

	e.publish(snap)
	e.metrics.RecoveryCompleted(batches, snap.revision)
	e.log.Info("index opened",
		slog.String("path", e.opts.Path),
		slog.Uint64("revision", snap.revision),
		slog.Int("docs", snap.Len()),
		slog.Int("replayed_batches", batches))

	return nil
}

func (e *Engine) loadSnapshotFile(name string) (*Snapshot, error) {
	path := filepath.Join(e.opts.Path, name)

	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open snapshot %s: %w", ErrCorrupt, name, err)
	}
	defer m.Close()

	snap, err := LoadSnapshot(m.Bytes())
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", name, err)
	}
	return snap, nil
}
