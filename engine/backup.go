package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/barracuda156/mailindex/blobstore"
	"github.com/barracuda156/mailindex/internal/fs"
	"github.com/barracuda156/mailindex/manifest"
	"github.com/barracuda156/mailindex/resource"
)

// Backup checkpoints the index and uploads its durable files (CURRENT,
// manifest, snapshot) under prefix in the blob store. Files are uploaded
// concurrently; the CURRENT pointer goes last so a partially uploaded backup
// is never picked up by Restore.
func (e *Engine) Backup(ctx context.Context, store blobstore.BlobStore, prefix string) error {
	// A fresh checkpoint empties the WAL, so the snapshot plus manifest is
	// the complete state.
	if err := e.Checkpoint(ctx); err != nil {
		return fmt.Errorf("checkpoint before backup: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	m, err := e.manifest.Load()
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}

	manifestFile := manifest.FileName(m.ID)

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range []string{manifestFile, m.SnapshotFile} {
		g.Go(func() error {
			return e.uploadFile(gctx, store, prefix, name)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("upload backup files: %w", err)
	}

	if err := store.Put(ctx, path.Join(prefix, manifest.CurrentFileName), []byte(manifestFile)); err != nil {
		return fmt.Errorf("publish backup pointer: %w", err)
	}

	e.log.Info("backup completed",
		slog.String("prefix", prefix),
		slog.Uint64("revision", m.Revision),
		slog.Int("docs", m.DocCount))

	return nil
}

func (e *Engine) uploadFile(ctx context.Context, store blobstore.BlobStore, prefix, name string) error {
	f, err := e.fsys.OpenFile(filepath.Join(e.opts.Path, name), os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	w, err := store.Create(ctx, path.Join(prefix, name))
	if err != nil {
		return fmt.Errorf("create blob %s: %w", name, err)
	}

	if _, err := io.Copy(w, resource.NewThrottledReader(ctx, f, e.rc)); err != nil {
		w.Close()
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return w.Close()
}

// Restore downloads a backup written by Backup into dir, which must not
// already hold an index. Opening the directory afterwards recovers the
// backed-up revision.
func Restore(ctx context.Context, store blobstore.BlobStore, prefix, dir string, fsys fs.FileSystem) error {
	if fsys == nil {
		fsys = fs.Default
	}

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create restore directory: %w", err)
	}
	if _, err := fsys.Stat(filepath.Join(dir, manifest.CurrentFileName)); err == nil {
		return fmt.Errorf("restore directory %s already holds an index", dir)
	}

	currentBlob, err := store.Open(ctx, path.Join(prefix, manifest.CurrentFileName))
	if err != nil {
		return fmt.Errorf("open backup pointer: %w", err)
	}
	manifestName, err := io.ReadAll(currentBlob)
	currentBlob.Close()
	if err != nil {
		return fmt.Errorf("read backup pointer: %w", err)
	}

	data, err := downloadBlob(ctx, store, path.Join(prefix, string(manifestName)))
	if err != nil {
		return fmt.Errorf("download manifest: %w", err)
	}
	if err := writeRestoredFile(fsys, filepath.Join(dir, string(manifestName)), data); err != nil {
		return err
	}

	var m manifest.Manifest
	if err := codecUnmarshalManifest(data, &m); err != nil {
		return fmt.Errorf("decode backup manifest: %w", err)
	}

	if m.SnapshotFile != "" {
		snapData, err := downloadBlob(ctx, store, path.Join(prefix, m.SnapshotFile))
		if err != nil {
			return fmt.Errorf("download snapshot: %w", err)
		}
		// Verify before installing so a damaged backup fails here, not at
		// the next open.
		if _, err := LoadSnapshot(snapData); err != nil {
			return fmt.Errorf("verify snapshot %s: %w", m.SnapshotFile, err)
		}
		if err := writeRestoredFile(fsys, filepath.Join(dir, m.SnapshotFile), snapData); err != nil {
			return err
		}
	}

	// CURRENT last: its presence marks the restore as complete.
	return writeRestoredFile(fsys, filepath.Join(dir, manifest.CurrentFileName), manifestName)
}

func downloadBlob(ctx context.Context, store blobstore.BlobStore, name string) ([]byte, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()
	return io.ReadAll(blob)
}

func writeRestoredFile(fsys fs.FileSystem, path string, data []byte) error {
	f, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	return f.Close()
}

func codecUnmarshalManifest(data []byte, m *manifest.Manifest) error {
	// Manifests are always JSON, independent of the snapshot codec.
	return json.Unmarshal(data, m)
}
