package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/barracuda156/mailindex/internal/fs"
)

// LocalStore implements BlobStore on a local directory. Blobs are plain
// files; names may contain slashes, which map to subdirectories.
type LocalStore struct {
	fs   fs.FileSystem
	root string
}

// NewLocalStore creates a store rooted at dir.
func NewLocalStore(fsys fs.FileSystem, dir string) *LocalStore {
	if fsys == nil {
		fsys = fs.Default
	}
	return &LocalStore{fs: fsys, root: dir}
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	path := s.path(name)

	info, err := s.fs.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("open blob %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	f, err := s.fs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}

	return &localBlob{f: f, size: info.Size()}, nil
}

func (s *LocalStore) Create(_ context.Context, name string) (WritableBlob, error) {
	path := s.path(name)
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	tmpPath := path + ".tmp"
	f, err := s.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}

	return &localWritableBlob{fs: s.fs, f: f, tmpPath: tmpPath, path: path}, nil
}

func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (s *LocalStore) Delete(_ context.Context, name string) error {
	err := s.fs.Remove(s.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	var names []string

	var walk func(dir, rel string) error
	walk = func(dir, rel string) error {
		entries, err := s.fs.ReadDir(dir)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, e := range entries {
			name := e.Name()
			childRel := name
			if rel != "" {
				childRel = rel + "/" + name
			}
			if e.IsDir() {
				if err := walk(filepath.Join(dir, name), childRel); err != nil {
					return err
				}
				continue
			}
			if strings.HasSuffix(name, ".tmp") {
				continue
			}
			if strings.HasPrefix(childRel, prefix) {
				names = append(names, childRel)
			}
		}
		return nil
	}

	if err := walk(s.root, ""); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

type localBlob struct {
	f    fs.File
	size int64
}

func (b *localBlob) Read(p []byte) (int, error) { return b.f.Read(p) }
func (b *localBlob) Close() error               { return b.f.Close() }
func (b *localBlob) Size() int64                { return b.size }

// localWritableBlob writes to a temp file and renames on Close, so readers
// never observe a half-written blob.
type localWritableBlob struct {
	fs      fs.FileSystem
	f       fs.File
	tmpPath string
	path    string
	err     error
}

func (w *localWritableBlob) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if err != nil {
		w.err = err
	}
	return n, err
}

func (w *localWritableBlob) Close() error {
	if w.err != nil {
		w.f.Close()
		w.fs.Remove(w.tmpPath)
		return w.err
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		w.fs.Remove(w.tmpPath)
		return err
	}
	if err := w.f.Close(); err != nil {
		w.fs.Remove(w.tmpPath)
		return err
	}
	if err := w.fs.Rename(w.tmpPath, w.path); err != nil {
		w.fs.Remove(w.tmpPath)
		return err
	}
	return nil
}

var _ io.ReadCloser = (*localBlob)(nil)
