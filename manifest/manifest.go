// Package manifest tracks which snapshot file holds the current durable
// state of the index. The CURRENT file is a one-line pointer to the latest
// manifest; swapping it is the commit point of a checkpoint.
package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/barracuda156/mailindex/internal/fs"
)

const (
	ManifestFileName = "MANIFEST"
	CurrentFileName  = "CURRENT"
	CurrentVersion   = 1
)

// Manifest describes the durable state of the index at a checkpoint.
type Manifest struct {
	Version  int    `json:"version"`
	ID       uint64 `json:"id"`
	Revision uint64 `json:"revision"`

	// SnapshotFile is the snapshot holding the state at Revision,
	// relative to the data directory. Empty when no checkpoint exists.
	SnapshotFile string `json:"snapshot_file"`

	DocCount int `json:"doc_count"`
}

// FileName returns the manifest file name for an ID.
func FileName(id uint64) string {
	return fmt.Sprintf("%s-%06d.json", ManifestFileName, id)
}

// Store manages the manifest files and the CURRENT pointer.
type Store struct {
	fs  fs.FileSystem
	dir string
	mu  sync.Mutex
}

// NewStore creates a manifest store rooted at dir.
func NewStore(fsys fs.FileSystem, dir string) *Store {
	return &Store{
		fs:  fsys,
		dir: dir,
	}
}

// Load loads the manifest the CURRENT pointer names. A missing CURRENT file
// yields an empty manifest: a fresh index directory.
func (s *Store) Load() (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	readFile := func(path string) ([]byte, error) {
		f, err := s.fs.OpenFile(path, os.O_RDONLY, 0)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}

	currentPath := filepath.Join(s.dir, CurrentFileName)
	content, err := readFile(currentPath)
	if os.IsNotExist(err) {
		return &Manifest{Version: CurrentVersion}, nil
	}
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(string(content))
	data, err := readFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("read manifest %q: %w", name, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %q: %w", name, err)
	}

	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported manifest version: %d (expected %d)", m.Version, CurrentVersion)
	}

	return &m, nil
}

// Save writes a new manifest file, then atomically swaps the CURRENT pointer
// to it. A crash before the swap leaves the previous manifest in effect.
func (s *Store) Save(m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Version = CurrentVersion
	m.ID++

	filename := FileName(m.ID)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	if err := s.writeFileAtomic(filepath.Join(s.dir, filename), data); err != nil {
		return err
	}
	if err := s.syncDir(); err != nil {
		return err
	}

	if err := s.writeFileAtomic(filepath.Join(s.dir, CurrentFileName), []byte(filename)); err != nil {
		return err
	}
	if err := s.syncDir(); err != nil {
		return err
	}

	s.pruneOld(filename)

	return nil
}

func (s *Store) writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := s.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return err
	}
	if err := s.fs.Rename(tmpPath, path); err != nil {
		s.fs.Remove(tmpPath)
		return err
	}
	return nil
}

// pruneOld deletes superseded manifest files. Best effort; leftovers are
// harmless because only CURRENT decides what is live.
func (s *Store) pruneOld(keep string) {
	entries, err := s.fs.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if name == keep || !strings.HasPrefix(name, ManifestFileName+"-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		_ = s.fs.Remove(filepath.Join(s.dir, name))
	}
}

func (s *Store) syncDir() error {
	f, err := s.fs.OpenFile(s.dir, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
