// Package persistence provides the durable file primitives shared by the
// snapshot and manifest layers: atomic file replacement, CRC32 checksums and
// optional block compression.
package persistence

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/barracuda156/mailindex/internal/fs"
)

// SaveToFile writes a file atomically: the content is written to a temp file
// in the same directory, fsynced, and renamed over the target. A crash at any
// point leaves either the old file or the new one, never a partial write.
func SaveToFile(fsys fs.FileSystem, filename string, writeFunc func(io.Writer) error) (err error) {
	if fsys == nil {
		fsys = fs.Default
	}

	dir := filepath.Dir(filename)
	tmpName := filename + ".tmp"

	f, err := fsys.OpenFile(tmpName, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = fsys.Remove(tmpName)
		}
	}()

	buf := bufio.NewWriterSize(f, 256*1024)
	if err = writeFunc(buf); err != nil {
		return err
	}
	if err = buf.Flush(); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}

	if err = fsys.Rename(tmpName, filename); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	// Best-effort: fsync the directory so the rename survives a crash.
	if d, derr := os.Open(dir); derr == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// LoadFromFile opens filename and hands a buffered reader to readFunc.
func LoadFromFile(fsys fs.FileSystem, filename string, readFunc func(io.Reader) error) error {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(filename, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return readFunc(bufio.NewReaderSize(f, 256*1024))
}
