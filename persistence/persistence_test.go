package persistence

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/barracuda156/mailindex/internal/fs"
)

func TestChecksumRoundTrip(t *testing.T) {
	data := []byte("some section payload")

	var buf bytes.Buffer
	cw := NewChecksumWriter(&buf)
	if _, err := cw.Write(data); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if err := VerifyChecksum(buf.Bytes(), cw.Sum()); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	corrupted := append([]byte(nil), buf.Bytes()...)
	corrupted[3] ^= 0xFF
	err := VerifyChecksum(corrupted, cw.Sum())
	var mismatch *ChecksumMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ChecksumMismatchError, got %v", err)
	}
}

func TestSaveToFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.idx")

	if err := SaveToFile(nil, path, func(w io.Writer) error {
		_, err := w.Write([]byte("v1"))
		return err
	}); err != nil {
		t.Fatalf("initial save failed: %v", err)
	}

	// A failing writeFunc must leave the previous file untouched.
	wantErr := errors.New("boom")
	if err := SaveToFile(nil, path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return wantErr
	}); !errors.Is(err, wantErr) {
		t.Fatalf("expected write error, got %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v1" {
		t.Fatalf("file content = %q, want %q", got, "v1")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file left behind after failed save")
	}
}

func TestSaveToFileSyncFault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.idx")

	ffs := fs.NewFaultyFS(nil)
	ffs.FailPath("snapshot.idx.tmp", fs.Fault{FailAfterBytes: -1, FailOnSync: true})

	err := SaveToFile(ffs, path, func(w io.Writer) error {
		_, err := w.Write([]byte("data"))
		return err
	})
	if !errors.Is(err, fs.ErrInjected) {
		t.Fatalf("expected injected sync fault, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("target must not exist after failed save")
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("hello mail index ", 200))

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		block, err := CompressBlock(payload, c)
		if err != nil {
			t.Fatalf("compress(%d) failed: %v", c, err)
		}
		got, err := DecompressBlock(block, c)
		if err != nil {
			t.Fatalf("decompress(%d) failed: %v", c, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("round trip mismatch for compression %d", c)
		}
	}
}

func TestCompressionIncompressible(t *testing.T) {
	// High-entropy-ish input that LZ4 cannot shrink ends up stored raw.
	payload := []byte{0x01, 0xF3, 0x9C, 0x4A, 0x77, 0x10, 0xBE, 0x02}
	block, err := CompressBlock(payload, CompressionLZ4)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	got, err := DecompressBlock(block, CompressionLZ4)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("round trip mismatch")
	}
}
