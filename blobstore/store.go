// Package blobstore abstracts the object storage that index backups are
// written to and restored from: a local directory, an in-memory store for
// tests, or S3-compatible object storage.
package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error satisfying errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("blob not found")

// BlobStore stores named immutable blobs.
type BlobStore interface {
	// Open opens a blob for streaming reads.
	Open(ctx context.Context, name string) (Blob, error)

	// Create creates a blob for streaming writes. The blob becomes visible
	// on Close; an abandoned writer leaves no blob behind.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a small blob in one call.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	io.ReadCloser

	// Size returns the blob size in bytes.
	Size() int64
}

// WritableBlob is a streaming writer for a new blob.
type WritableBlob interface {
	io.WriteCloser
}
