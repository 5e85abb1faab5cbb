package mailindex

import (
	"errors"
	"fmt"

	"github.com/barracuda156/mailindex/engine"
)

var (
	// ErrEmptyDocID is returned when an operation is given an empty
	// document id.
	ErrEmptyDocID = errors.New("document id must not be empty")

	// ErrClosed is returned on operations against a closed index.
	ErrClosed = errors.New("index is closed")
)

// OpenError indicates the index could not be opened at the given path.
//
// The original underlying error can be accessed via errors.Unwrap.
type OpenError struct {
	Path  string
	cause error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open index at %s: %v", e.Path, e.cause)
}

func (e *OpenError) Unwrap() error { return e.cause }

// WriteError indicates a commit-time I/O failure. The index remains at its
// prior committed revision and the staged operations are retained, so the
// caller may retry Commit.
//
// The original underlying error can be accessed via errors.Unwrap.
type WriteError struct {
	cause error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("commit failed: %v", e.cause)
}

func (e *WriteError) Unwrap() error { return e.cause }

// CorruptError indicates durable state failed verification, either on open
// or while restoring a backup.
//
// The original underlying error can be accessed via errors.Unwrap.
type CorruptError struct {
	cause error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("index state is corrupt: %v", e.cause)
}

func (e *CorruptError) Unwrap() error { return e.cause }

func translateOpenError(path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, engine.ErrCorrupt) {
		return &OpenError{Path: path, cause: &CorruptError{cause: err}}
	}
	return &OpenError{Path: path, cause: err}
}

func translateWriteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, engine.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return &WriteError{cause: err}
}
