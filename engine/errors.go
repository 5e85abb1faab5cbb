package engine

import "errors"

var (
	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine is closed")

	// ErrLocked is returned by Open when another process holds the data
	// directory's writer lock.
	ErrLocked = errors.New("data directory is locked by another process")

	// ErrCorrupt wraps inconsistencies found while loading durable state.
	ErrCorrupt = errors.New("corrupt index state")

	// ErrBufferFull is returned when staging an operation would exceed the
	// configured write-buffer limit. Committing frees the buffer.
	ErrBufferFull = errors.New("write buffer limit reached")
)
