package engine

import (
	"log/slog"

	"github.com/barracuda156/mailindex/codec"
	"github.com/barracuda156/mailindex/internal/fs"
	"github.com/barracuda156/mailindex/persistence"
	"github.com/barracuda156/mailindex/resource"
	"github.com/barracuda156/mailindex/wal"
)

// Options configures the engine.
type Options struct {
	// Path is the data directory holding the WAL, manifests and snapshots.
	Path string

	// FS is the filesystem for all durable state. Defaults to the local
	// filesystem.
	FS fs.FileSystem

	// Codec marshals the structured snapshot sections.
	Codec codec.Codec

	// Logger receives structured engine events. Defaults to a disabled
	// logger.
	Logger *slog.Logger

	// Metrics receives operation counters and timings.
	Metrics Metrics

	// Resources bounds background jobs, their IO rate and the write buffer.
	// Nil means unbounded.
	Resources *resource.Controller

	// WAL tunes the write-ahead log. Path and FS are overridden to match
	// the engine's.
	WAL wal.Options

	// SnapshotCompression compresses snapshot sections on checkpoint.
	SnapshotCompression persistence.Compression

	// AutoCheckpoint folds the WAL into a fresh snapshot when it passes
	// the WAL's checkpoint thresholds. Enabled by default.
	AutoCheckpoint bool
}

// DefaultOptions are the engine defaults applied by Open.
var DefaultOptions = Options{
	Codec:               codec.Default,
	SnapshotCompression: persistence.CompressionNone,
	AutoCheckpoint:      true,
	WAL:                 wal.DefaultOptions,
}
