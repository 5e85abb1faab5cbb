package wal

import "github.com/barracuda156/mailindex/internal/fs"

// OperationType identifies a WAL record.
type OperationType uint8

const (
	// OpPrepareReplace stages "replace all terms for a document".
	OpPrepareReplace OperationType = iota
	// OpPrepareDelete stages "delete a document".
	OpPrepareDelete
	// OpCommit seals all prepare records since the previous commit at a
	// revision. Recovery applies only sealed batches.
	OpCommit
)

// TermCount is one (term, occurrence count) pair of a replace operation.
type TermCount struct {
	Term  string
	Count uint32
}

// Entry is a single staged operation.
type Entry struct {
	Type   OperationType
	SeqNum uint64
	DocID  string
	Terms  []TermCount // OpPrepareReplace only
}

// DurabilityMode defines fsync behavior for commit batches.
type DurabilityMode int

const (
	// DurabilitySync fsyncs on every commit batch. A successful Commit
	// guarantees the batch survives a crash. Default.
	DurabilitySync DurabilityMode = iota

	// DurabilityAsync skips fsync. Use for bulk reindexing where the caller
	// accepts losing the tail on crash; the store still recovers to an
	// earlier committed revision.
	DurabilityAsync
)

// Options configures the WAL.
type Options struct {
	// Path is the directory holding the WAL file.
	Path string

	// Compress enables zstd compression. Each commit batch is an
	// independent zstd frame so a torn tail never corrupts sealed batches.
	Compress bool

	// CompressionLevel is the zstd level (1-22); 3 balances speed and ratio.
	CompressionLevel int

	// DurabilityMode controls commit fsync behavior.
	DurabilityMode DurabilityMode

	// CheckpointOps triggers ShouldCheckpoint after this many committed
	// operations. 0 disables the op-based threshold.
	CheckpointOps int

	// CheckpointMB triggers ShouldCheckpoint once the WAL file exceeds this
	// many megabytes. 0 disables the size-based threshold.
	CheckpointMB int

	// FS is the filesystem used for the log file. Defaults to the local
	// filesystem; tests swap in a fault-injecting implementation.
	FS fs.FileSystem
}

// DefaultOptions are the defaults applied by New.
var DefaultOptions = Options{
	Path:             ".",
	Compress:         false,
	CompressionLevel: 3,
	DurabilityMode:   DurabilitySync,
	CheckpointOps:    10000,
	CheckpointMB:     64,
}
