package engine

import "time"

// Metrics receives engine-level counters and timings. Implementations must
// be safe for concurrent use.
type Metrics interface {
	// CommitApplied is called after a successful commit.
	CommitApplied(ops int, revision uint64, d time.Duration)

	// CommitFailed is called when a commit could not be made durable.
	CommitFailed()

	// SearchExecuted is called after every search.
	SearchExecuted(terms, matches int, d time.Duration)

	// CheckpointCompleted is called after the WAL was folded into a
	// snapshot file of the given size.
	CheckpointCompleted(revision uint64, bytes int64, d time.Duration)

	// RecoveryCompleted is called once per Open, after WAL replay.
	RecoveryCompleted(batches int, revision uint64)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) CommitApplied(int, uint64, time.Duration)        {}
func (NopMetrics) CommitFailed()                                   {}
func (NopMetrics) SearchExecuted(int, int, time.Duration)          {}
func (NopMetrics) CheckpointCompleted(uint64, int64, time.Duration) {}
func (NopMetrics) RecoveryCompleted(int, uint64)                   {}
