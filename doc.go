// Package mailindex provides a persistent, crash-safe full-text index for
// local document collections.
//
// Documents are plain string ids with free-text fields. Writes are staged
// in memory and made durable by Commit, which is atomic: after a crash the
// index reopens at its last fully committed revision. Reads run against
// immutable snapshots and are never blocked by the writer.
//
//   - Atomic commits through a write-ahead log with CRC-framed batches
//   - Checkpointing folds the log into an immutable snapshot file
//   - BM25-ranked free-text search with stable pagination
//   - Snapshot isolation: pinned views never observe later commits
//   - Optional zstd/LZ4 compression for log and snapshots
//   - Backup and restore against local, in-memory, S3 or MinIO blob stores
//
// # Quick start
//
//	idx, err := mailindex.Open("./data")
//	if err != nil {
//	    panic(err)
//	}
//	defer idx.Close()
//
//	idx.Index("m1", []string{"Alice", "Re: meeting notes", "see you Friday"})
//	idx.Index("m2", []string{"Bob", "lunch?", "friday works for me"})
//	if err := idx.Commit(); err != nil {
//	    panic(err)
//	}
//
//	ids, hasMore, err := idx.Search("friday", 0, 10)
//	// ids == ["m2", "m1"] (or by score), hasMore == false
//
// # Durability
//
// Every Commit appends one checksummed batch to the write-ahead log and
// fsyncs it before the new revision becomes visible. Reopening replays
// committed batches on top of the newest snapshot and discards a torn tail.
// Use WithDurability(wal.DurabilityAsync) to skip the fsync during bulk
// reindexing.
//
// # Concurrency
//
// One handle owns the write path; Index, Remove, Commit and Checkpoint are
// serialized internally. Search, List and Exists may be called from any
// number of goroutines and always observe the latest committed revision.
// Snapshot pins a revision for repeat-stable reads.
package mailindex
