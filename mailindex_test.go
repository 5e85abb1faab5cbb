package mailindex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barracuda156/mailindex/blobstore"
	"github.com/barracuda156/mailindex/engine"
)

func openTestIndex(t *testing.T, optFns ...func(*Options)) *Index {
	t.Helper()

	idx, err := Open(t.TempDir(), optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	return idx
}

func TestIndex(t *testing.T) {
	t.Run("IndexCommitSearch", func(t *testing.T) {
		idx := openTestIndex(t)

		require.NoError(t, idx.Index("m1", []string{"Alice", "Re: meeting notes", "see you Friday"}))
		require.NoError(t, idx.Index("m2", []string{"Bob", "lunch?", "friday works for me"}))
		require.NoError(t, idx.Commit())

		ids, hasMore, err := idx.Search("friday", 0, 10)
		require.NoError(t, err)
		assert.False(t, hasMore)
		assert.ElementsMatch(t, []string{"m1", "m2"}, ids)

		ids, _, err = idx.Search("alice", 0, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"m1"}, ids)
	})

	t.Run("StagedWritesInvisibleUntilCommit", func(t *testing.T) {
		idx := openTestIndex(t)

		require.NoError(t, idx.Index("m1", []string{"hello"}))
		assert.False(t, idx.Exists("m1"))
		assert.Equal(t, 1, idx.PendingOps())

		require.NoError(t, idx.Commit())
		assert.True(t, idx.Exists("m1"))
		assert.Equal(t, 0, idx.PendingOps())
	})

	t.Run("ReindexReplaces", func(t *testing.T) {
		idx := openTestIndex(t)

		require.NoError(t, idx.Index("m1", []string{"apple banana"}))
		require.NoError(t, idx.Commit())

		require.NoError(t, idx.Index("m1", []string{"cherry"}))
		require.NoError(t, idx.Commit())

		ids, _, err := idx.Search("banana", 0, 10)
		require.NoError(t, err)
		assert.Empty(t, ids)

		ids, _, err = idx.Search("cherry", 0, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"m1"}, ids)
	})

	t.Run("RemoveMissingIsNoop", func(t *testing.T) {
		idx := openTestIndex(t)

		require.NoError(t, idx.Remove("never-indexed"))
		require.NoError(t, idx.Commit())
		assert.Equal(t, 0, idx.Len())
	})

	t.Run("EmptyDocID", func(t *testing.T) {
		idx := openTestIndex(t)

		assert.ErrorIs(t, idx.Index("", []string{"text"}), ErrEmptyDocID)
		assert.ErrorIs(t, idx.Remove(""), ErrEmptyDocID)
	})

	t.Run("EmptyQuery", func(t *testing.T) {
		idx := openTestIndex(t)

		require.NoError(t, idx.Index("m1", []string{"hello"}))
		require.NoError(t, idx.Commit())

		for _, query := range []string{"", "   ", "!!! ...", "\t\n"} {
			ids, hasMore, err := idx.Search(query, 0, 10)
			require.NoError(t, err)
			assert.Empty(t, ids, "query %q", query)
			assert.False(t, hasMore)
		}
	})

	t.Run("ListIsLexical", func(t *testing.T) {
		idx := openTestIndex(t)

		for _, id := range []string{"m3", "m1", "m2"} {
			require.NoError(t, idx.Index(id, []string{"text"}))
		}
		require.NoError(t, idx.Commit())

		ids, err := idx.List()
		require.NoError(t, err)
		assert.Equal(t, []string{"m1", "m2", "m3"}, ids)
	})

	t.Run("Pagination", func(t *testing.T) {
		idx := openTestIndex(t)

		docs := []string{"a", "b", "c", "d", "e"}
		for _, id := range docs {
			require.NoError(t, idx.Index(id, []string{"common term"}))
		}
		require.NoError(t, idx.Commit())

		var paged []string
		offset := uint(0)
		for {
			ids, hasMore, err := idx.Search("common", offset, 2)
			require.NoError(t, err)
			paged = append(paged, ids...)
			if !hasMore {
				break
			}
			offset += 2
		}

		full, _, err := idx.Search("common", 0, 100)
		require.NoError(t, err)
		assert.Equal(t, full, paged)
		assert.Len(t, paged, len(docs))
	})

	t.Run("RollbackDiscardsStaged", func(t *testing.T) {
		idx := openTestIndex(t)

		require.NoError(t, idx.Index("m1", []string{"hello"}))
		idx.Rollback()
		require.NoError(t, idx.Commit())
		assert.False(t, idx.Exists("m1"))
	})
}

func TestReopenKeepsCommittedState(t *testing.T) {
	dir := t.TempDir()

	idx, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, idx.Index("m1", []string{"durable text"}))
	require.NoError(t, idx.Commit())
	require.NoError(t, idx.Close())

	idx, err = Open(dir)
	require.NoError(t, err)
	defer idx.Close()

	assert.True(t, idx.Exists("m1"))
	ids, _, err := idx.Search("durable", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, ids)
}

func TestSecondOpenFails(t *testing.T) {
	dir := t.TempDir()

	idx, err := Open(dir)
	require.NoError(t, err)
	defer idx.Close()

	_, err = Open(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrLocked)

	var oe *OpenError
	assert.True(t, errors.As(err, &oe))
	assert.Equal(t, dir, oe.Path)
}

func TestSnapshotPinsRevision(t *testing.T) {
	idx := openTestIndex(t)

	require.NoError(t, idx.Index("m1", []string{"first"}))
	require.NoError(t, idx.Commit())

	snap := idx.Snapshot()

	require.NoError(t, idx.Index("m2", []string{"second"}))
	require.NoError(t, idx.Commit())

	assert.False(t, snap.Exists("m2"))
	assert.True(t, idx.Exists("m2"))
	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, 2, idx.Len())
}

func TestMetricsCollection(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	idx := openTestIndex(t, WithMetrics(metrics))

	require.NoError(t, idx.Index("m1", []string{"hello world"}))
	require.NoError(t, idx.Commit())

	_, _, err := idx.Search("hello", 0, 10)
	require.NoError(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.CommitCount)
	assert.Equal(t, int64(1), stats.CommitOps)
	assert.Equal(t, int64(1), stats.SearchCount)
	assert.Equal(t, int64(1), stats.SearchMatches)
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	idx := openTestIndex(t)

	require.NoError(t, idx.Index("m1", []string{"backup me"}))
	require.NoError(t, idx.Commit())

	store := blobstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, idx.Backup(ctx, store, "backups/daily"))

	restored := t.TempDir()
	require.NoError(t, Restore(ctx, store, "backups/daily", restored))

	idx2, err := Open(restored)
	require.NoError(t, err)
	defer idx2.Close()

	assert.True(t, idx2.Exists("m1"))
	ids, _, err := idx2.Search("backup", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, ids)
}
