package engine

import (
	"slices"
	"testing"

	"github.com/barracuda156/mailindex/tokenizer"
)

func openTestEngine(t *testing.T, dir string, optFns ...func(o *Options)) *Engine {
	t.Helper()

	fns := append([]func(o *Options){func(o *Options) {
		o.Path = dir
		o.AutoCheckpoint = false
	}}, optFns...)

	e, err := Open(fns...)
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	return e
}

func stageDoc(t *testing.T, e *Engine, docID string, fields ...string) {
	t.Helper()
	terms := tokenizer.TermCounts(tokenizer.TokenizeFields(fields))
	if err := e.StageReplace(docID, terms); err != nil {
		t.Fatalf("stage %s: %v", docID, err)
	}
}

func searchIDs(t *testing.T, s *Snapshot, query string, offset, max int) ([]string, bool) {
	t.Helper()
	res, err := s.Search(query, offset, max)
	if err != nil {
		t.Fatalf("search %q: %v", query, err)
	}
	return res.IDs, res.HasMore
}

func TestIndexCommitSearch(t *testing.T) {
	e := openTestEngine(t, t.TempDir())
	defer e.Close()

	stageDoc(t, e, "m1", "hello world")
	if err := e.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	snap := e.Snapshot()
	ids, hasMore := searchIDs(t, snap, "hello", 0, 10)
	if !slices.Equal(ids, []string{"m1"}) || hasMore {
		t.Fatalf("expected ([m1], false), got (%v, %v)", ids, hasMore)
	}

	stageDoc(t, e, "m2", "hello there")
	if err := e.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	snap = e.Snapshot()
	first, hasMore := searchIDs(t, snap, "hello", 0, 1)
	if len(first) != 1 || !hasMore {
		t.Fatalf("expected one result with more remaining, got (%v, %v)", first, hasMore)
	}
	second, hasMore := searchIDs(t, snap, "hello", 1, 1)
	if len(second) != 1 || hasMore {
		t.Fatalf("expected final result, got (%v, %v)", second, hasMore)
	}
	if first[0] == second[0] {
		t.Fatalf("pages overlap: %v vs %v", first, second)
	}
}

func TestExistsAndList(t *testing.T) {
	e := openTestEngine(t, t.TempDir())
	defer e.Close()

	for _, id := range []string{"b", "a", "c"} {
		stageDoc(t, e, id, "some text")
	}
	if err := e.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	snap := e.Snapshot()
	for _, id := range []string{"a", "b", "c"} {
		if !snap.Exists(id) {
			t.Fatalf("expected %s to exist", id)
		}
	}
	if snap.Exists("d") {
		t.Fatal("expected d to not exist")
	}

	if got := snap.List(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("expected lexical listing, got %v", got)
	}
	if snap.Len() != 3 {
		t.Fatalf("expected 3 docs, got %d", snap.Len())
	}
}

func TestReindexReplacesTerms(t *testing.T) {
	e := openTestEngine(t, t.TempDir())
	defer e.Close()

	stageDoc(t, e, "m1", "alpha beta")
	if err := e.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	stageDoc(t, e, "m1", "gamma delta")
	if err := e.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	snap := e.Snapshot()
	if ids, _ := searchIDs(t, snap, "alpha", 0, 10); len(ids) != 0 {
		t.Fatalf("old terms still match: %v", ids)
	}
	if ids, _ := searchIDs(t, snap, "gamma", 0, 10); !slices.Equal(ids, []string{"m1"}) {
		t.Fatalf("new terms do not match: %v", ids)
	}
	if snap.Len() != 1 {
		t.Fatalf("expected 1 doc, got %d", snap.Len())
	}
}

func TestRemoveIsBufferedUntilCommit(t *testing.T) {
	e := openTestEngine(t, t.TempDir())
	defer e.Close()

	stageDoc(t, e, "m1", "hello")
	if err := e.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if err := e.StageDelete("m1"); err != nil {
		t.Fatalf("stage delete: %v", err)
	}
	if !e.Snapshot().Exists("m1") {
		t.Fatal("uncommitted remove must not be visible")
	}

	if err := e.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if e.Snapshot().Exists("m1") {
		t.Fatal("committed remove must be visible")
	}
}

func TestRemoveMissingIsNoop(t *testing.T) {
	e := openTestEngine(t, t.TempDir())
	defer e.Close()

	if err := e.StageDelete("ghost"); err != nil {
		t.Fatalf("stage delete: %v", err)
	}
	if err := e.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if e.Snapshot().Len() != 0 {
		t.Fatalf("expected empty index, got %d docs", e.Snapshot().Len())
	}
}

func TestEmptyCommitIsNoop(t *testing.T) {
	e := openTestEngine(t, t.TempDir())
	defer e.Close()

	before := e.Snapshot().Revision()
	if err := e.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := e.Snapshot().Revision(); got != before {
		t.Fatalf("empty commit advanced revision %d -> %d", before, got)
	}
}

func TestRollbackDiscardsStaged(t *testing.T) {
	e := openTestEngine(t, t.TempDir())
	defer e.Close()

	stageDoc(t, e, "m1", "hello")
	if e.PendingOps() != 1 {
		t.Fatalf("expected 1 pending op, got %d", e.PendingOps())
	}

	e.Rollback()
	if e.PendingOps() != 0 {
		t.Fatalf("expected no pending ops, got %d", e.PendingOps())
	}
	if err := e.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if e.Snapshot().Exists("m1") {
		t.Fatal("rolled-back op was committed")
	}
}

func TestEmptyQueryMatchesNothing(t *testing.T) {
	e := openTestEngine(t, t.TempDir())
	defer e.Close()

	stageDoc(t, e, "m1", "hello")
	if err := e.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	snap := e.Snapshot()
	for _, q := range []string{"", "  ", "...,,,"} {
		if ids, hasMore := searchIDs(t, snap, q, 0, 10); len(ids) != 0 || hasMore {
			t.Fatalf("query %q: expected empty result, got (%v, %v)", q, ids, hasMore)
		}
	}
}

func TestPaginationIsStable(t *testing.T) {
	e := openTestEngine(t, t.TempDir())
	defer e.Close()

	// Vary term frequency so scores differ, and include score ties.
	docs := map[string]string{
		"m01": "apple apple apple banana",
		"m02": "apple apple cherry",
		"m03": "apple date",
		"m04": "apple date",
		"m05": "apple elderberry fig",
		"m06": "apple apple apple apple",
		"m07": "apple grape",
	}
	for id, text := range docs {
		stageDoc(t, e, id, text)
	}
	if err := e.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	snap := e.Snapshot()
	full, hasMore := searchIDs(t, snap, "apple", 0, len(docs))
	if len(full) != len(docs) || hasMore {
		t.Fatalf("expected all %d matches, got (%v, %v)", len(docs), full, hasMore)
	}

	// Concatenated pages must reproduce the full ranked list exactly.
	const pageSize = 2
	var paged []string
	for offset := 0; ; offset += pageSize {
		ids, more := searchIDs(t, snap, "apple", offset, pageSize)
		paged = append(paged, ids...)
		if !more {
			break
		}
	}
	if !slices.Equal(paged, full) {
		t.Fatalf("paged %v != full %v", paged, full)
	}

	// hasMore boundaries.
	res, err := snap.Search("apple", len(docs), 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.IDs) != 0 || res.HasMore {
		t.Fatalf("expected empty page past the end, got (%v, %v)", res.IDs, res.HasMore)
	}
}

func TestTieBreakIsDocIDOrder(t *testing.T) {
	e := openTestEngine(t, t.TempDir())
	defer e.Close()

	// Identical content yields identical scores.
	for _, id := range []string{"m3", "m1", "m2"} {
		stageDoc(t, e, id, "same words here")
	}
	if err := e.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	ids, _ := searchIDs(t, e.Snapshot(), "same", 0, 10)
	if !slices.Equal(ids, []string{"m1", "m2", "m3"}) {
		t.Fatalf("expected tie break by doc id, got %v", ids)
	}
}

func TestOrSemantics(t *testing.T) {
	e := openTestEngine(t, t.TempDir())
	defer e.Close()

	stageDoc(t, e, "m1", "alpha")
	stageDoc(t, e, "m2", "beta")
	stageDoc(t, e, "m3", "gamma")
	if err := e.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	ids, _ := searchIDs(t, e.Snapshot(), "alpha beta", 0, 10)
	slices.Sort(ids)
	if !slices.Equal(ids, []string{"m1", "m2"}) {
		t.Fatalf("expected OR match of m1 and m2, got %v", ids)
	}
}

func TestSecondOpenIsLocked(t *testing.T) {
	dir := t.TempDir()
	e := openTestEngine(t, dir)
	defer e.Close()

	if _, err := Open(func(o *Options) { o.Path = dir }); err == nil {
		t.Fatal("expected second open on the same directory to fail")
	}
}
