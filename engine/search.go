package engine

import (
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/barracuda156/mailindex/postings"
	"github.com/barracuda156/mailindex/tokenizer"
)

// BM25 parameters. Fixed so rankings are reproducible across runs.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// SearchResult is one page of a ranked search.
type SearchResult struct {
	// IDs are the document ids of the page, ranked by descending score
	// with ascending id as the tie break.
	IDs []string

	// Total is the number of matching documents in the snapshot.
	Total int

	// HasMore reports whether matches exist beyond the requested page.
	HasMore bool
}

type scoredDoc struct {
	id    string
	score float64
}

// Search tokenizes query with the index-time tokenizer and returns the page
// [offset, offset+max) of matches ranked by BM25. A document matches when it
// contains at least one query term. An empty or unparseable query matches
// nothing.
//
// Ranking is deterministic for a fixed snapshot: equal scores order by
// ascending document id, so repeated paginated calls neither duplicate nor
// drop results.
func (s *Snapshot) Search(query string, offset, max int) (SearchResult, error) {
	if offset < 0 {
		offset = 0
	}

	terms := uniqueTerms(tokenizer.Tokenize(query))
	if len(terms) == 0 || len(s.docs) == 0 {
		return SearchResult{}, nil
	}

	// Candidates are the union of the query terms' posting bitmaps; only
	// matching documents are materialized and scored.
	matched := make([]*postings.List, 0, len(terms))
	candidates := roaring.New()
	for _, term := range terms {
		list, ok := s.postings[term]
		if !ok {
			continue
		}
		matched = append(matched, list)
		list.OrInto(candidates)
	}
	if candidates.IsEmpty() {
		return SearchResult{}, nil
	}

	avgLen := float64(s.totalTerms) / float64(len(s.docs))
	if avgLen <= 0 {
		avgLen = 1
	}

	idf := make([]float64, len(matched))
	for i, list := range matched {
		n := float64(list.Len())
		idf[i] = math.Log(1 + (float64(len(s.docs))-n+0.5)/(n+0.5))
	}

	scored := make([]scoredDoc, 0, candidates.GetCardinality())
	it := candidates.Iterator()
	for it.HasNext() {
		local := it.Next()
		rec := s.docs[local]

		var score float64
		norm := bm25K1 * (1 - bm25B + bm25B*float64(rec.Length)/avgLen)
		for i, list := range matched {
			tf := float64(list.Count(local))
			if tf == 0 {
				continue
			}
			score += idf[i] * tf * (bm25K1 + 1) / (tf + norm)
		}
		scored = append(scored, scoredDoc{id: rec.DocID, score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].id < scored[j].id
	})

	total := len(scored)
	if offset >= total {
		return SearchResult{Total: total}, nil
	}
	end := offset + max
	if end > total {
		end = total
	}
	if end < offset {
		end = offset
	}

	ids := make([]string, 0, end-offset)
	for _, d := range scored[offset:end] {
		ids = append(ids, d.id)
	}

	return SearchResult{
		IDs:     ids,
		Total:   total,
		HasMore: total > end,
	}, nil
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
