// Package tokenizer normalizes message text into indexable terms.
//
// The same normalization runs at index time and query time; a term produced
// on one side always matches itself on the other. Rules: Unicode lowercase
// fold, split on any rune that is not a letter or digit, drop empty tokens
// and tokens longer than MaxTermBytes (oversized encoded fragments common in
// mail bodies are useless as search terms). No stemming, no stopword removal.
package tokenizer

import (
	"strings"
	"unicode"
)

// MaxTermBytes is the upper bound on an indexable term's encoded length.
const MaxTermBytes = 64

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}

// Tokenize splits a single string into normalized terms, preserving
// duplicates (the multiset is what term-frequency ranking consumes).
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	folded := strings.ToLower(text)
	fields := strings.FieldsFunc(folded, isSeparator)

	terms := fields[:0]
	for _, tok := range fields {
		if len(tok) > MaxTermBytes {
			continue
		}
		terms = append(terms, tok)
	}
	return terms
}

// TokenizeFields tokenizes each field of a document and returns the combined
// term multiset.
func TokenizeFields(fields []string) []string {
	var terms []string
	for _, f := range fields {
		terms = append(terms, Tokenize(f)...)
	}
	return terms
}

// TermCounts folds a term multiset into term -> occurrence count.
func TermCounts(terms []string) map[string]uint32 {
	if len(terms) == 0 {
		return nil
	}
	counts := make(map[string]uint32, len(terms))
	for _, t := range terms {
		counts[t]++
	}
	return counts
}
