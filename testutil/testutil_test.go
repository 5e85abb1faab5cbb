package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateCorpusIsDeterministic(t *testing.T) {
	a := GenerateCorpus(NewRNG(4711), 50, 12)
	b := GenerateCorpus(NewRNG(4711), 50, 12)

	assert.Equal(t, a, b)
	assert.Len(t, a, 50)
	assert.Equal(t, "doc-00000", a[0].ID)
	assert.Len(t, a[0].Fields, 2)
}

func TestGenerateCorpusVariesWithSeed(t *testing.T) {
	a := GenerateCorpus(NewRNG(1), 20, 12)
	b := GenerateCorpus(NewRNG(2), 20, 12)

	assert.NotEqual(t, a, b)
}

func TestExactMatches(t *testing.T) {
	corpus := []Document{
		{ID: "m1", Fields: []string{"meeting notes", "see you friday"}},
		{ID: "m2", Fields: []string{"lunch", "friday works"}},
		{ID: "m3", Fields: []string{"invoice draft", ""}},
	}

	assert.Equal(t, []string{"m1", "m2"}, ExactMatches(corpus, "friday"))
	assert.Equal(t, []string{"m1", "m2", "m3"}, ExactMatches(corpus, "friday invoice"))
	assert.Empty(t, ExactMatches(corpus, "nothing-here"))
	assert.Empty(t, ExactMatches(corpus, "  ...  "))
}

func TestTermFrequency(t *testing.T) {
	doc := Document{ID: "m1", Fields: []string{"apple apple", "banana Apple"}}

	assert.Equal(t, 3, TermFrequency(doc, "apple"))
	assert.Equal(t, 1, TermFrequency(doc, "banana"))
	assert.Equal(t, 0, TermFrequency(doc, "cherry"))
}
