package testutil

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/barracuda156/mailindex/tokenizer"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// wordPool is a fixed vocabulary for generated documents. Small enough
// that documents share terms and queries get multi-document matches.
var wordPool = []string{
	"meeting", "notes", "friday", "monday", "lunch", "invoice", "draft",
	"report", "project", "deadline", "review", "update", "schedule",
	"travel", "budget", "contract", "offer", "reply", "urgent", "weekly",
	"status", "release", "ticket", "server", "backup", "holiday",
	"agenda", "minutes", "summary", "attachment", "photo", "family",
}

// Document is a generated test document: an id plus field texts the way
// callers feed them to the index.
type Document struct {
	ID     string
	Fields []string
}

// GenerateCorpus produces num documents of wordsPerDoc words each, drawn
// from a fixed vocabulary. The same RNG seed always yields the same
// corpus. IDs are "doc-%05d".
func GenerateCorpus(rng *RNG, num, wordsPerDoc int) []Document {
	rng.mu.Lock()
	defer rng.mu.Unlock()

	docs := make([]Document, num)
	for i := range num {
		words := make([]string, wordsPerDoc)
		for j := range words {
			words[j] = wordPool[rng.rand.Intn(len(wordPool))]
		}
		// Split the words over subject-like and body-like fields.
		half := len(words) / 2
		docs[i] = Document{
			ID: fmt.Sprintf("doc-%05d", i),
			Fields: []string{
				strings.Join(words[:half], " "),
				strings.Join(words[half:], " "),
			},
		}
	}
	return docs
}

// ExactMatches computes the ground-truth match set for a free-text query
// by brute force: every document containing at least one query term, in
// ascending id order. Use it to verify the index's recall, not its
// ranking.
func ExactMatches(corpus []Document, query string) []string {
	queryTerms := make(map[string]struct{})
	for _, t := range tokenizer.Tokenize(query) {
		queryTerms[t] = struct{}{}
	}
	if len(queryTerms) == 0 {
		return nil
	}

	var ids []string
	for _, doc := range corpus {
		for _, term := range tokenizer.TokenizeFields(doc.Fields) {
			if _, ok := queryTerms[term]; ok {
				ids = append(ids, doc.ID)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// TermFrequency counts how often term occurs in the document's tokenized
// fields.
func TermFrequency(doc Document, term string) int {
	n := 0
	for _, t := range tokenizer.TokenizeFields(doc.Fields) {
		if t == term {
			n++
		}
	}
	return n
}
