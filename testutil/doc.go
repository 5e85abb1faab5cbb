// Package testutil provides testing utilities for mailindex.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating deterministic document corpora and
// computing exact ground-truth match sets to verify ranked search.
//
// # Deterministic Corpora
//
//	rng := testutil.NewRNG(4711)
//	corpus := testutil.GenerateCorpus(rng, 1000, 20)
//
// # Ground Truth
//
//	ids := testutil.ExactMatches(corpus, "friday meeting")
package testutil
