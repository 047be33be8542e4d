// Package testutil provides testing utilities for the index engines.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe RNG and helpers for generating key
// sequences and mixed insert/delete workloads.
//
// # Key Sequences
//
//	rng := testutil.NewRNG(seed)
//	keys := rng.UniqueInts(1000, 1_000_000) // distinct ints in [0, max)
//	words := rng.Words(100, 12)             // random lowercase strings
//
// # Workloads
//
//	for _, op := range rng.Ops(keys, 0.3) {
//		if op.Delete { ... } else { ... }
//	}
package testutil
