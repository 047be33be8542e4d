package testutil

import (
	"math/rand"
	"sync"
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
	r.rand = rand.New(rand.NewSource(r.seed))
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

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Perm returns a random permutation of [0,n).
func (r *RNG) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Perm(n)
}

// Shuffle shuffles s in place.
func Shuffle[T any](r *RNG, s []T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
}

// UniqueInts returns n distinct ints in [0, limit) in random order.
// It panics if n > limit.
func (r *RNG) UniqueInts(n, limit int) []int {
	if n > limit {
		panic("testutil: n exceeds limit")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[int]struct{}, n)
	out := make([]int, 0, n)
	for len(out) < n {
		v := r.rand.Intn(limit)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Words returns n random lowercase strings of length 1..maxLen.
func (r *RNG) Words(n, maxLen int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, n)
	for i := range out {
		b := make([]byte, 1+r.rand.Intn(maxLen))
		for j := range b {
			b[j] = byte('a' + r.rand.Intn(26))
		}
		out[i] = string(b)
	}
	return out
}

// Op is one step of a generated workload.
type Op struct {
	Key    int
	Delete bool
}

// Ops interleaves inserts of every key with deletes of previously inserted
// keys. deleteRatio is the probability that a delete follows an insert.
// Each key is inserted exactly once and deleted at most once.
func (r *RNG) Ops(keys []int, deleteRatio float64) []Op {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := make([]Op, 0, len(keys)*2)
	live := make([]int, 0, len(keys))
	for _, k := range keys {
		ops = append(ops, Op{Key: k})
		live = append(live, k)
		if r.rand.Float64() < deleteRatio {
			i := r.rand.Intn(len(live))
			ops = append(ops, Op{Key: live[i], Delete: true})
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
		}
	}
	return ops
}
