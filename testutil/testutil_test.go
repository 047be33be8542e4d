package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUniqueInts(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UniqueInts(100, 150)
	assert.Len(t, v, 100)

	seen := map[int]bool{}
	for _, x := range v {
		assert.False(t, seen[x], "duplicate %d", x)
		assert.GreaterOrEqual(t, x, 0)
		assert.Less(t, x, 150)
		seen[x] = true
	}

	assert.Panics(t, func() { rng.UniqueInts(3, 2) })
}

func TestReset(t *testing.T) {
	rng := NewRNG(1)
	a := rng.Perm(20)
	rng.Reset()
	assert.Equal(t, a, rng.Perm(20))
	assert.Equal(t, int64(1), rng.Seed())
}

func TestWords(t *testing.T) {
	rng := NewRNG(4711)
	for _, w := range rng.Words(50, 8) {
		assert.NotEmpty(t, w)
		assert.LessOrEqual(t, len(w), 8)
	}
}

func TestOps(t *testing.T) {
	rng := NewRNG(4711)
	keys := rng.UniqueInts(200, 10_000)
	ops := rng.Ops(keys, 0.5)

	live := map[int]bool{}
	inserts := 0
	for _, op := range ops {
		if op.Delete {
			assert.True(t, live[op.Key], "delete of a key that is not live")
			delete(live, op.Key)
			continue
		}
		assert.False(t, live[op.Key])
		live[op.Key] = true
		inserts++
	}
	assert.Equal(t, len(keys), inserts)
}

func TestShuffle(t *testing.T) {
	rng := NewRNG(4711)
	s := []int{1, 2, 3, 4, 5, 6, 7, 8}
	Shuffle(rng, s)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, s)
}
