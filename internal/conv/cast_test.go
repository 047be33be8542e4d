package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInt64ToInt32(t *testing.T) {
	tests := []struct {
		in      int64
		want    int32
		wantErr bool
	}{
		{0, 0, false},
		{-1, -1, false},
		{math.MaxInt32, math.MaxInt32, false},
		{math.MinInt32, math.MinInt32, false},
		{math.MaxInt32 + 1, 0, true},
		{math.MinInt32 - 1, 0, true},
	}
	for _, tt := range tests {
		got, err := Int64ToInt32(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %d", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestUnsignedConversions(t *testing.T) {
	_, err := Int64ToUint64(-5)
	assert.Error(t, err)

	u, err := Int64ToUint64(42)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), u)

	_, err = Uint64ToInt64(math.MaxUint64)
	assert.Error(t, err)

	i, err := Uint64ToInt(7)
	require.NoError(t, err)
	assert.Equal(t, 7, i)
}
