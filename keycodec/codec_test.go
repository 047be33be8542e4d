package keycodec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"int", Int},
		{"SERIAL", Int},
		{"float", Float},
		{"str", Text},
		{" Text ", Text},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := ParseKind(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, k)
		})
	}

	_, err := ParseKind("blob")
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestNew(t *testing.T) {
	c, err := New(Int, 99)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Width())

	c, err = New(Text, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTextWidth, c.Width())
	assert.Equal(t, "text(20)", c.String())

	_, err = New(Text, -1)
	assert.ErrorIs(t, err, ErrInvalidWidth)

	_, err = New(Kind(42), 0)
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		codec *Codec
		in    any
		want  any
	}{
		{"int", MustNew(Int, 0), 42, int32(42)},
		{"int negative", MustNew(Int, 0), int64(-7), int32(-7)},
		{"int min", MustNew(Int, 0), int32(math.MinInt32), int32(math.MinInt32)},
		{"int from uint8", MustNew(Int, 0), uint8(200), int32(200)},
		{"float", MustNew(Float, 0), 1.5, float32(1.5)},
		{"float from int", MustNew(Float, 0), 3, float32(3)},
		{"text", MustNew(Text, 8), "abc", "abc"},
		{"text full width", MustNew(Text, 3), "xyz", "xyz"},
		{"text bytes", MustNew(Text, 8), []byte("hi"), "hi"},
		{"text utf8", MustNew(Text, 8), "héllo", "héllo"},
		{"text empty", MustNew(Text, 4), "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.codec.Encode(tt.in)
			require.NoError(t, err)
			assert.Len(t, b, tt.codec.Width())
			assert.Equal(t, tt.want, tt.codec.Decode(b))

			n, err := tt.codec.Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestEncodeLayout(t *testing.T) {
	b, err := MustNew(Int, 0).Encode(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0}, b)

	b, err = MustNew(Float, 0).Encode(float32(1))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, b)

	b, err = MustNew(Text, 5).Encode("ab")
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 'b', 0, 0, 0}, b)
}

func TestEncodeErrors(t *testing.T) {
	_, err := MustNew(Int, 0).Encode("1")
	assert.ErrorIs(t, err, ErrKeyType)

	_, err = MustNew(Int, 0).Encode(int64(math.MaxInt32) + 1)
	assert.ErrorIs(t, err, ErrKeyRange)

	_, err = MustNew(Int, 0).Encode(uint64(1))
	assert.ErrorIs(t, err, ErrKeyType)

	_, err = MustNew(Float, 0).Encode(math.MaxFloat64)
	assert.ErrorIs(t, err, ErrKeyRange)

	_, err = MustNew(Float, 0).Encode(true)
	assert.ErrorIs(t, err, ErrKeyType)

	_, err = MustNew(Text, 3).Encode("abcd")
	assert.ErrorIs(t, err, ErrKeyTooLong)

	_, err = MustNew(Text, 3).Normalize("abcd")
	assert.ErrorIs(t, err, ErrKeyTooLong)

	_, err = MustNew(Text, 3).Encode(12)
	assert.ErrorIs(t, err, ErrKeyType)

	err = MustNew(Int, 0).EncodeTo(make([]byte, 2), 1)
	assert.Error(t, err)
}

func TestEncodeToClearsPadding(t *testing.T) {
	c := MustNew(Text, 6)
	dst := []byte("zzzzzz")
	require.NoError(t, c.EncodeTo(dst, "ab"))
	assert.Equal(t, []byte{'a', 'b', 0, 0, 0, 0}, dst)
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		c    *Codec
		a, b any
		want int
	}{
		{"int less", MustNew(Int, 0), -5, 3, -1},
		{"int greater", MustNew(Int, 0), 300, 3, 1},
		{"int mixed types", MustNew(Int, 0), int64(7), int8(7), 0},
		{"float less", MustNew(Float, 0), -0.5, 0.25, -1},
		{"float greater", MustNew(Float, 0), 10.0, 2.0, 1},
		{"float nan first", MustNew(Float, 0), math.NaN(), -math.MaxFloat32, -1},
		{"float nan equal", MustNew(Float, 0), math.NaN(), math.NaN(), 0},
		{"float signed zero", MustNew(Float, 0), math.Copysign(0, -1), 0.0, 0},
		{"text prefix", MustNew(Text, 8), "ab", "abc", -1},
		{"text bytewise", MustNew(Text, 8), "Zebra", "apple", -1},
		{"text greater", MustNew(Text, 8), "b", "abcdefgh", 1},
		{"text bytes", MustNew(Text, 8), "ab", []byte("ab"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.c.Compare(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("invalid operand", func(t *testing.T) {
		_, err := MustNew(Int, 0).Compare("seven", 7)
		assert.ErrorIs(t, err, ErrKeyType)

		_, err = MustNew(Int, 0).Compare(7, int64(math.MaxInt64))
		assert.ErrorIs(t, err, ErrKeyRange)

		_, err = MustNew(Text, 2).Compare("ab", "abc")
		assert.ErrorIs(t, err, ErrKeyTooLong)
	})
}

func TestFloatEncodingIsCanonical(t *testing.T) {
	c := MustNew(Float, 0)

	zero, err := c.Encode(0.0)
	require.NoError(t, err)
	negZero, err := c.Encode(math.Copysign(0, -1))
	require.NoError(t, err)
	assert.Equal(t, zero, negZero)
	assert.Equal(t, []byte{0, 0, 0, 0}, negZero)

	nan, err := c.Encode(math.NaN())
	require.NoError(t, err)
	other, err := c.Encode(math.Float32frombits(0xffc00123))
	require.NoError(t, err)
	assert.Equal(t, nan, other)
	assert.True(t, math.IsNaN(float64(c.Decode(nan).(float32))))
}

func TestCompareEncodedMatchesNumericOrder(t *testing.T) {
	c := MustNew(Int, 0)
	values := []int{math.MinInt32, -1000, -1, 0, 1, 255, 256, 1 << 20, math.MaxInt32}
	for i := 0; i+1 < len(values); i++ {
		a, err := c.Encode(values[i])
		require.NoError(t, err)
		b, err := c.Encode(values[i+1])
		require.NoError(t, err)
		assert.Equal(t, -1, c.CompareEncoded(a, b), "%d < %d", values[i], values[i+1])
		assert.Equal(t, 1, c.CompareEncoded(b, a))
		assert.Equal(t, 0, c.CompareEncoded(a, a))
	}
}

func TestFormat(t *testing.T) {
	b, _ := MustNew(Text, 4).Encode("ab")
	assert.Equal(t, `"ab"`, MustNew(Text, 4).Format(b))

	b, _ = MustNew(Int, 0).Encode(-3)
	assert.Equal(t, "-3", MustNew(Int, 0).Format(b))
}
