package width

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor_Boundaries(t *testing.T) {
	tests := []struct {
		n    uint64
		want Width
	}{
		{0, W1},
		{1, W1},
		{255, W1},
		{256, W2},
		{65535, W2},
		{65536, W3},
		{1<<24 - 1, W3},
		{1 << 24, W4},
		{1<<32 - 1, W4},
		{1 << 32, W5},
		{1<<40 - 1, W5},
		{1 << 40, W6},
		{1<<48 - 1, W6},
		{1 << 48, W8},
		{math.MaxUint64, W8},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, For(tt.n), "For(%d)", tt.n)
	}
}

func TestFor_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	prev := For(0)
	var n uint64
	for range 10000 {
		n += uint64(rng.Int63n(1 << 40))
		w := For(n)
		require.GreaterOrEqual(t, w, prev, "For(%d)", n)
		require.True(t, w.Fits(n))
		prev = w
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	values := []uint64{0, 1, 255, 256, 65535, 65536, 1 << 40, math.MaxUint64}
	for range 1000 {
		values = append(values, rng.Uint64()>>uint(rng.Intn(64)))
	}
	for _, v := range values {
		w := For(v)
		buf := make([]byte, 8)
		require.NoError(t, Put(buf, w, v))
		require.Equal(t, v, Get(buf, w))

		var bb bytes.Buffer
		require.NoError(t, Write(&bb, w, v))
		require.Equal(t, w.Bytes(), bb.Len())
		got, err := Read(&bb, w)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestPut_OutOfSpace(t *testing.T) {
	buf := make([]byte, 8)
	err := Put(buf, W1, 256)
	require.ErrorIs(t, err, ErrOutOfSpace)

	err = Write(&bytes.Buffer{}, W2, 1<<16)
	require.ErrorIs(t, err, ErrOutOfSpace)
}

func TestCode_RoundTrip(t *testing.T) {
	for i, w := range All {
		require.True(t, w.Valid())
		require.Equal(t, uint8(i), w.Code())
		back, err := FromCode(w.Code())
		require.NoError(t, err)
		require.Equal(t, w, back)
	}
	_, err := FromCode(7)
	require.ErrorIs(t, err, ErrBadCode)
	require.False(t, Width(7).Valid())
}
