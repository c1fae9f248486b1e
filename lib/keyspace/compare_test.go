package keyspace

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

func TestCompareBytes(t *testing.T) {
	tests := map[string]struct {
		a, b []byte
		want int
	}{
		"equal":                {[]byte("abc"), []byte("abc"), 0},
		"both empty":           {[]byte{}, nil, 0},
		"prefix is smaller":    {[]byte("ab"), []byte("abc"), -1},
		"longer is greater":    {[]byte("abc"), []byte("ab"), 1},
		"empty before all":     {nil, []byte{0x00}, -1},
		"unsigned high byte":   {[]byte{0x7f}, []byte{0x80}, -1},
		"unsigned 0xff last":   {[]byte{0xff}, []byte{0x01, 0x00}, 1},
		"first difference":     {[]byte("abd"), []byte("abcz"), 1},
		"zero byte vs nothing": {[]byte{0x01, 0x00}, []byte{0x01}, 1},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, sign(CompareBytes(tc.a, tc.b)))
		})
	}
}

func TestCompareProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	randomKey := func() []byte {
		b := make([]byte, rng.Intn(6))
		rng.Read(b)
		return b
	}

	for i := 0; i < 2000; i++ {
		a, b := randomKey(), randomKey()

		ab, err := Compare(Key(a), Key(b))
		require.NoError(t, err)
		ba, err := Compare(Key(b), Key(a))
		require.NoError(t, err)
		assert.Equal(t, sign(ab), -sign(ba), "antisymmetry for %x %x", a, b)

		aa, err := Compare(Key(a), Key(a))
		require.NoError(t, err)
		assert.Zero(t, aa)

		ext := append(append([]byte{}, a...), byte(rng.Intn(256)))
		pre, err := Compare(Key(a), Key(ext))
		require.NoError(t, err)
		assert.Negative(t, pre, "prefix %x of %x", a, ext)
	}
}

func TestCompareMixedRepresentations(t *testing.T) {
	frame := []byte("xxhelloyy")
	view := NewSlice(frame, 2, 5)

	c, err := Compare(view, Key("hello"))
	require.NoError(t, err)
	assert.Zero(t, c)

	c, err = Compare(Key("help"), view)
	require.NoError(t, err)
	assert.Positive(t, c)

	c, err = Compare(&view, Key("hello!"))
	require.NoError(t, err)
	assert.Negative(t, c)
}

func TestCompareNilOperand(t *testing.T) {
	var nilSlice *Slice

	_, err := Compare(nil, Key("a"))
	assert.ErrorIs(t, err, ErrNilOperand)

	_, err = Compare(Key("a"), nil)
	assert.ErrorIs(t, err, ErrNilOperand)

	_, err = Compare(Key("a"), nilSlice)
	assert.ErrorIs(t, err, ErrNilOperand)

	_, err = Compare(Key(nil), Key("a"))
	assert.ErrorIs(t, err, ErrNilOperand)

	_, err = Compare(Key("a"), Key(nil))
	assert.ErrorIs(t, err, ErrNilOperand)

	// the empty key is a value and sorts first
	c, err := Compare(Key{}, Key("a"))
	require.NoError(t, err)
	assert.Negative(t, c)
}

func TestSlice(t *testing.T) {
	buf := []byte("0123456789")

	s := NewSlice(buf, 8, 10)
	assert.Equal(t, []byte("89"), s.Bytes())
	assert.Equal(t, 2, s.Len())

	owned := s.Clone()
	buf[8] = 'X'
	assert.Equal(t, Key("89"), owned)
	assert.Equal(t, []byte("X9"), s.Bytes())
}

func TestRange(t *testing.T) {
	r := Range{Start: []byte("b"), End: []byte("d")}
	assert.False(t, r.Contains([]byte("a")))
	assert.True(t, r.Contains([]byte("b")))
	assert.True(t, r.Contains([]byte("c\xff")))
	assert.False(t, r.Contains([]byte("d")))

	open := Range{Start: []byte("b")}
	assert.True(t, open.Contains([]byte("zzz")))
	assert.True(t, open.ContainsRange(r))
	assert.False(t, r.ContainsRange(open))
	assert.True(t, r.ContainsRange(Range{Start: []byte("bb"), End: []byte("d")}))
	assert.Equal(t, `["b", "d")`, r.String())
}
