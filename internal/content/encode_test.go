package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoder_PrimitivesRoundTrip(t *testing.T) {
	e := NewEncoder()
	e.Tag(0x07)
	e.Bool(true)
	e.U32(42)
	e.U64(1 << 40)
	e.I64(-9)
	e.U128(7, 3)
	e.String("hello")

	d := NewDecoder(e.Bytes())

	tag, err := d.Tag()
	require.NoError(t, err)
	assert.Equal(t, byte(0x07), tag)

	b, err := d.Bool()
	require.NoError(t, err)
	assert.True(t, b)

	u32, err := d.U32()
	require.NoError(t, err)
	assert.Equal(t, uint32(42), u32)

	u64, err := d.U64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), u64)

	i64, err := d.I64()
	require.NoError(t, err)
	assert.Equal(t, int64(-9), i64)

	lo, hi, err := d.U128()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), lo)
	assert.Equal(t, uint64(3), hi)

	s, err := d.String()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	assert.True(t, d.Done())
}

func TestEncoder_StringMapSortedOrder(t *testing.T) {
	// Two maps with different insertion order must encode identically.
	a := NewEncoder()
	a.StringMap(map[string]string{"b": "2", "a": "1", "c": "3"})

	b := NewEncoder()
	b.StringMap(map[string]string{"c": "3", "a": "1", "b": "2"})

	assert.Equal(t, a.Bytes(), b.Bytes())

	d := NewDecoder(a.Bytes())
	m, err := d.StringMap()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "c": "3"}, m)
	assert.True(t, d.Done())
}

func TestDecoder_StringMapRejectsUnsortedKeys(t *testing.T) {
	e := NewEncoder()
	e.U32(2)
	e.String("b")
	e.String("1")
	e.String("a")
	e.String("2")

	d := NewDecoder(e.Bytes())
	_, err := d.StringMap()
	assert.ErrorContains(t, err, "canonical order")
}

func TestEncoder_StringNFCNormalization(t *testing.T) {
	// U+00E9 (precomposed) and U+0065 U+0301 (combining) are the same
	// character in NFC; both forms must encode identically.
	precomposed := "caf\u00e9"
	combining := "cafe\u0301"
	a := NewEncoder()
	a.String(precomposed)

	b := NewEncoder()
	b.String(combining)

	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestDecoder_Truncated(t *testing.T) {
	e := NewEncoder()
	e.U64(99)

	d := NewDecoder(e.Bytes()[:4])
	_, err := d.U64()
	assert.Error(t, err)
}

func TestDecoder_RejectsInvalidBool(t *testing.T) {
	d := NewDecoder([]byte{0x02})
	_, err := d.Bool()
	assert.ErrorContains(t, err, "invalid bool")
}

func TestEncoder_Bytes32RoundTrip(t *testing.T) {
	h := Sum(DomainValue, []byte("id"))
	e := NewEncoder()
	e.Bytes32(h)

	d := NewDecoder(e.Bytes())
	got, err := d.Bytes32()
	require.NoError(t, err)
	assert.Equal(t, h, got)
}
