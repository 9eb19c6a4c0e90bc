package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum_Deterministic(t *testing.T) {
	a := Sum(DomainValue, []byte("hello"))
	b := Sum(DomainValue, []byte("hello"))
	assert.Equal(t, a, b)
	assert.False(t, a.IsZero())
}

func TestSum_DomainSeparation(t *testing.T) {
	// Same payload under different domains must produce different hashes.
	a := Sum(DomainValue, []byte("payload"))
	b := Sum(DomainResource, []byte("payload"))
	assert.NotEqual(t, a, b)
}

func TestSum_NullSeparatorPreventsBoundaryAmbiguity(t *testing.T) {
	// Without the null separator, domain "ab" + data "c" would collide
	// with domain "a" + data "bc".
	a := Sum("ab", []byte("c"))
	b := Sum("a", []byte("bc"))
	assert.NotEqual(t, a, b)
}

func TestHash_StringRoundTrip(t *testing.T) {
	h := Sum(DomainTrace, []byte("trace"))
	s := h.String()
	assert.Len(t, s, 64)
	assert.Equal(t, strings.ToLower(s), s)

	parsed, err := ParseHash(s)
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestParseHash_RejectsBadInput(t *testing.T) {
	_, err := ParseHash("not-hex")
	assert.Error(t, err)

	_, err = ParseHash("abcd")
	assert.Error(t, err)
}

func TestHash_Compare(t *testing.T) {
	var a, b Hash
	a[0] = 0x01
	b[0] = 0x02
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestHash_Short(t *testing.T) {
	h := Sum(DomainValue, []byte("x"))
	assert.Len(t, h.Short(), 8)
	assert.True(t, strings.HasPrefix(h.String(), h.Short()))
}
