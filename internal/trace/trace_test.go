package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/content"
	"github.com/weftlabs/weft/internal/resource"
	"github.com/weftlabs/weft/internal/value"
)

func sampleRecord(clock uint64) EffectRecord {
	return EffectRecord{
		EffectType:      content.Sum(content.DomainEffectType, []byte("weft/test")),
		EffectName:      "weft/test",
		InputResources:  []resource.ID{content.Sum(content.DomainResource, []byte("in"))},
		OutputResources: []resource.ID{content.Sum(content.DomainResource, []byte("out"))},
		Constraints:     []string{"balanced"},
		PrePC:           3,
		PostPC:          4,
		LogicalTime:     clock,
	}
}

func sampleTrace(t *testing.T) (*ExecutionTrace, content.Hash) {
	t.Helper()
	b := NewBuilder(content.Sum(content.DomainProgram, []byte("prog")))
	require.NoError(t, b.RecordEffect(sampleRecord(1)))
	require.NoError(t, b.RecordEffect(sampleRecord(2)))
	b.SetContext("host", value.Int(7))

	states := map[resource.ID]resource.State{
		content.Sum(content.DomainResource, []byte("in")):  resource.Consumed,
		content.Sum(content.DomainResource, []byte("out")): resource.Available,
	}
	return b.Finalize(Terminus{Kind: Halted}, "", value.Int(42), 99, states)
}

func TestEffectRecord_IDIncludesLogicalTime(t *testing.T) {
	a := sampleRecord(1)
	b := sampleRecord(2)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, a.ID(), sampleRecord(1).ID())
}

func TestBuilder_RejectsClockRegression(t *testing.T) {
	b := NewBuilder(content.Hash{})
	require.NoError(t, b.RecordEffect(sampleRecord(5)))

	err := b.RecordEffect(sampleRecord(5))
	assert.ErrorContains(t, err, "not after")

	err = b.RecordEffect(sampleRecord(3))
	assert.ErrorContains(t, err, "not after")
}

func TestFinalize_SealsTrace(t *testing.T) {
	tr, hash := sampleTrace(t)

	assert.False(t, hash.IsZero())
	assert.Equal(t, hash, tr.TraceHash)
	assert.Len(t, tr.ExecutedEffects, 2)
	assert.Len(t, tr.EffectDetails, 2)
	assert.Equal(t, value.Int(42), tr.Result)
	assert.Equal(t, uint64(99), tr.GasRemaining)

	// Ordered by logical time.
	first := tr.EffectDetails[tr.ExecutedEffects[0]]
	second := tr.EffectDetails[tr.ExecutedEffects[1]]
	assert.Less(t, first.LogicalTime, second.LogicalTime)
}

func TestEncode_Deterministic(t *testing.T) {
	a, hashA := sampleTrace(t)
	b, hashB := sampleTrace(t)

	assert.Equal(t, Encode(a), Encode(b))
	assert.Equal(t, hashA, hashB)
}

func TestDecode_RoundTrip(t *testing.T) {
	tr, hash := sampleTrace(t)

	decoded, err := Decode(Encode(tr))
	require.NoError(t, err)

	assert.Equal(t, hash, decoded.TraceHash)
	assert.Equal(t, tr.ProgramHash, decoded.ProgramHash)
	assert.Equal(t, tr.Terminus, decoded.Terminus)
	assert.Equal(t, tr.ExecutedEffects, decoded.ExecutedEffects)
	assert.Equal(t, tr.FinalResourceStates, decoded.FinalResourceStates)
	assert.True(t, value.Equal(tr.Result, decoded.Result))
	assert.Equal(t, tr.GasRemaining, decoded.GasRemaining)
	require.Len(t, decoded.EffectDetails, 2)
	for id, rec := range decoded.EffectDetails {
		assert.Equal(t, id, rec.ID())
	}
}

func TestDecode_RejectsCorruptedDetail(t *testing.T) {
	tr, _ := sampleTrace(t)
	b := Encode(tr)

	// Flip a byte inside the encoding; either structural decoding or the
	// detail ID consistency check must fail.
	b[len(b)/2] ^= 0xFF
	_, err := Decode(b)
	assert.Error(t, err)
}

func TestDecode_RejectsTrailingBytes(t *testing.T) {
	tr, _ := sampleTrace(t)
	b := append(Encode(tr), 0x00)
	_, err := Decode(b)
	assert.ErrorContains(t, err, "trailing")
}

func TestTerminus_String(t *testing.T) {
	assert.Equal(t, "halted", Terminus{Kind: Halted}.String())
	assert.Equal(t, "trapped(GAS_EXHAUSTED)", Terminus{Kind: Trapped, TrapKind: "GAS_EXHAUSTED"}.String())
	assert.Equal(t, "cancelled", Terminus{Kind: Cancelled}.String())
	assert.Equal(t, "suspended", Terminus{Kind: Suspended}.String())
}

func TestFinalize_EmptyTraceHasHash(t *testing.T) {
	b := NewBuilder(content.Hash{})
	tr, hash := b.Finalize(Terminus{Kind: Cancelled}, "", nil, 10, nil)

	assert.False(t, hash.IsZero())
	assert.Empty(t, tr.ExecutedEffects)
	assert.Nil(t, tr.Result)

	decoded, err := Decode(Encode(tr))
	require.NoError(t, err)
	assert.Equal(t, hash, decoded.TraceHash)
}
