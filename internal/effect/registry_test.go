package effect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/content"
	"github.com/weftlabs/weft/internal/value"
)

func noopHandler(Call) Outcome {
	return Complete{}
}

func TestTypeIDFor_Stable(t *testing.T) {
	a := TypeIDFor("weft/test")
	b := TypeIDFor("weft/test")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, TypeIDFor("weft/other"))
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	spec := Spec{Name: "weft/test", Inputs: []value.Kind{value.KindInt}, Outputs: []value.Kind{value.KindUnit}, GasCost: 3}

	id, err := reg.Register(spec, noopHandler)
	require.NoError(t, err)
	assert.Equal(t, TypeIDFor("weft/test"), id)

	got, fn, ok := reg.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, spec, got)
	assert.NotNil(t, fn)
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Register(Spec{Name: "weft/test"}, noopHandler)
	require.NoError(t, err)

	_, err = reg.Register(Spec{Name: "weft/test"}, noopHandler)
	assert.ErrorContains(t, err, "already registered")
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Register(Spec{}, noopHandler)
	assert.ErrorContains(t, err, "name is required")

	_, err = reg.Register(Spec{Name: "weft/test"}, nil)
	assert.ErrorContains(t, err, "nil handler")
}

func TestRegistry_LookupUnknown(t *testing.T) {
	reg := NewRegistry()
	_, _, ok := reg.Lookup(content.Sum(content.DomainEffectType, []byte("missing")))
	assert.False(t, ok)
}

func TestRegistry_NamesSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"weft/c", "weft/a", "weft/b"} {
		_, err := reg.Register(Spec{Name: name}, noopHandler)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"weft/a", "weft/b", "weft/c"}, reg.Names())
}

func TestValidateValues(t *testing.T) {
	schema := []value.Kind{value.KindInt, value.KindAny}

	err := ValidateValues(schema, []value.Value{value.Int(1), value.Bool(true)}, "input")
	assert.NoError(t, err)

	err = ValidateValues(schema, []value.Value{value.Int(1)}, "input")
	assert.ErrorContains(t, err, "arity mismatch")

	err = ValidateValues(schema, []value.Value{value.Bool(true), value.Int(1)}, "input")
	assert.ErrorContains(t, err, "declared int, got bool")

	err = ValidateValues(schema, []value.Value{value.Int(1), nil}, "input")
	assert.ErrorContains(t, err, "got unbound")
}

func TestRegisterBuiltins(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg))
	assert.Equal(t, []string{NameBurn, NameEmit, NameMint}, reg.Names())

	// Mint rejects negative amounts.
	_, fn, ok := reg.Lookup(TypeIDFor(NameMint))
	require.True(t, ok)
	out := fn(Call{Args: []value.Value{value.Int(-1)}})
	rej, isRej := out.(Rejected)
	require.True(t, isRej)
	assert.Contains(t, rej.Reason, "non-negative")

	// Mint completes with a resource ref matching its delta.
	out = fn(Call{Args: []value.Value{value.Int(5)}, LogicalTime: 2})
	comp, isComp := out.(Complete)
	require.True(t, isComp)
	require.Len(t, comp.Results, 1)
	require.Len(t, comp.Delta.Created, 1)
	ref := comp.Results[0].(value.ResourceRef)
	assert.Equal(t, comp.Delta.Created[0].ComputeID(), ref.ID)
}
