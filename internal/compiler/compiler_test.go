package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/effect"
	"github.com/weftlabs/weft/internal/kernel"
	"github.com/weftlabs/weft/internal/resource"
	"github.com/weftlabs/weft/internal/value"
)

const addProgram = `
program: {
	name: "add"
	gas:  200

	registers: {
		"0": {int: 40}
	}

	instructions: [
		{op: "const", dst: 1, value: {int: 2}},
		{op: "add", dst: 2, a: 0, b: 1},
		{op: "halt", result: 2},
	]
}
`

func TestCompile_Arithmetic(t *testing.T) {
	c, err := Compile(addProgram, "add.cue")
	require.NoError(t, err)

	assert.Equal(t, "add", c.Name)
	assert.Equal(t, uint64(200), c.Gas)
	assert.Equal(t, uint32(kernel.DefaultMaxDepth), c.MaxDepth)
	assert.Equal(t, 3, c.Program.Len())
	assert.Equal(t, value.Int(40), c.Initial[0])
	assert.False(t, c.Program.Hash().IsZero())
}

func TestCompile_Deterministic(t *testing.T) {
	a, err := Compile(addProgram, "add.cue")
	require.NoError(t, err)
	b, err := Compile(addProgram, "add.cue")
	require.NoError(t, err)
	assert.Equal(t, a.Program.Hash(), b.Program.Hash())
}

func TestCompile_AllInstructions(t *testing.T) {
	src := `
program: {
	name: "kitchen-sink"
	instructions: [
		{op: "nop"},
		{op: "const", dst: 0, value: {bool: true}},
		{op: "branch_if", cond: 0, target: 3},
		{op: "jump", target: 3},
		{op: "create", dst: 1, logic: "token", domain: "test", quantity: 5, metadata: {owner: "alice"}},
		{op: "const", dst: 2, value: {unit: true}},
		{op: "pair", dst: 3, a: 1, b: 2},
		{op: "unpair", dst_a: 4, dst_b: 5, src: 3},
		{op: "consume", src: 4},
		{op: "inl", dst: 6, src: 5},
		{op: "case", src: 6, if_left: 10, if_right: 10},
		{op: "call_effect", effect: "weft/emit", args: [6], results: [7]},
		{op: "halt", result: 7},
	]
}
`
	c, err := Compile(src, "sink.cue")
	require.NoError(t, err)
	require.Equal(t, 13, c.Program.Len())

	create, ok := c.Program.At(4).(kernel.Create)
	require.True(t, ok)
	assert.Equal(t, "token", create.Logic)
	assert.Equal(t, resource.NewQuantity(5), create.Quantity)
	assert.Equal(t, map[string]string{"owner": "alice"}, create.Metadata)

	call, ok := c.Program.At(11).(kernel.CallEffect)
	require.True(t, ok)
	assert.Equal(t, effect.TypeIDFor("weft/emit"), call.EffectType)
	assert.Equal(t, []kernel.RegID{6}, call.Args)
}

func TestCompile_HandlerManifest(t *testing.T) {
	src := `
program: {
	name: "with-handlers"
	handlers: [
		{name: "weft/mint", inputs: ["int"], outputs: ["resource"], gas_cost: 10},
		{name: "acme/oracle", outputs: ["int"], may_suspend: true, recoverable: true},
	]
	instructions: [
		{op: "halt", result: 0},
	]
}
`
	c, err := Compile(src, "handlers.cue")
	require.NoError(t, err)
	require.Len(t, c.Handlers, 2)

	assert.Equal(t, effect.Spec{
		Name:    "weft/mint",
		Inputs:  []value.Kind{value.KindInt},
		Outputs: []value.Kind{value.KindResource},
		GasCost: 10,
	}, c.Handlers[0])
	assert.True(t, c.Handlers[1].MaySuspend)
	assert.True(t, c.Handlers[1].Recoverable)
}

func TestCompile_ValueLiterals(t *testing.T) {
	src := `
program: {
	name: "values"
	registers: {
		"0": {pair: [{int: 1}, {bool: false}]}
		"1": {left: {unit: true}}
		"2": {right: {int: 3}}
		"3": {channel: 7}
	}
	instructions: [
		{op: "halt", result: 0},
	]
}
`
	c, err := Compile(src, "values.cue")
	require.NoError(t, err)

	assert.True(t, value.Equal(value.Pair{First: value.Int(1), Second: value.Bool(false)}, c.Initial[0]))
	assert.True(t, value.Equal(value.Sum{Side: value.Left, Inner: value.Unit{}}, c.Initial[1]))
	assert.True(t, value.Equal(value.Sum{Side: value.Right, Inner: value.Int(3)}, c.Initial[2]))
	assert.Equal(t, value.ChannelID(7), c.Initial[3])
}

func TestCompile_Errors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "missing program struct",
			src:  `other: {}`,
			want: "program struct is required",
		},
		{
			name: "missing name",
			src:  `program: {instructions: [{op: "nop"}]}`,
			want: "name is required",
		},
		{
			name: "empty instructions",
			src:  `program: {name: "x", instructions: []}`,
			want: "at least one instruction",
		},
		{
			name: "unknown op",
			src:  `program: {name: "x", instructions: [{op: "frobnicate"}]}`,
			want: "unknown op",
		},
		{
			name: "branch target out of range",
			src:  `program: {name: "x", instructions: [{op: "jump", target: 9}]}`,
			want: "out of range",
		},
		{
			name: "register out of range",
			src:  `program: {name: "x", instructions: [{op: "halt", result: 4096}]}`,
			want: "out of range",
		},
		{
			name: "bad register label",
			src:  `program: {name: "x", registers: {abc: {int: 1}}, instructions: [{op: "halt", result: 0}]}`,
			want: "not a decimal index",
		},
		{
			name: "unknown handler kind",
			src:  `program: {name: "x", handlers: [{name: "h", inputs: ["float"]}], instructions: [{op: "halt", result: 0}]}`,
			want: "unknown value kind",
		},
		{
			name: "bad value literal",
			src:  `program: {name: "x", registers: {"0": {wat: 1}}, instructions: [{op: "halt", result: 0}]}`,
			want: "expected one of",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.src, tc.name+".cue")
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestCompiled_Context(t *testing.T) {
	src := `
program: {
	name: "limits"
	gas: 50
	max_depth: 2
	instructions: [{op: "halt", result: 0}]
}
`
	c, err := Compile(src, "limits.cue")
	require.NoError(t, err)

	ctx := c.Context()
	assert.Equal(t, uint64(50), ctx.Gas)
	assert.Equal(t, uint32(2), ctx.MaxDepth)
}
