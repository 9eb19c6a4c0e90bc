package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/effect"
	"github.com/weftlabs/weft/internal/kernel"
	"github.com/weftlabs/weft/internal/resource"
	"github.com/weftlabs/weft/internal/trace"
	"github.com/weftlabs/weft/internal/value"
)

func newTestEngine(t *testing.T, tokens ...string) *Engine {
	t.Helper()
	e, err := New(NewFixedGenerator(tokens...))
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestEngine_ExecuteHalts(t *testing.T) {
	e := newTestEngine(t)

	p := kernel.NewProgram([]kernel.Instruction{
		kernel.Const{Dst: 0, Val: value.Int(20)},
		kernel.Const{Dst: 1, Val: value.Int(22)},
		kernel.BinOp{Kind: kernel.BinAdd, Dst: 2, A: 0, B: 1},
		kernel.Halt{Result: 2},
	})

	res, err := e.Execute(p, nil, kernel.NewContext(100))
	require.NoError(t, err)
	assert.Equal(t, trace.Halted, res.Trace.Terminus.Kind)
	assert.Equal(t, value.Int(42), res.Trace.Result)
}

func TestEngine_SuspendAndResume(t *testing.T) {
	e := newTestEngine(t, "tok-1")

	id, err := e.RegisterHandler(effect.Spec{
		Name:       "test/await",
		Outputs:    []value.Kind{value.KindInt},
		MaySuspend: true,
	}, func(effect.Call) effect.Outcome {
		return effect.Suspend{}
	})
	require.NoError(t, err)

	p := kernel.NewProgram([]kernel.Instruction{
		kernel.CallEffect{EffectType: id, Results: []kernel.RegID{0}},
		kernel.Halt{Result: 0},
	})

	res, err := e.Execute(p, nil, kernel.NewContext(100))
	require.NoError(t, err)
	assert.Equal(t, trace.Suspended, res.Trace.Terminus.Kind)
	assert.Equal(t, "tok-1", res.Trace.ContinuationToken)
	assert.Equal(t, 1, e.Waiting())

	resumed, err := e.Resume("tok-1", []value.Value{value.Int(9)})
	require.NoError(t, err)
	assert.Equal(t, trace.Halted, resumed.Trace.Terminus.Kind)
	assert.Equal(t, value.Int(9), resumed.Trace.Result)
	assert.Equal(t, 0, e.Waiting())

	// A token is single-use.
	_, err = e.Resume("tok-1", []value.Value{value.Int(9)})
	assert.True(t, IsUnknownToken(err))
}

func TestEngine_ResumeUnknownToken(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Resume("nope", nil)
	assert.True(t, IsUnknownToken(err))
}

func TestEngine_ChannelReceive(t *testing.T) {
	e := newTestEngine(t)

	ch := e.OpenChannel()
	require.NoError(t, e.PushChannel(ch, value.Int(7)))

	p := kernel.NewProgram([]kernel.Instruction{
		kernel.CallEffect{
			EffectType: effect.TypeIDFor(NameChanRecv),
			Args:       []kernel.RegID{0},
			Results:    []kernel.RegID{1},
		},
		kernel.Halt{Result: 1},
	})

	res, err := e.Execute(p, map[kernel.RegID]value.Value{0: ch}, kernel.NewContext(100))
	require.NoError(t, err)
	assert.Equal(t, trace.Halted, res.Trace.Terminus.Kind)
	assert.True(t, value.Equal(value.Sum{Side: value.Right, Inner: value.Int(7)}, res.Trace.Result))

	// Drained: a second receive sees the left injection.
	res, err = e.Execute(p, map[kernel.RegID]value.Value{0: ch}, kernel.NewContext(100))
	require.NoError(t, err)
	assert.True(t, value.Equal(value.Sum{Side: value.Left, Inner: value.Unit{}}, res.Trace.Result))
}

func TestEngine_ChannelSend(t *testing.T) {
	e := newTestEngine(t)
	ch := e.OpenChannel()

	p := kernel.NewProgram([]kernel.Instruction{
		kernel.Const{Dst: 1, Val: value.Int(5)},
		kernel.CallEffect{
			EffectType: effect.TypeIDFor(NameChanSend),
			Args:       []kernel.RegID{0, 1},
			Results:    []kernel.RegID{2},
		},
		kernel.Halt{Result: 2},
	})

	res, err := e.Execute(p, map[kernel.RegID]value.Value{0: ch}, kernel.NewContext(100))
	require.NoError(t, err)
	require.Equal(t, trace.Halted, res.Trace.Terminus.Kind)

	v, ok, err := e.PopChannel(ch)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value.Int(5), v)
}

func TestEngine_SendToUnknownChannelTraps(t *testing.T) {
	e := newTestEngine(t)

	p := kernel.NewProgram([]kernel.Instruction{
		kernel.Const{Dst: 0, Val: value.ChannelID(999)},
		kernel.Const{Dst: 1, Val: value.Unit{}},
		kernel.CallEffect{
			EffectType: effect.TypeIDFor(NameChanSend),
			Args:       []kernel.RegID{0, 1},
			Results:    []kernel.RegID{2},
		},
	})

	res, err := e.Execute(p, nil, kernel.NewContext(100))
	require.NoError(t, err)
	assert.Equal(t, trace.Trapped, res.Trace.Terminus.Kind)
	assert.Equal(t, string(kernel.TrapHandlerRejected), res.Trace.Terminus.TrapKind)
}

func TestEngine_SerializesConcurrentExecutes(t *testing.T) {
	// Two concurrent tasks create the same resource (one identity, Put is
	// idempotent) and consume it. Whichever runs second must trap: the
	// executor never interleaves them.
	e := newTestEngine(t)

	p := kernel.NewProgram([]kernel.Instruction{
		kernel.Create{Dst: 0, Logic: "token", Domain: "race", Quantity: resource.NewQuantity(1)},
		kernel.Consume{Src: 0},
		kernel.Const{Dst: 1, Val: value.Unit{}},
		kernel.Halt{Result: 1},
	})

	var wg sync.WaitGroup
	results := make([]*kernel.RunResult, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.Execute(p, nil, kernel.NewContext(100))
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	termini := map[trace.TerminusKind]int{}
	for _, res := range results {
		termini[res.Trace.Terminus.Kind]++
	}
	assert.Equal(t, 1, termini[trace.Halted])
	assert.Equal(t, 1, termini[trace.Trapped])
}

func TestEngine_CloseRejectsWork(t *testing.T) {
	e, err := New(NewFixedGenerator())
	require.NoError(t, err)
	e.Close()

	p := kernel.NewProgram([]kernel.Instruction{kernel.Halt{Result: 0}})
	_, err = e.Execute(p, nil, kernel.NewContext(10))
	assert.ErrorIs(t, err, ErrClosed)

	// Idempotent.
	e.Close()
}

func TestEngine_WithStore(t *testing.T) {
	store := resource.NewStore()
	r := resource.Resource{Logic: "seed", Domain: "test", Quantity: resource.NewQuantity(1)}
	id := store.Put(r)

	e, err := New(NewFixedGenerator(), WithStore(store))
	require.NoError(t, err)
	t.Cleanup(e.Close)

	p := kernel.NewProgram([]kernel.Instruction{
		kernel.Consume{Src: 0},
		kernel.Const{Dst: 1, Val: value.Unit{}},
		kernel.Halt{Result: 1},
	})

	res, err := e.Execute(p, map[kernel.RegID]value.Value{0: value.ResourceRef{ID: id}}, kernel.NewContext(100))
	require.NoError(t, err)
	assert.Equal(t, trace.Halted, res.Trace.Terminus.Kind)
	assert.Equal(t, resource.Consumed, res.Trace.FinalResourceStates[id])
}

func TestFixedGenerator_ReturnsInOrder(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}
