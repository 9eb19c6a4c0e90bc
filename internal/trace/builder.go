package trace

import (
	"fmt"

	"github.com/weftlabs/weft/internal/content"
	"github.com/weftlabs/weft/internal/resource"
	"github.com/weftlabs/weft/internal/value"
)

// Builder accumulates effect records and context values while an
// execution is in flight, then seals them into an ExecutionTrace.
//
// The interpreter exclusively owns the builder during execution; there is
// no locking. Every terminus - a clean Halt, a trap, a cancellation, a
// suspension - finalizes through the same path, so failure cases always
// have a well-formed trace.
type Builder struct {
	programHash content.Hash
	records     []EffectRecord
	rejected    []EffectRecord
	context     map[string]value.Value
	lastClock   uint64
}

// NewBuilder creates a builder for one execution of the given program.
func NewBuilder(programHash content.Hash) *Builder {
	return &Builder{
		programHash: programHash,
		context:     map[string]value.Value{},
	}
}

// RecordEffect appends an effect record.
// Logical times must be strictly increasing; a regression is an
// interpreter bug, not a program error, hence the error return rather
// than a trap.
func (b *Builder) RecordEffect(rec EffectRecord) error {
	if len(b.records) > 0 && rec.LogicalTime <= b.lastClock {
		return fmt.Errorf("trace: logical time %d not after %d", rec.LogicalTime, b.lastClock)
	}
	b.records = append(b.records, rec)
	b.lastClock = rec.LogicalTime
	return nil
}

// RecordRejected stores a rejected invocation attempt. Rejections appear
// in the trace's effect details but never in the executed-effects order,
// and they do not advance the logical clock.
func (b *Builder) RecordRejected(rec EffectRecord) {
	b.rejected = append(b.rejected, rec)
}

// SetContext stores a context value carried into the sealed trace.
func (b *Builder) SetContext(key string, v value.Value) {
	b.context[key] = v
}

// EffectCount returns the number of recorded effects.
func (b *Builder) EffectCount() int {
	return len(b.records)
}

// Finalize seals the accumulated state into an ExecutionTrace and
// computes its hash. The builder must not be reused afterwards.
func (b *Builder) Finalize(
	terminus Terminus,
	continuationToken string,
	result value.Value,
	gasRemaining uint64,
	resourceStates map[resource.ID]resource.State,
) (*ExecutionTrace, content.Hash) {
	t := &ExecutionTrace{
		ProgramHash:         b.programHash,
		Terminus:            terminus,
		ContinuationToken:   continuationToken,
		Result:              result,
		GasRemaining:        gasRemaining,
		ExecutedEffects:     make([]EffectID, 0, len(b.records)),
		EffectDetails:       make(map[EffectID]EffectRecord, len(b.records)),
		FinalResourceStates: make(map[resource.ID]resource.State, len(resourceStates)),
		ContextValues:       make(map[string]value.Value, len(b.context)),
	}

	for _, rec := range b.records {
		id := rec.ID()
		t.ExecutedEffects = append(t.ExecutedEffects, id)
		t.EffectDetails[id] = rec
	}
	for _, rec := range b.rejected {
		t.EffectDetails[rec.ID()] = rec
	}
	for id, st := range resourceStates {
		t.FinalResourceStates[id] = st
	}
	for k, v := range b.context {
		t.ContextValues[k] = v
	}

	return Seal(t)
}
