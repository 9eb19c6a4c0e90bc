// Package trace implements the execution trace: the ordered,
// content-addressed record of what an execution did. The sealed trace and
// its hash are the single public commitment a downstream prover consumes.
//
// Determinism is the contract: the same program, initial bindings, and
// handler registry must produce byte-identical canonical trace encodings.
// Every map in the trace is serialized in sorted-key order and every
// timestamp is logical, never wall-clock.
package trace

import (
	"fmt"

	"github.com/weftlabs/weft/internal/content"
	"github.com/weftlabs/weft/internal/resource"
	"github.com/weftlabs/weft/internal/value"
)

// EffectID is the content address of one effect invocation record.
type EffectID = content.Hash

// TerminusKind is the disposition of a completed execution.
type TerminusKind uint8

const (
	// Halted: the program executed a Halt instruction.
	Halted TerminusKind = iota
	// Trapped: a fatal error ended the execution.
	Trapped
	// Cancelled: the host requested termination.
	Cancelled
	// Suspended: a handler yielded; a continuation token is present.
	Suspended
)

// String returns the lowercase terminus name.
func (k TerminusKind) String() string {
	switch k {
	case Halted:
		return "halted"
	case Trapped:
		return "trapped"
	case Cancelled:
		return "cancelled"
	case Suspended:
		return "suspended"
	default:
		return fmt.Sprintf("terminus(%d)", uint8(k))
	}
}

// Terminus records how an execution ended. TrapKind is set only when
// Kind is Trapped.
type Terminus struct {
	Kind     TerminusKind
	TrapKind string
}

// String renders "halted", "trapped(GAS_EXHAUSTED)", etc.
func (t Terminus) String() string {
	if t.Kind == Trapped && t.TrapKind != "" {
		return fmt.Sprintf("trapped(%s)", t.TrapKind)
	}
	return t.Kind.String()
}

// EffectRecord is one entry per effect invocation.
type EffectRecord struct {
	// EffectType is the content address of the effect's type.
	EffectType content.Hash

	// EffectName is the registered handler name, carried for legibility.
	EffectName string

	// InputResources lists the resource arguments consumed by the call.
	InputResources []resource.ID

	// OutputResources lists the resources the handler created.
	OutputResources []resource.ID

	// Constraints are handler-declared facts about the invocation,
	// including the rejection marker for rejected-but-recoverable calls.
	Constraints []string

	// PrePC and PostPC bracket the call site.
	PrePC  uint32
	PostPC uint32

	// LogicalTime is the monotonic counter value assigned to this effect.
	// Strictly increasing across the executed_effects order.
	LogicalTime uint64
}

// ID computes the record's content address. LogicalTime participates, so
// two invocations of the same effect type at different points in the
// execution have distinct identities.
func (r EffectRecord) ID() EffectID {
	e := content.NewEncoder()
	encodeEffectRecord(e, r)
	return content.Sum(content.DomainEffect, e.Bytes())
}

// ExecutionTrace is the sealed record of one execution.
type ExecutionTrace struct {
	// ProgramHash ties the trace to the exact instruction sequence.
	ProgramHash content.Hash

	// Terminus distinguishes success from the failure modes.
	Terminus Terminus

	// ContinuationToken is set only for a Suspended terminus.
	ContinuationToken string

	// Result is the Halt value. Nil unless Terminus is Halted.
	Result value.Value

	// GasRemaining is the unspent budget at finalization.
	GasRemaining uint64

	// ExecutedEffects is the program-order list of successful effect IDs.
	ExecutedEffects []EffectID

	// EffectDetails maps each effect ID to its full record.
	EffectDetails map[EffectID]EffectRecord

	// FinalResourceStates is the store snapshot at finalization.
	FinalResourceStates map[resource.ID]resource.State

	// ContextValues carries host metadata copied from the context.
	ContextValues map[string]value.Value

	// TraceHash is the content address of the canonical encoding.
	// Set by Seal; zero on an unsealed trace.
	TraceHash content.Hash
}
