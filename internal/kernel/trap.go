package kernel

import (
	"errors"
	"fmt"
)

// TrapKind categorizes fatal execution errors.
// Traps are terminal for the current execution but always produce a
// well-formed trace with a Trapped terminus.
type TrapKind string

const (
	// TrapTypeMismatch: register contents did not match the instruction's
	// expectation (includes copying a resource-bearing value and integer
	// division by zero).
	TrapTypeMismatch TrapKind = "TYPE_MISMATCH"

	// TrapUnboundRegister: read from a slot with no value.
	TrapUnboundRegister TrapKind = "UNBOUND_REGISTER"

	// TrapResourceUnavailable: operand resource is Consumed or unknown.
	TrapResourceUnavailable TrapKind = "RESOURCE_UNAVAILABLE"

	// TrapGasExhausted: the gas budget cannot cover the next charge.
	// Never recoverable - signals an adversarial or buggy program.
	TrapGasExhausted TrapKind = "GAS_EXHAUSTED"

	// TrapDepthExceeded: effect-call nesting beyond MaxDepth.
	// Never recoverable.
	TrapDepthExceeded TrapKind = "DEPTH_EXCEEDED"

	// TrapHandlerNotFound: no handler registered for the effect type.
	TrapHandlerNotFound TrapKind = "HANDLER_NOT_FOUND"

	// TrapHandlerRejected: the handler rejected the call and did not
	// declare recoverability.
	TrapHandlerRejected TrapKind = "HANDLER_REJECTED"

	// TrapInvalidInstruction: branch target out of range, register index
	// beyond the file ceiling, malformed operand shape, or running past
	// the final instruction without Halt.
	TrapInvalidInstruction TrapKind = "INVALID_INSTRUCTION"
)

// Trap is a fatal execution error with structured context for diagnostics.
type Trap struct {
	// Kind identifies the error category.
	Kind TrapKind

	// PC is the program counter at the trapping instruction.
	PC uint32

	// Reg is the offending register, when one is involved.
	Reg RegID

	// Detail is a human-readable description.
	Detail string
}

// Error implements the error interface.
func (t *Trap) Error() string {
	if t.Detail != "" {
		return fmt.Sprintf("%s at pc=%d: %s", t.Kind, t.PC, t.Detail)
	}
	return fmt.Sprintf("%s at pc=%d", t.Kind, t.PC)
}

func newTrap(kind TrapKind, pc uint32, format string, args ...any) *Trap {
	return &Trap{Kind: kind, PC: pc, Detail: fmt.Sprintf(format, args...)}
}

// AsTrap extracts a Trap from an error chain.
func AsTrap(err error) (*Trap, bool) {
	var t *Trap
	ok := errors.As(err, &t)
	return t, ok
}

// IsTrapKind reports whether err is a Trap of the given kind.
// Uses errors.As to handle wrapped errors.
func IsTrapKind(err error, kind TrapKind) bool {
	t, ok := AsTrap(err)
	return ok && t.Kind == kind
}

// IsGasExhausted reports whether err is a gas-exhaustion trap.
func IsGasExhausted(err error) bool {
	return IsTrapKind(err, TrapGasExhausted)
}

// IsResourceUnavailable reports whether err is a linearity-violation trap.
func IsResourceUnavailable(err error) bool {
	return IsTrapKind(err, TrapResourceUnavailable)
}
