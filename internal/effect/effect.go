// Package effect implements effect-handler dispatch for the kernel.
//
// An effect type is identified by the content address of its name. The
// registry is a flat map from that identity to a handler function plus a
// declared spec - dispatch is a table lookup, never a virtual call through
// an object hierarchy.
//
// Handlers never touch the resource store. They return a ResourceDelta
// describing the resources they created or consumed, and the interpreter
// applies it. This keeps the single-writer invariant intact and makes
// handler failure rollback trivial.
package effect

import (
	"fmt"

	"github.com/weftlabs/weft/internal/content"
	"github.com/weftlabs/weft/internal/resource"
	"github.com/weftlabs/weft/internal/value"
)

// TypeID is the content address of an effect type.
type TypeID = content.Hash

// TypeIDFor derives the effect type identity from its name.
// Stable across processes: the same name always maps to the same ID.
func TypeIDFor(name string) TypeID {
	return content.Sum(content.DomainEffectType, []byte(name))
}

// Spec declares a handler's capability set: expected input arity and
// kinds, result arity and kinds, declared gas cost, whether it may
// suspend, and whether a rejection is recoverable by the program.
type Spec struct {
	Name        string
	Inputs      []value.Kind
	Outputs     []value.Kind
	GasCost     uint64
	MaySuspend  bool
	Recoverable bool
}

// Call carries the argument values and dispatch metadata into a handler.
type Call struct {
	// Args are the moved argument values, one per declared input.
	Args []value.Value

	// LogicalTime is the clock value at dispatch. Handlers must not read
	// wall-clock time; this is the only time they see.
	LogicalTime uint64
}

// ResourceDelta describes store mutations requested by a handler.
// The interpreter applies it after a Complete outcome.
type ResourceDelta struct {
	// Created resources are put into the store as Available.
	Created []resource.Resource

	// Consumed identifies additional resources to consume beyond the
	// ResourceRef arguments (which the interpreter consumes itself).
	Consumed []resource.ID
}

// Outcome is the sealed handler result.
// Only Complete, Suspend, and Rejected implement it.
type Outcome interface {
	outcome() // Sealed - only these types implement it
}

// Complete carries results (one per declared output) and a delta.
// Constraints are handler-declared facts recorded verbatim in the trace.
type Complete struct {
	Results     []value.Value
	Delta       ResourceDelta
	Constraints []string
}

func (Complete) outcome() {}

// Suspend yields the call to the scheduler. The eventual result is
// injected by Resume as if Complete had been returned here.
// Only valid from handlers that declare MaySuspend.
type Suspend struct{}

func (Suspend) outcome() {}

// Rejected signals that the handler refused the call. The interpreter
// rolls back any pre-consumed arguments. Recoverable handlers let the
// program continue; otherwise the execution traps.
type Rejected struct {
	Reason string
}

func (Rejected) outcome() {}

// Handler is a function value bound to an effect type.
type Handler func(call Call) Outcome

// MatchesKind reports whether v satisfies the declared kind.
func MatchesKind(v value.Value, k value.Kind) bool {
	if k == value.KindAny {
		return v != nil
	}
	return v != nil && v.Kind() == k
}

// ValidateValues checks arity and kinds of values against a schema.
func ValidateValues(schema []value.Kind, vals []value.Value, what string) error {
	if len(vals) != len(schema) {
		return fmt.Errorf("%s arity mismatch: declared %d, got %d", what, len(schema), len(vals))
	}
	for i, v := range vals {
		if !MatchesKind(v, schema[i]) {
			got := "unbound"
			if v != nil {
				got = v.Kind().String()
			}
			return fmt.Errorf("%s %d: declared %s, got %s", what, i, schema[i], got)
		}
	}
	return nil
}
