// Package kernel implements the linear-resource register machine: the
// instruction set, register file, execution context, and the deterministic
// single-stepping interpreter.
//
// ARCHITECTURE:
//
// Single-Writer Interpreter:
// One interpreter owns the register file, resource store, and in-flight
// trace for the duration of an execution. All stepping happens in one
// goroutine. This ensures:
//   - Reproducible traces: same program + same bindings = same trace hash
//   - Linearity without locks: no interleaving can double-consume
//   - Simple reasoning about effect ordering
//
// Step Processing Flow:
//  1. Check cancellation flag (host-settable, atomic)
//  2. Charge gas from the per-opcode table
//  3. Decode and execute the instruction
//  4. Record any effect invocation in the trace under construction
//  5. Advance the program counter (or branch)
//
// Suspension:
// Exactly one suspension point exists - a handler returning Suspend from
// CallEffect. The interpreter freezes its state into a Frame, seals the
// in-flight trace with a Suspended terminus, and hands the frame to the
// engine. Resume rebuilds the interpreter from the frame with the
// host-supplied results injected as if the handler had completed at the
// original call site.
//
// Linearity enforcement is dynamic: no compile-time pass is assumed. The
// interpreter refuses to use a ResourceRef whose resource is Consumed, and
// traps instead.
//
// The interpreter is designed for correctness and determinism, not
// throughput.
package kernel
