// Package engine is the host-facing execution surface: a single-writer
// executor that owns the resource store, the handler registry, the
// suspended-frame table, and the channel queues.
//
// All execution happens on one executor goroutine; Execute and Resume
// enqueue work and block for the result. Serializing every task through
// one goroutine is what makes the linearity and determinism guarantees
// hold without locking the store.
//
// Thread-safety model:
//   - Execute, Resume, OpenChannel, PushChannel, PopChannel: safe from any
//     goroutine
//   - RegisterHandler: before the first Execute only
//   - Context.Cancel on a running task: safe from any goroutine
package engine
