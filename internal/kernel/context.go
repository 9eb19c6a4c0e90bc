package kernel

import (
	"sync/atomic"

	"github.com/weftlabs/weft/internal/value"
)

// DefaultMaxDepth is the default effect-call nesting ceiling.
const DefaultMaxDepth = 64

// DefaultGas is the default gas budget when the host does not set one.
const DefaultGas = 1_000_000

// Context carries the metered execution state for one task: gas budget,
// effect-call depth, the cancellation flag, the logical clock, and host
// metadata that ends up in the trace's context values.
//
// Thread-safety model:
//   - Cancel()/Cancelled(): safe from any goroutine (atomic flag); this is
//     the host's only privilege over a running execution
//   - everything else: owned by the interpreter goroutine
type Context struct {
	// Gas is the remaining budget. Non-increasing during execution.
	Gas uint64

	// Depth is the current effect-call nesting level.
	Depth uint32

	// MaxDepth is the nesting ceiling; exceeding it traps.
	MaxDepth uint32

	// Meta is copied into the trace's context values at finalization.
	Meta map[string]value.Value

	cancelled atomic.Bool
	clock     uint64
}

// NewContext creates a context with the given gas budget and defaults.
func NewContext(gas uint64) *Context {
	return &Context{
		Gas:      gas,
		MaxDepth: DefaultMaxDepth,
		Meta:     map[string]value.Value{},
	}
}

// Cancel requests termination before the next instruction.
// Safe from any goroutine. In-flight effect calls are not preempted; the
// interpreter observes the flag on resume and terminates with a
// Cancelled terminus.
func (c *Context) Cancel() {
	c.cancelled.Store(true)
}

// Cancelled reports whether cancellation was requested.
func (c *Context) Cancelled() bool {
	return c.cancelled.Load()
}

// ChargeGas deducts cost from the budget.
// Returns false without deducting when the budget is insufficient; the
// interpreter turns that into a GasExhausted trap. Gas never goes
// negative, keeping the non-increasing invariant trivially checkable.
func (c *Context) ChargeGas(cost uint64) bool {
	if c.Gas < cost {
		return false
	}
	c.Gas -= cost
	return true
}

// TickClock increments and returns the logical clock.
// Called once per completed effect; wall-clock time is never used for
// ordering.
func (c *Context) TickClock() uint64 {
	c.clock++
	return c.clock
}

// Clock returns the current logical time without incrementing.
func (c *Context) Clock() uint64 {
	return c.clock
}
