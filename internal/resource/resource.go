// Package resource implements the linear-resource model: content-addressed
// resource records and the store that tracks their availability.
//
// Linearity is the central invariant: a resource transitions Available ->
// Consumed at most once, and never transitions back. The store retains
// consumed records for the duration of a trace so that double-consume is a
// detectable failure rather than a missing-key lookup.
package resource

import (
	"fmt"

	"github.com/weftlabs/weft/internal/content"
)

// ID is the content address of a resource record.
type ID = content.Hash

// State is the lifecycle state of a resource.
type State uint8

const (
	// Available means the resource may be consumed.
	Available State = iota
	// Consumed is terminal. No operation transitions out of it.
	Consumed
	// Locked is reserved for scheduler-level holds. No kernel operation
	// currently produces it and it is never exposed to handlers.
	Locked
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Available:
		return "available"
	case Consumed:
		return "consumed"
	case Locked:
		return "locked"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// StateFromName parses a state name as serialized in traces.
func StateFromName(name string) (State, error) {
	switch name {
	case "available":
		return Available, nil
	case "consumed":
		return Consumed, nil
	case "locked":
		return Locked, nil
	default:
		return 0, fmt.Errorf("unknown resource state %q", name)
	}
}

// Quantity is an unsigned 128-bit amount. There is no arithmetic on
// quantities inside the kernel; they are opaque denominations carried
// through creation and consumption.
type Quantity struct {
	Lo uint64
	Hi uint64
}

// NewQuantity builds a Quantity from a uint64.
func NewQuantity(n uint64) Quantity {
	return Quantity{Lo: n}
}

// String renders the quantity; the common sub-64-bit case prints plainly.
func (q Quantity) String() string {
	if q.Hi == 0 {
		return fmt.Sprintf("%d", q.Lo)
	}
	return fmt.Sprintf("%d<<64|%d", q.Hi, q.Lo)
}

// Resource is a record in the store.
//
// Identity is computed from logic, domain, quantity, and metadata only.
// State is deliberately excluded: a resource keeps one identity across its
// whole lifecycle, which is what makes the Available -> Consumed transition
// observable in traces.
type Resource struct {
	Logic    string
	Domain   string
	Quantity Quantity
	Metadata map[string]string
	State    State
}

// Canonical returns the canonical encoding of the identity fields.
func (r Resource) Canonical() []byte {
	e := content.NewEncoder()
	e.String(r.Logic)
	e.String(r.Domain)
	e.U128(r.Quantity.Lo, r.Quantity.Hi)
	e.StringMap(r.Metadata)
	return e.Bytes()
}

// ComputeID returns the content address of the resource's identity fields.
// Two resources with identical fields share one ID.
func (r Resource) ComputeID() ID {
	return content.Sum(content.DomainResource, r.Canonical())
}
