// Package value defines the kernel's value domain.
//
// Value is a sealed interface - only the variants declared here implement
// it. There is no float variant: floats break deterministic hashing and are
// forbidden throughout the kernel.
//
// Values are affine by type. A ResourceRef is subject to the linear
// discipline (moved, never copied); every other variant is freely copyable.
package value

import (
	"fmt"

	"github.com/weftlabs/weft/internal/content"
)

// Value is the sealed kernel value interface.
// Only Unit, Bool, Int, Pair, Sum, ResourceRef, and ChannelID implement it.
type Value interface {
	value() // Sealed - only these types implement it

	// Kind returns the variant discriminator for schema validation.
	Kind() Kind
}

// Kind discriminates value variants. Used in handler input/output schemas.
type Kind uint8

const (
	// KindAny matches every variant. Only meaningful in schemas.
	KindAny Kind = iota
	KindUnit
	KindBool
	KindInt
	KindPair
	KindSum
	KindResource
	KindChannel
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindUnit:
		return "unit"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindPair:
		return "pair"
	case KindSum:
		return "sum"
	case KindResource:
		return "resource"
	case KindChannel:
		return "channel"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// KindFromName parses a kind name as written in handler manifests.
func KindFromName(name string) (Kind, error) {
	switch name {
	case "any":
		return KindAny, nil
	case "unit":
		return KindUnit, nil
	case "bool":
		return KindBool, nil
	case "int":
		return KindInt, nil
	case "pair":
		return KindPair, nil
	case "sum":
		return KindSum, nil
	case "resource":
		return KindResource, nil
	case "channel":
		return KindChannel, nil
	default:
		return 0, fmt.Errorf("unknown value kind %q", name)
	}
}

// Unit is the nullary value.
type Unit struct{}

func (Unit) value()     {}
func (Unit) Kind() Kind { return KindUnit }

// Bool is a boolean value.
type Bool bool

func (Bool) value()     {}
func (Bool) Kind() Kind { return KindBool }

// Int is a signed 64-bit integer value.
type Int int64

func (Int) value()     {}
func (Int) Kind() Kind { return KindInt }

// Pair is the product of two values.
type Pair struct {
	First  Value
	Second Value
}

func (Pair) value()     {}
func (Pair) Kind() Kind { return KindPair }

// Side tags a Sum as the left or right injection.
type Side uint8

const (
	Left Side = iota
	Right
)

// String returns "left" or "right".
func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// Sum is a tagged union of two alternatives.
type Sum struct {
	Side  Side
	Inner Value
}

func (Sum) value()     {}
func (Sum) Kind() Kind { return KindSum }

// ResourceRef carries a resource identity. It is the only way a resource
// appears in the register file, and the only linear variant.
type ResourceRef struct {
	ID content.Hash
}

func (ResourceRef) value()     {}
func (ResourceRef) Kind() Kind { return KindResource }

// ChannelID is an opaque handle to a scheduler-owned message queue.
type ChannelID uint64

func (ChannelID) value()     {}
func (ChannelID) Kind() Kind { return KindChannel }

// ContainsResource reports whether v holds a ResourceRef anywhere in its
// structure. Such values move between registers; they are never copied.
func ContainsResource(v Value) bool {
	switch val := v.(type) {
	case ResourceRef:
		return true
	case Pair:
		return ContainsResource(val.First) || ContainsResource(val.Second)
	case Sum:
		return ContainsResource(val.Inner)
	default:
		return false
	}
}

// Equal reports structural equality.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Unit:
		return true
	case Bool:
		return av == b.(Bool)
	case Int:
		return av == b.(Int)
	case Pair:
		bv := b.(Pair)
		return Equal(av.First, bv.First) && Equal(av.Second, bv.Second)
	case Sum:
		bv := b.(Sum)
		return av.Side == bv.Side && Equal(av.Inner, bv.Inner)
	case ResourceRef:
		return av.ID == b.(ResourceRef).ID
	case ChannelID:
		return av == b.(ChannelID)
	default:
		return false
	}
}

// String renders a value for logs and CLI output.
func String(v Value) string {
	switch val := v.(type) {
	case nil:
		return "<unbound>"
	case Unit:
		return "unit"
	case Bool:
		return fmt.Sprintf("%t", bool(val))
	case Int:
		return fmt.Sprintf("%d", int64(val))
	case Pair:
		return fmt.Sprintf("(%s, %s)", String(val.First), String(val.Second))
	case Sum:
		return fmt.Sprintf("%s(%s)", val.Side, String(val.Inner))
	case ResourceRef:
		return fmt.Sprintf("resource:%s", val.ID.Short())
	case ChannelID:
		return fmt.Sprintf("channel:%d", uint64(val))
	default:
		return fmt.Sprintf("<unknown %T>", v)
	}
}
