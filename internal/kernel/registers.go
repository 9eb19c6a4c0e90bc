package kernel

import (
	"github.com/weftlabs/weft/internal/value"
)

// MaxRegisters bounds the register file. Programs addressing slots at or
// beyond this ceiling trap with InvalidInstruction.
const MaxRegisters = 1024

// RegisterFile is a bounded array of optional value slots.
// A nil slot is unbound; reading an unbound register is a fatal error for
// the execution (UnboundRegister trap, raised by the interpreter).
type RegisterFile struct {
	slots []value.Value
}

// NewRegisterFile creates a file with all slots unbound.
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{slots: make([]value.Value, MaxRegisters)}
}

// InRange reports whether reg addresses a valid slot.
func (f *RegisterFile) InRange(reg RegID) bool {
	return int(reg) < len(f.slots)
}

// Load returns the value in reg, or false if the slot is unbound.
// Load never transfers ownership - only consuming instructions mark
// resources Consumed, and only moving instructions clear slots.
func (f *RegisterFile) Load(reg RegID) (value.Value, bool) {
	v := f.slots[reg]
	if v == nil {
		return nil, false
	}
	return v, true
}

// Store binds v into reg, overwriting any previous value.
func (f *RegisterFile) Store(reg RegID, v value.Value) {
	f.slots[reg] = v
}

// Clear unbinds reg.
func (f *RegisterFile) Clear(reg RegID) {
	f.slots[reg] = nil
}

// Take returns the value in reg and clears the slot (move semantics).
func (f *RegisterFile) Take(reg RegID) (value.Value, bool) {
	v := f.slots[reg]
	if v == nil {
		return nil, false
	}
	f.slots[reg] = nil
	return v, true
}

// Clone returns a deep-enough copy for frame suspension. Values are
// immutable once constructed, so copying the slot slice suffices.
func (f *RegisterFile) Clone() *RegisterFile {
	slots := make([]value.Value, len(f.slots))
	copy(slots, f.slots)
	return &RegisterFile{slots: slots}
}

// Bound returns the indices of all bound slots in ascending order.
func (f *RegisterFile) Bound() []RegID {
	var out []RegID
	for i, v := range f.slots {
		if v != nil {
			out = append(out, RegID(i))
		}
	}
	return out
}
