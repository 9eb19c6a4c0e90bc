package kernel

// Gas costs per opcode. One cheap default for register-local work; store
// and dispatch operations cost more. Values are placeholders pending
// empirical calibration - the shape of the table, not the numbers, is the
// contract.
const (
	gasDefault    uint64 = 1
	gasCreate     uint64 = 10
	gasConsume    uint64 = 5
	gasCallEffect uint64 = 10
)

var gasTable = map[Opcode]uint64{
	OpCreate:     gasCreate,
	OpConsume:    gasConsume,
	OpCallEffect: gasCallEffect,
}

// GasCost returns the fixed charge for an opcode.
// CallEffect additionally charges the handler-declared cost at dispatch.
func GasCost(op Opcode) uint64 {
	if c, ok := gasTable[op]; ok {
		return c
	}
	return gasDefault
}
