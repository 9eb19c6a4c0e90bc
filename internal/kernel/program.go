package kernel

import (
	"fmt"

	"github.com/weftlabs/weft/internal/content"
	"github.com/weftlabs/weft/internal/value"
)

// Program is an immutable instruction sequence plus its content address.
type Program struct {
	instructions []Instruction
	hash         content.Hash
}

// NewProgram copies instructions and computes the program's content hash.
// The copy prevents external mutation from invalidating the hash.
func NewProgram(instructions []Instruction) *Program {
	ins := make([]Instruction, len(instructions))
	copy(ins, instructions)
	return &Program{
		instructions: ins,
		hash:         hashProgram(ins),
	}
}

// Len returns the instruction count.
func (p *Program) Len() int {
	return len(p.instructions)
}

// At returns the instruction at index i. Callers must bounds-check.
func (p *Program) At(i int) Instruction {
	return p.instructions[i]
}

// Instructions returns a copy of the instruction sequence.
func (p *Program) Instructions() []Instruction {
	out := make([]Instruction, len(p.instructions))
	copy(out, p.instructions)
	return out
}

// Hash returns the program's content address. Recorded in every trace so
// a prover can tie the trace back to the exact instruction sequence.
func (p *Program) Hash() content.Hash {
	return p.hash
}

// hashProgram canonically encodes the instruction sequence and hashes it.
func hashProgram(ins []Instruction) content.Hash {
	e := content.NewEncoder()
	e.U32(uint32(len(ins)))
	for _, in := range ins {
		encodeInstruction(e, in)
	}
	return content.Sum(content.DomainProgram, e.Bytes())
}

// encodeInstruction appends the canonical encoding of one instruction.
// The opcode byte is the variant tag; fields follow in declaration order.
func encodeInstruction(e *content.Encoder, in Instruction) {
	e.Tag(byte(in.Op()))
	switch i := in.(type) {
	case Nop:
	case Const:
		e.U32(uint32(i.Dst))
		value.Encode(e, i.Val)
	case Move:
		e.U32(uint32(i.Dst))
		e.U32(uint32(i.Src))
	case Create:
		e.U32(uint32(i.Dst))
		e.String(i.Logic)
		e.String(i.Domain)
		e.U128(i.Quantity.Lo, i.Quantity.Hi)
		e.StringMap(i.Metadata)
	case Consume:
		e.U32(uint32(i.Src))
	case Pair:
		e.U32(uint32(i.Dst))
		e.U32(uint32(i.A))
		e.U32(uint32(i.B))
	case Unpair:
		e.U32(uint32(i.DstA))
		e.U32(uint32(i.DstB))
		e.U32(uint32(i.Src))
	case Inl:
		e.U32(uint32(i.Dst))
		e.U32(uint32(i.Src))
	case Inr:
		e.U32(uint32(i.Dst))
		e.U32(uint32(i.Src))
	case Case:
		e.U32(uint32(i.Src))
		e.U32(uint32(i.IfLeft))
		e.U32(uint32(i.IfRight))
	case BinOp:
		e.Tag(byte(i.Kind))
		e.U32(uint32(i.Dst))
		e.U32(uint32(i.A))
		e.U32(uint32(i.B))
	case Jump:
		e.U32(uint32(i.Target))
	case BranchIf:
		e.U32(uint32(i.Cond))
		e.U32(uint32(i.Target))
	case CallEffect:
		e.Bytes32(i.EffectType)
		e.U32(uint32(len(i.Args)))
		for _, r := range i.Args {
			e.U32(uint32(r))
		}
		e.U32(uint32(len(i.Results)))
		for _, r := range i.Results {
			e.U32(uint32(r))
		}
	case Halt:
		e.U32(uint32(i.Result))
	default:
		// Unreachable: Instruction is sealed.
		panic(fmt.Sprintf("kernel: unknown instruction %T", in))
	}
}
