package kernel

import (
	"fmt"
	"strings"

	"github.com/weftlabs/weft/internal/content"
	"github.com/weftlabs/weft/internal/resource"
	"github.com/weftlabs/weft/internal/value"
)

// RegID is a register slot index.
type RegID uint32

// Label is an absolute instruction index used as a branch target.
type Label uint32

// Opcode discriminates the closed instruction family.
// The numeric values are also the canonical encoding tags; they are part
// of the program identity and must never be reordered.
type Opcode uint8

const (
	OpNop Opcode = iota
	OpConst
	OpMove
	OpCreate
	OpConsume
	OpPair
	OpUnpair
	OpInl
	OpInr
	OpCase
	OpBinOp
	OpJump
	OpBranchIf
	OpCallEffect
	OpHalt
)

// String returns the lowercase mnemonic.
func (op Opcode) String() string {
	switch op {
	case OpNop:
		return "nop"
	case OpConst:
		return "const"
	case OpMove:
		return "move"
	case OpCreate:
		return "create"
	case OpConsume:
		return "consume"
	case OpPair:
		return "pair"
	case OpUnpair:
		return "unpair"
	case OpInl:
		return "inl"
	case OpInr:
		return "inr"
	case OpCase:
		return "case"
	case OpBinOp:
		return "binop"
	case OpJump:
		return "jump"
	case OpBranchIf:
		return "branch_if"
	case OpCallEffect:
		return "call_effect"
	case OpHalt:
		return "halt"
	default:
		return fmt.Sprintf("opcode(%d)", uint8(op))
	}
}

// Instruction is the sealed instruction interface.
// Only the types declared in this file implement it.
type Instruction interface {
	instruction() // Sealed - only these types implement it

	// Op returns the opcode for gas charging and encoding.
	Op() Opcode
}

// Nop advances the program counter and does nothing else.
type Nop struct{}

func (Nop) instruction() {}
func (Nop) Op() Opcode   { return OpNop }

// Const stores a literal value into Dst.
type Const struct {
	Dst RegID
	Val value.Value
}

func (Const) instruction() {}
func (Const) Op() Opcode   { return OpConst }

// Move copies Src into Dst. Copying a resource-bearing value is a
// TypeMismatch trap - resources move only through the linear instructions.
type Move struct {
	Dst RegID
	Src RegID
}

func (Move) instruction() {}
func (Move) Op() Opcode   { return OpMove }

// Create builds a resource, puts it in the store, and binds a ResourceRef
// into Dst.
type Create struct {
	Dst      RegID
	Logic    string
	Domain   string
	Quantity resource.Quantity
	Metadata map[string]string
}

func (Create) instruction() {}
func (Create) Op() Opcode   { return OpCreate }

// Consume marks the resource referenced by Src as Consumed and clears the
// register.
type Consume struct {
	Src RegID
}

func (Consume) instruction() {}
func (Consume) Op() Opcode   { return OpConsume }

// Pair moves A and B into a product bound to Dst.
type Pair struct {
	Dst RegID
	A   RegID
	B   RegID
}

func (Pair) instruction() {}
func (Pair) Op() Opcode   { return OpPair }

// Unpair moves the components of the pair in Src into DstA and DstB.
type Unpair struct {
	DstA RegID
	DstB RegID
	Src  RegID
}

func (Unpair) instruction() {}
func (Unpair) Op() Opcode   { return OpUnpair }

// Inl moves Src into a left injection bound to Dst.
type Inl struct {
	Dst RegID
	Src RegID
}

func (Inl) instruction() {}
func (Inl) Op() Opcode   { return OpInl }

// Inr moves Src into a right injection bound to Dst.
type Inr struct {
	Dst RegID
	Src RegID
}

func (Inr) instruction() {}
func (Inr) Op() Opcode   { return OpInr }

// Case branches on the tag of the sum in Src. The register is inspected,
// not moved; the value stays bound for the taken branch to use.
type Case struct {
	Src     RegID
	IfLeft  Label
	IfRight Label
}

func (Case) instruction() {}
func (Case) Op() Opcode   { return OpCase }

// BinOpKind enumerates the arithmetic and logic operators.
type BinOpKind uint8

const (
	BinAdd BinOpKind = iota
	BinSub
	BinMul
	BinDiv
	BinEq
	BinLt
	BinAnd
	BinOr
)

// String returns the lowercase operator name.
func (k BinOpKind) String() string {
	switch k {
	case BinAdd:
		return "add"
	case BinSub:
		return "sub"
	case BinMul:
		return "mul"
	case BinDiv:
		return "div"
	case BinEq:
		return "eq"
	case BinLt:
		return "lt"
	case BinAnd:
		return "and"
	case BinOr:
		return "or"
	default:
		return fmt.Sprintf("binop(%d)", uint8(k))
	}
}

// BinOpKindFromName parses an operator name as written in program files.
func BinOpKindFromName(name string) (BinOpKind, error) {
	for _, k := range []BinOpKind{BinAdd, BinSub, BinMul, BinDiv, BinEq, BinLt, BinAnd, BinOr} {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown binop %q", name)
}

// BinOp applies Kind to the copyable values in A and B and stores the
// result in Dst.
type BinOp struct {
	Kind BinOpKind
	Dst  RegID
	A    RegID
	B    RegID
}

func (BinOp) instruction() {}
func (BinOp) Op() Opcode   { return OpBinOp }

// Jump branches unconditionally to Target.
type Jump struct {
	Target Label
}

func (Jump) instruction() {}
func (Jump) Op() Opcode   { return OpJump }

// BranchIf branches to Target when the Bool in Cond is true.
type BranchIf struct {
	Cond   RegID
	Target Label
}

func (BranchIf) instruction() {}
func (BranchIf) Op() Opcode   { return OpBranchIf }

// CallEffect dispatches to the handler registered for EffectType.
// Argument registers are moved into the call; ResourceRef arguments are
// consumed. Results are bound into the result registers on completion.
// The only instruction that may suspend.
type CallEffect struct {
	EffectType content.Hash
	Args       []RegID
	Results    []RegID
}

func (CallEffect) instruction() {}
func (CallEffect) Op() Opcode   { return OpCallEffect }

// Halt terminates execution, returning the value in Result.
type Halt struct {
	Result RegID
}

func (Halt) instruction() {}
func (Halt) Op() Opcode   { return OpHalt }

// FormatInstruction renders an instruction for logs and CLI output.
func FormatInstruction(in Instruction) string {
	switch i := in.(type) {
	case Nop:
		return "nop"
	case Const:
		return fmt.Sprintf("const r%d, %s", i.Dst, value.String(i.Val))
	case Move:
		return fmt.Sprintf("move r%d, r%d", i.Dst, i.Src)
	case Create:
		return fmt.Sprintf("create r%d, %s/%s, qty=%s", i.Dst, i.Logic, i.Domain, i.Quantity)
	case Consume:
		return fmt.Sprintf("consume r%d", i.Src)
	case Pair:
		return fmt.Sprintf("pair r%d, r%d, r%d", i.Dst, i.A, i.B)
	case Unpair:
		return fmt.Sprintf("unpair r%d, r%d, r%d", i.DstA, i.DstB, i.Src)
	case Inl:
		return fmt.Sprintf("inl r%d, r%d", i.Dst, i.Src)
	case Inr:
		return fmt.Sprintf("inr r%d, r%d", i.Dst, i.Src)
	case Case:
		return fmt.Sprintf("case r%d, @%d, @%d", i.Src, i.IfLeft, i.IfRight)
	case BinOp:
		return fmt.Sprintf("%s r%d, r%d, r%d", i.Kind, i.Dst, i.A, i.B)
	case Jump:
		return fmt.Sprintf("jump @%d", i.Target)
	case BranchIf:
		return fmt.Sprintf("branch_if r%d, @%d", i.Cond, i.Target)
	case CallEffect:
		args := make([]string, len(i.Args))
		for n, r := range i.Args {
			args[n] = fmt.Sprintf("r%d", r)
		}
		results := make([]string, len(i.Results))
		for n, r := range i.Results {
			results[n] = fmt.Sprintf("r%d", r)
		}
		return fmt.Sprintf("call_effect %s (%s) -> (%s)",
			i.EffectType.Short(), strings.Join(args, ", "), strings.Join(results, ", "))
	case Halt:
		return fmt.Sprintf("halt r%d", i.Result)
	default:
		return fmt.Sprintf("<unknown %T>", in)
	}
}
