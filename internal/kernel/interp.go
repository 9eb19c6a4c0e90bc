package kernel

import (
	"fmt"
	"log/slog"

	"github.com/weftlabs/weft/internal/content"
	"github.com/weftlabs/weft/internal/effect"
	"github.com/weftlabs/weft/internal/resource"
	"github.com/weftlabs/weft/internal/trace"
	"github.com/weftlabs/weft/internal/value"
)

// Config assembles the collaborators for one execution.
type Config struct {
	Program  *Program
	Store    *resource.Store
	Registry *effect.Registry
	Context  *Context

	// Tokens generates continuation tokens for suspensions.
	// Injected so tests can use a fixed sequence.
	Tokens func() string
}

// RunResult is what every execution produces, in all termini.
// Frame is non-nil exactly when the terminus is Suspended.
type RunResult struct {
	Trace *trace.ExecutionTrace
	Hash  content.Hash
	Frame *Frame
}

// Frame is a suspended execution: everything needed to resume from the
// CallEffect that yielded. The context is shared by pointer so host
// cancellation and the gas budget carry across the suspension.
type Frame struct {
	Token string

	program  *Program
	regs     *RegisterFile
	ctx      *Context
	tokens   func() string
	pc       uint32
	call     CallEffect
	spec     effect.Spec
	inputIDs []resource.ID
}

// Interpreter is the deterministic single-stepping evaluator.
// It exclusively owns the register file, resource store, and in-flight
// trace for the duration of one execution; all stepping happens in the
// caller's goroutine.
type Interpreter struct {
	program  *Program
	regs     *RegisterFile
	store    *resource.Store
	registry *effect.Registry
	ctx      *Context
	builder  *trace.Builder
	tokens   func() string
	pc       uint32

	// err is set only on a kernel-internal invariant breach; the loop
	// aborts with it instead of sealing a trace.
	err error
}

// New creates an interpreter with initial register bindings.
// Binding errors (slot out of range) are host mistakes and fail fast;
// they are not traps because no execution has started.
func New(cfg Config, initial map[RegID]value.Value) (*Interpreter, error) {
	if cfg.Program == nil {
		return nil, fmt.Errorf("kernel: program is required")
	}
	if cfg.Store == nil || cfg.Registry == nil || cfg.Context == nil {
		return nil, fmt.Errorf("kernel: store, registry, and context are required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("kernel: token generator is required")
	}

	regs := NewRegisterFile()
	for reg, v := range initial {
		if !regs.InRange(reg) {
			return nil, fmt.Errorf("kernel: initial binding r%d out of range", reg)
		}
		regs.Store(reg, v)
	}

	return &Interpreter{
		program:  cfg.Program,
		regs:     regs,
		store:    cfg.Store,
		registry: cfg.Registry,
		ctx:      cfg.Context,
		builder:  trace.NewBuilder(cfg.Program.Hash()),
		tokens:   cfg.Tokens,
	}, nil
}

// Run steps the program to a terminus and returns the sealed trace.
// The returned error is reserved for kernel-internal invariant breaches;
// program failures are reported through the trace's terminus.
func (it *Interpreter) Run() (*RunResult, error) {
	slog.Debug("execution starting",
		"program", it.program.Hash().Short(),
		"gas", it.ctx.Gas,
	)
	return it.loop()
}

// Resume rebuilds an interpreter from a suspended frame with the
// host-supplied results injected as if the suspended handler had
// completed at the original call site. A fresh trace is produced; the
// logical clock continues from the saved context.
func Resume(frame *Frame, store *resource.Store, registry *effect.Registry, results []value.Value) (*RunResult, error) {
	if frame == nil {
		return nil, fmt.Errorf("kernel: nil frame")
	}

	it := &Interpreter{
		program:  frame.program,
		regs:     frame.regs,
		store:    store,
		registry: registry,
		ctx:      frame.ctx,
		builder:  trace.NewBuilder(frame.program.Hash()),
		tokens:   frame.tokens,
		pc:       frame.pc,
	}

	// Inject the host results exactly as a Complete outcome with no delta:
	// results validated against the declared outputs, registers bound,
	// clock ticked, effect recorded.
	if tr := it.completeEffect(frame.call, frame.spec, frame.inputIDs, results, effect.ResourceDelta{}, nil); tr != nil {
		return it.finishTrap(tr)
	}
	if it.err != nil {
		return nil, it.err
	}
	return it.loop()
}

// loop is the shared stepping loop for Run and Resume.
func (it *Interpreter) loop() (*RunResult, error) {
	for {
		if it.ctx.Cancelled() {
			return it.finish(trace.Terminus{Kind: trace.Cancelled}, "", nil)
		}
		if int(it.pc) >= it.program.Len() {
			return it.finishTrap(newTrap(TrapInvalidInstruction, it.pc, "execution ran past the final instruction without halt"))
		}

		in := it.program.At(int(it.pc))
		if !it.ctx.ChargeGas(GasCost(in.Op())) {
			return it.finishTrap(newTrap(TrapGasExhausted, it.pc, "gas exhausted at %s", in.Op()))
		}

		halt, suspend, tr := it.step(in)
		switch {
		case it.err != nil:
			return nil, it.err
		case tr != nil:
			return it.finishTrap(tr)
		case suspend != nil:
			return it.finishSuspend(suspend)
		case halt != nil:
			return it.finish(trace.Terminus{Kind: trace.Halted}, "", halt.val)
		}
	}
}

type haltSignal struct{ val value.Value }

// step executes one instruction. Exactly one of the returns is non-nil
// on a non-advancing outcome; all nil means the pc has been updated and
// the loop continues.
func (it *Interpreter) step(in Instruction) (*haltSignal, *Frame, *Trap) {
	switch i := in.(type) {
	case Nop:
		it.pc++

	case Const:
		if tr := it.checkRange(i.Dst); tr != nil {
			return nil, nil, tr
		}
		it.regs.Store(i.Dst, i.Val)
		it.pc++

	case Move:
		v, tr := it.loadCopy(i.Src)
		if tr != nil {
			return nil, nil, tr
		}
		if tr := it.checkRange(i.Dst); tr != nil {
			return nil, nil, tr
		}
		it.regs.Store(i.Dst, v)
		it.pc++

	case Create:
		if tr := it.checkRange(i.Dst); tr != nil {
			return nil, nil, tr
		}
		r := resource.Resource{
			Logic:    i.Logic,
			Domain:   i.Domain,
			Quantity: i.Quantity,
			Metadata: i.Metadata,
			State:    resource.Available,
		}
		id := it.store.Put(r)
		it.regs.Store(i.Dst, value.ResourceRef{ID: id})
		it.pc++

	case Consume:
		v, tr := it.takeMove(i.Src)
		if tr != nil {
			return nil, nil, tr
		}
		ref, ok := v.(value.ResourceRef)
		if !ok {
			return nil, nil, newTrap(TrapTypeMismatch, it.pc, "consume r%d: expected resource, got %s", i.Src, v.Kind())
		}
		if err := it.store.Consume(ref.ID); err != nil {
			return nil, nil, newTrap(TrapResourceUnavailable, it.pc, "%v", err)
		}
		it.pc++

	case Pair:
		a, tr := it.takeMove(i.A)
		if tr != nil {
			return nil, nil, tr
		}
		b, tr := it.takeMove(i.B)
		if tr != nil {
			return nil, nil, tr
		}
		if tr := it.checkRange(i.Dst); tr != nil {
			return nil, nil, tr
		}
		it.regs.Store(i.Dst, value.Pair{First: a, Second: b})
		it.pc++

	case Unpair:
		v, tr := it.takeMove(i.Src)
		if tr != nil {
			return nil, nil, tr
		}
		p, ok := v.(value.Pair)
		if !ok {
			return nil, nil, newTrap(TrapTypeMismatch, it.pc, "unpair r%d: expected pair, got %s", i.Src, v.Kind())
		}
		if tr := it.checkRange(i.DstA); tr != nil {
			return nil, nil, tr
		}
		if tr := it.checkRange(i.DstB); tr != nil {
			return nil, nil, tr
		}
		it.regs.Store(i.DstA, p.First)
		it.regs.Store(i.DstB, p.Second)
		it.pc++

	case Inl:
		if tr := it.injectSum(i.Dst, i.Src, value.Left); tr != nil {
			return nil, nil, tr
		}

	case Inr:
		if tr := it.injectSum(i.Dst, i.Src, value.Right); tr != nil {
			return nil, nil, tr
		}

	case Case:
		v, tr := it.loadPeek(i.Src)
		if tr != nil {
			return nil, nil, tr
		}
		s, ok := v.(value.Sum)
		if !ok {
			return nil, nil, newTrap(TrapTypeMismatch, it.pc, "case r%d: expected sum, got %s", i.Src, v.Kind())
		}
		target := i.IfLeft
		if s.Side == value.Right {
			target = i.IfRight
		}
		if tr := it.branch(target); tr != nil {
			return nil, nil, tr
		}

	case BinOp:
		if tr := it.execBinOp(i); tr != nil {
			return nil, nil, tr
		}

	case Jump:
		if tr := it.branch(i.Target); tr != nil {
			return nil, nil, tr
		}

	case BranchIf:
		v, tr := it.loadCopy(i.Cond)
		if tr != nil {
			return nil, nil, tr
		}
		b, ok := v.(value.Bool)
		if !ok {
			return nil, nil, newTrap(TrapTypeMismatch, it.pc, "branch_if r%d: expected bool, got %s", i.Cond, v.Kind())
		}
		if b {
			if tr := it.branch(i.Target); tr != nil {
				return nil, nil, tr
			}
		} else {
			it.pc++
		}

	case CallEffect:
		return it.execCallEffect(i)

	case Halt:
		v, tr := it.loadPeek(i.Result)
		if tr != nil {
			return nil, nil, tr
		}
		return &haltSignal{val: v}, nil, nil

	default:
		// Unreachable: Instruction is sealed.
		return nil, nil, newTrap(TrapInvalidInstruction, it.pc, "unknown instruction %T", in)
	}
	return nil, nil, nil
}

// injectSum implements Inl and Inr.
func (it *Interpreter) injectSum(dst, src RegID, side value.Side) *Trap {
	v, tr := it.takeMove(src)
	if tr != nil {
		return tr
	}
	if tr := it.checkRange(dst); tr != nil {
		return tr
	}
	it.regs.Store(dst, value.Sum{Side: side, Inner: v})
	it.pc++
	return nil
}

// execBinOp applies arithmetic and logic on copyable values.
// Division by zero is a TypeMismatch: the operand lies outside the
// operator's domain.
func (it *Interpreter) execBinOp(i BinOp) *Trap {
	a, tr := it.loadCopy(i.A)
	if tr != nil {
		return tr
	}
	b, tr := it.loadCopy(i.B)
	if tr != nil {
		return tr
	}
	if tr := it.checkRange(i.Dst); tr != nil {
		return tr
	}

	var out value.Value
	switch i.Kind {
	case BinAdd, BinSub, BinMul, BinDiv, BinLt:
		ai, aok := a.(value.Int)
		bi, bok := b.(value.Int)
		if !aok || !bok {
			return newTrap(TrapTypeMismatch, it.pc, "%s: expected int operands, got %s and %s", i.Kind, a.Kind(), b.Kind())
		}
		switch i.Kind {
		case BinAdd:
			out = ai + bi
		case BinSub:
			out = ai - bi
		case BinMul:
			out = ai * bi
		case BinDiv:
			if bi == 0 {
				return newTrap(TrapTypeMismatch, it.pc, "div: division by zero")
			}
			out = ai / bi
		case BinLt:
			out = value.Bool(ai < bi)
		}
	case BinEq:
		if value.ContainsResource(a) || value.ContainsResource(b) {
			return newTrap(TrapTypeMismatch, it.pc, "eq: resource values are not comparable")
		}
		out = value.Bool(value.Equal(a, b))
	case BinAnd, BinOr:
		ab, aok := a.(value.Bool)
		bb, bok := b.(value.Bool)
		if !aok || !bok {
			return newTrap(TrapTypeMismatch, it.pc, "%s: expected bool operands, got %s and %s", i.Kind, a.Kind(), b.Kind())
		}
		if i.Kind == BinAnd {
			out = value.Bool(bool(ab) && bool(bb))
		} else {
			out = value.Bool(bool(ab) || bool(bb))
		}
	default:
		return newTrap(TrapInvalidInstruction, it.pc, "unknown binop %d", i.Kind)
	}

	it.regs.Store(i.Dst, out)
	it.pc++
	return nil
}

// branch validates the target and moves the pc.
func (it *Interpreter) branch(target Label) *Trap {
	if int(target) >= it.program.Len() {
		return newTrap(TrapInvalidInstruction, it.pc, "branch target @%d out of range", target)
	}
	it.pc = uint32(target)
	return nil
}

// checkRange traps on register indices beyond the file ceiling.
func (it *Interpreter) checkRange(reg RegID) *Trap {
	if !it.regs.InRange(reg) {
		return newTrap(TrapInvalidInstruction, it.pc, "register r%d out of range", reg)
	}
	return nil
}

// loadPeek reads a register without moving or copying restrictions.
// Used where the value is only inspected (Case, Halt).
func (it *Interpreter) loadPeek(reg RegID) (value.Value, *Trap) {
	if tr := it.checkRange(reg); tr != nil {
		return nil, tr
	}
	v, ok := it.regs.Load(reg)
	if !ok {
		t := newTrap(TrapUnboundRegister, it.pc, "read from unbound register r%d", reg)
		t.Reg = reg
		return nil, t
	}
	return v, nil
}

// loadCopy reads a register for a copying instruction. Resource-bearing
// values cannot be copied; that is the linear discipline.
func (it *Interpreter) loadCopy(reg RegID) (value.Value, *Trap) {
	v, tr := it.loadPeek(reg)
	if tr != nil {
		return nil, tr
	}
	if value.ContainsResource(v) {
		return nil, newTrap(TrapTypeMismatch, it.pc, "cannot copy resource-bearing value in r%d", reg)
	}
	return v, nil
}

// takeMove reads a register for a moving instruction: the slot is
// cleared, and any referenced resources are verified Available first.
func (it *Interpreter) takeMove(reg RegID) (value.Value, *Trap) {
	v, tr := it.loadPeek(reg)
	if tr != nil {
		return nil, tr
	}
	if tr := it.verifyAvailable(v, reg); tr != nil {
		return nil, tr
	}
	it.regs.Clear(reg)
	return v, nil
}

// verifyAvailable enforces linearity dynamically: a ResourceRef whose
// resource is Consumed (or unknown) may not be used as an operand.
func (it *Interpreter) verifyAvailable(v value.Value, reg RegID) *Trap {
	for _, id := range collectRefs(v, nil) {
		r, ok := it.store.Get(id)
		if !ok {
			return newTrap(TrapResourceUnavailable, it.pc, "r%d references unknown resource %s", reg, id.Short())
		}
		if r.State != resource.Available {
			return newTrap(TrapResourceUnavailable, it.pc, "r%d references %s resource %s", reg, r.State, id.Short())
		}
	}
	return nil
}

// collectRefs gathers every resource ID reachable in v.
func collectRefs(v value.Value, acc []resource.ID) []resource.ID {
	switch val := v.(type) {
	case value.ResourceRef:
		return append(acc, val.ID)
	case value.Pair:
		return collectRefs(val.Second, collectRefs(val.First, acc))
	case value.Sum:
		return collectRefs(val.Inner, acc)
	default:
		return acc
	}
}

// finish seals the trace through the builder. Every terminus funnels
// through here so failure cases always yield a well-formed trace.
func (it *Interpreter) finish(term trace.Terminus, token string, result value.Value) (*RunResult, error) {
	for k, v := range it.ctx.Meta {
		it.builder.SetContext(k, v)
	}
	sealed, hash := it.builder.Finalize(term, token, result, it.ctx.Gas, it.store.Snapshot())
	slog.Debug("execution finished",
		"terminus", term.String(),
		"effects", it.builder.EffectCount(),
		"gas_remaining", it.ctx.Gas,
		"trace", hash.Short(),
	)
	return &RunResult{Trace: sealed, Hash: hash}, nil
}

func (it *Interpreter) finishTrap(t *Trap) (*RunResult, error) {
	slog.Warn("execution trapped", "kind", string(t.Kind), "pc", t.PC, "detail", t.Detail)
	return it.finish(trace.Terminus{Kind: trace.Trapped, TrapKind: string(t.Kind)}, "", nil)
}

func (it *Interpreter) finishSuspend(f *Frame) (*RunResult, error) {
	res, err := it.finish(trace.Terminus{Kind: trace.Suspended}, f.Token, nil)
	if err != nil {
		return nil, err
	}
	res.Frame = f
	return res, nil
}
