package kernel

import (
	"log/slog"

	"github.com/weftlabs/weft/internal/effect"
	"github.com/weftlabs/weft/internal/resource"
	"github.com/weftlabs/weft/internal/trace"
	"github.com/weftlabs/weft/internal/value"
)

// execCallEffect runs the effect dispatch pipeline:
// lookup, gas, depth, argument validation, pre-consume, handler call,
// outcome handling. Argument registers are moved before the handler runs;
// a rejection rolls the pre-consumed resources back.
func (it *Interpreter) execCallEffect(i CallEffect) (*haltSignal, *Frame, *Trap) {
	spec, fn, ok := it.registry.Lookup(i.EffectType)
	if !ok {
		return nil, nil, newTrap(TrapHandlerNotFound, it.pc, "no handler for effect %s", i.EffectType.Short())
	}

	if !it.ctx.ChargeGas(spec.GasCost) {
		return nil, nil, newTrap(TrapGasExhausted, it.pc, "gas exhausted by handler %s (cost %d)", spec.Name, spec.GasCost)
	}

	it.ctx.Depth++
	if it.ctx.Depth > it.ctx.MaxDepth {
		return nil, nil, newTrap(TrapDepthExceeded, it.pc, "effect depth %d exceeds ceiling %d", it.ctx.Depth, it.ctx.MaxDepth)
	}

	if len(i.Results) != len(spec.Outputs) {
		return nil, nil, newTrap(TrapTypeMismatch, it.pc,
			"call %s: %d result registers for %d declared outputs", spec.Name, len(i.Results), len(spec.Outputs))
	}
	for _, reg := range i.Results {
		if tr := it.checkRange(reg); tr != nil {
			return nil, nil, tr
		}
	}

	args := make([]value.Value, len(i.Args))
	for n, reg := range i.Args {
		v, tr := it.takeMove(reg)
		if tr != nil {
			return nil, nil, tr
		}
		args[n] = v
	}
	if err := effect.ValidateValues(spec.Inputs, args, "argument"); err != nil {
		return nil, nil, newTrap(TrapTypeMismatch, it.pc, "call %s: %v", spec.Name, err)
	}

	// Pre-consume every resource reachable from the arguments. Availability
	// was verified during the moves above, so a consume failure here is a
	// store invariant breach surfaced as a trap.
	inputIDs := collectArgRefs(args)
	for _, id := range inputIDs {
		if err := it.store.Consume(id); err != nil {
			return nil, nil, newTrap(TrapResourceUnavailable, it.pc, "call %s: %v", spec.Name, err)
		}
	}

	outcome := fn(effect.Call{Args: args, LogicalTime: it.ctx.Clock()})

	switch o := outcome.(type) {
	case effect.Complete:
		if tr := it.completeEffect(i, spec, inputIDs, o.Results, o.Delta, o.Constraints); tr != nil {
			return nil, nil, tr
		}
		return nil, nil, nil

	case effect.Suspend:
		if !spec.MaySuspend {
			return nil, nil, newTrap(TrapHandlerRejected, it.pc,
				"handler %s suspended without declaring may_suspend", spec.Name)
		}
		frame := &Frame{
			Token:    it.tokens(),
			program:  it.program,
			regs:     it.regs.Clone(),
			ctx:      it.ctx,
			tokens:   it.tokens,
			pc:       it.pc,
			call:     i,
			spec:     spec,
			inputIDs: inputIDs,
		}
		slog.Debug("handler suspended", "effect", spec.Name, "pc", it.pc, "token", frame.Token)
		return nil, frame, nil

	case effect.Rejected:
		for _, id := range inputIDs {
			if err := it.store.Release(id); err != nil {
				slog.Warn("rollback failed", "resource", id.Short(), "err", err)
			}
		}
		it.ctx.Depth--

		it.builder.RecordRejected(trace.EffectRecord{
			EffectType:     i.EffectType,
			EffectName:     spec.Name,
			InputResources: inputIDs,
			Constraints:    []string{"rejected:" + o.Reason},
			PrePC:          it.pc,
			PostPC:         it.pc,
			LogicalTime:    it.ctx.Clock(),
		})

		if !spec.Recoverable {
			return nil, nil, newTrap(TrapHandlerRejected, it.pc, "handler %s rejected: %s", spec.Name, o.Reason)
		}
		// Recoverable rejection: the program observes Unit results and
		// continues. The moved argument registers stay cleared.
		for _, reg := range i.Results {
			it.regs.Store(reg, value.Unit{})
		}
		it.pc++
		return nil, nil, nil

	default:
		// Unreachable: Outcome is sealed.
		return nil, nil, newTrap(TrapHandlerRejected, it.pc, "handler %s returned unknown outcome %T", spec.Name, outcome)
	}
}

// completeEffect applies a Complete outcome at the call site: validate
// results, apply the delta, bind result registers, tick the clock, and
// record the effect. Shared by the direct path and frame resume.
func (it *Interpreter) completeEffect(
	call CallEffect,
	spec effect.Spec,
	inputIDs []resource.ID,
	results []value.Value,
	delta effect.ResourceDelta,
	constraints []string,
) *Trap {
	if err := effect.ValidateValues(spec.Outputs, results, "result"); err != nil {
		return newTrap(TrapTypeMismatch, it.pc, "call %s: %v", spec.Name, err)
	}

	outputIDs := make([]resource.ID, 0, len(delta.Created))
	for _, r := range delta.Created {
		r.State = resource.Available
		outputIDs = append(outputIDs, it.store.Put(r))
	}
	for _, id := range delta.Consumed {
		if err := it.store.Consume(id); err != nil {
			return newTrap(TrapResourceUnavailable, it.pc, "call %s delta: %v", spec.Name, err)
		}
	}

	for n, reg := range call.Results {
		it.regs.Store(reg, results[n])
	}

	rec := trace.EffectRecord{
		EffectType:      call.EffectType,
		EffectName:      spec.Name,
		InputResources:  inputIDs,
		OutputResources: outputIDs,
		Constraints:     constraints,
		PrePC:           it.pc,
		PostPC:          it.pc + 1,
		LogicalTime:     it.ctx.TickClock(),
	}
	if err := it.builder.RecordEffect(rec); err != nil {
		it.err = err
		return nil
	}

	it.ctx.Depth--
	it.pc++
	return nil
}

// collectArgRefs gathers resource IDs from the argument list in order.
func collectArgRefs(args []value.Value) []resource.ID {
	var out []resource.ID
	for _, a := range args {
		out = collectRefs(a, out)
	}
	return out
}
