package compiler

import (
	"cuelang.org/go/cue"

	"github.com/weftlabs/weft/internal/content"
	"github.com/weftlabs/weft/internal/effect"
	"github.com/weftlabs/weft/internal/kernel"
	"github.com/weftlabs/weft/internal/resource"
	"github.com/weftlabs/weft/internal/value"
)

// parseInstructions reads the `instructions` list.
func parseInstructions(v cue.Value) ([]kernel.Instruction, error) {
	listVal := v.LookupPath(cue.ParsePath("instructions"))
	if !listVal.Exists() {
		return nil, compileErrf(v, "program.instructions", "instructions list is required")
	}

	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []kernel.Instruction
	for iter.Next() {
		in, err := parseInstruction(iter.Value(), len(out))
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

// parseInstruction decodes one instruction struct by its `op` mnemonic.
func parseInstruction(v cue.Value, idx int) (kernel.Instruction, error) {
	op, err := v.LookupPath(cue.ParsePath("op")).String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	switch op {
	case "nop":
		return kernel.Nop{}, nil

	case "const":
		dst, err := regField(v, "dst")
		if err != nil {
			return nil, err
		}
		val, err := parseValue(v.LookupPath(cue.ParsePath("value")))
		if err != nil {
			return nil, err
		}
		return kernel.Const{Dst: dst, Val: val}, nil

	case "move":
		dst, err := regField(v, "dst")
		if err != nil {
			return nil, err
		}
		src, err := regField(v, "src")
		if err != nil {
			return nil, err
		}
		return kernel.Move{Dst: dst, Src: src}, nil

	case "create":
		dst, err := regField(v, "dst")
		if err != nil {
			return nil, err
		}
		logic, err := v.LookupPath(cue.ParsePath("logic")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		domain, err := v.LookupPath(cue.ParsePath("domain")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		qty, err := v.LookupPath(cue.ParsePath("quantity")).Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if qty < 0 {
			return nil, compileErrf(v, "create.quantity", "quantity must be non-negative")
		}
		meta, err := parseMetadata(v)
		if err != nil {
			return nil, err
		}
		return kernel.Create{
			Dst:      dst,
			Logic:    logic,
			Domain:   domain,
			Quantity: resource.NewQuantity(uint64(qty)),
			Metadata: meta,
		}, nil

	case "consume":
		src, err := regField(v, "src")
		if err != nil {
			return nil, err
		}
		return kernel.Consume{Src: src}, nil

	case "pair":
		dst, err := regField(v, "dst")
		if err != nil {
			return nil, err
		}
		a, err := regField(v, "a")
		if err != nil {
			return nil, err
		}
		b, err := regField(v, "b")
		if err != nil {
			return nil, err
		}
		return kernel.Pair{Dst: dst, A: a, B: b}, nil

	case "unpair":
		dstA, err := regField(v, "dst_a")
		if err != nil {
			return nil, err
		}
		dstB, err := regField(v, "dst_b")
		if err != nil {
			return nil, err
		}
		src, err := regField(v, "src")
		if err != nil {
			return nil, err
		}
		return kernel.Unpair{DstA: dstA, DstB: dstB, Src: src}, nil

	case "inl", "inr":
		dst, err := regField(v, "dst")
		if err != nil {
			return nil, err
		}
		src, err := regField(v, "src")
		if err != nil {
			return nil, err
		}
		if op == "inl" {
			return kernel.Inl{Dst: dst, Src: src}, nil
		}
		return kernel.Inr{Dst: dst, Src: src}, nil

	case "case":
		src, err := regField(v, "src")
		if err != nil {
			return nil, err
		}
		left, err := labelField(v, "if_left")
		if err != nil {
			return nil, err
		}
		right, err := labelField(v, "if_right")
		if err != nil {
			return nil, err
		}
		return kernel.Case{Src: src, IfLeft: left, IfRight: right}, nil

	case "add", "sub", "mul", "div", "eq", "lt", "and", "or":
		kind, err := kernel.BinOpKindFromName(op)
		if err != nil {
			return nil, compileErrf(v, "instructions", "%v", err)
		}
		dst, err := regField(v, "dst")
		if err != nil {
			return nil, err
		}
		a, err := regField(v, "a")
		if err != nil {
			return nil, err
		}
		b, err := regField(v, "b")
		if err != nil {
			return nil, err
		}
		return kernel.BinOp{Kind: kind, Dst: dst, A: a, B: b}, nil

	case "jump":
		target, err := labelField(v, "target")
		if err != nil {
			return nil, err
		}
		return kernel.Jump{Target: target}, nil

	case "branch_if":
		cond, err := regField(v, "cond")
		if err != nil {
			return nil, err
		}
		target, err := labelField(v, "target")
		if err != nil {
			return nil, err
		}
		return kernel.BranchIf{Cond: cond, Target: target}, nil

	case "call_effect":
		name, err := v.LookupPath(cue.ParsePath("effect")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		args, err := regListField(v, "args")
		if err != nil {
			return nil, err
		}
		results, err := regListField(v, "results")
		if err != nil {
			return nil, err
		}
		return kernel.CallEffect{
			EffectType: effect.TypeIDFor(name),
			Args:       args,
			Results:    results,
		}, nil

	case "halt":
		result, err := regField(v, "result")
		if err != nil {
			return nil, err
		}
		return kernel.Halt{Result: result}, nil

	default:
		return nil, compileErrf(v, "instructions", "instruction %d: unknown op %q", idx, op)
	}
}

// parseValue decodes a value literal: a one-field struct whose label
// names the variant.
//
//	{unit: true} {bool: true} {int: 42} {pair: [a, b]}
//	{left: v} {right: v} {resource: "<hex hash>"} {channel: 3}
func parseValue(v cue.Value) (value.Value, error) {
	if !v.Exists() {
		return nil, compileErrf(v, "value", "value literal is required")
	}

	if f := v.LookupPath(cue.ParsePath("unit")); f.Exists() {
		return value.Unit{}, nil
	}
	if f := v.LookupPath(cue.ParsePath("bool")); f.Exists() {
		b, err := f.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.Bool(b), nil
	}
	if f := v.LookupPath(cue.ParsePath("int")); f.Exists() {
		n, err := f.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.Int(n), nil
	}
	if f := v.LookupPath(cue.ParsePath("pair")); f.Exists() {
		iter, err := f.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var parts []value.Value
		for iter.Next() {
			p, err := parseValue(iter.Value())
			if err != nil {
				return nil, err
			}
			parts = append(parts, p)
		}
		if len(parts) != 2 {
			return nil, compileErrf(f, "value.pair", "pair needs exactly two elements, got %d", len(parts))
		}
		return value.Pair{First: parts[0], Second: parts[1]}, nil
	}
	if f := v.LookupPath(cue.ParsePath("left")); f.Exists() {
		inner, err := parseValue(f)
		if err != nil {
			return nil, err
		}
		return value.Sum{Side: value.Left, Inner: inner}, nil
	}
	if f := v.LookupPath(cue.ParsePath("right")); f.Exists() {
		inner, err := parseValue(f)
		if err != nil {
			return nil, err
		}
		return value.Sum{Side: value.Right, Inner: inner}, nil
	}
	if f := v.LookupPath(cue.ParsePath("resource")); f.Exists() {
		s, err := f.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		id, err := content.ParseHash(s)
		if err != nil {
			return nil, compileErrf(f, "value.resource", "%v", err)
		}
		return value.ResourceRef{ID: id}, nil
	}
	if f := v.LookupPath(cue.ParsePath("channel")); f.Exists() {
		n, err := f.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if n < 0 {
			return nil, compileErrf(f, "value.channel", "channel id must be non-negative")
		}
		return value.ChannelID(uint64(n)), nil
	}

	return nil, compileErrf(v, "value",
		"expected one of unit, bool, int, pair, left, right, resource, channel")
}

func parseMetadata(v cue.Value) (map[string]string, error) {
	metaVal := v.LookupPath(cue.ParsePath("metadata"))
	if !metaVal.Exists() {
		return nil, nil
	}

	iter, err := metaVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	meta := map[string]string{}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		meta[iter.Label()] = s
	}
	return meta, nil
}

func regField(v cue.Value, field string) (kernel.RegID, error) {
	f := v.LookupPath(cue.ParsePath(field))
	n, err := f.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	if n < 0 || n >= kernel.MaxRegisters {
		return 0, compileErrf(f, field, "register %d out of range (max %d)", n, kernel.MaxRegisters-1)
	}
	return kernel.RegID(n), nil
}

func labelField(v cue.Value, field string) (kernel.Label, error) {
	f := v.LookupPath(cue.ParsePath(field))
	n, err := f.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	if n < 0 {
		return 0, compileErrf(f, field, "branch target must be non-negative")
	}
	return kernel.Label(n), nil
}

func regListField(v cue.Value, field string) ([]kernel.RegID, error) {
	listVal := v.LookupPath(cue.ParsePath(field))
	if !listVal.Exists() {
		return nil, nil
	}

	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var regs []kernel.RegID
	for iter.Next() {
		n, err := iter.Value().Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if n < 0 || n >= kernel.MaxRegisters {
			return nil, compileErrf(iter.Value(), field, "register %d out of range (max %d)", n, kernel.MaxRegisters-1)
		}
		regs = append(regs, kernel.RegID(n))
	}
	return regs, nil
}
