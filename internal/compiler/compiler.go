// Package compiler turns CUE program definitions into executable kernel
// programs.
//
// A program file declares a `program` struct: the instruction list, the
// initial register bindings, the handler manifest (effects the program
// calls, with their schemas), and execution limits. Compilation uses the
// CUE SDK's Go API directly, never a CLI subprocess, and reports failures
// as CompileError values carrying source positions.
package compiler

import (
	"fmt"
	"os"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/weftlabs/weft/internal/effect"
	"github.com/weftlabs/weft/internal/kernel"
	"github.com/weftlabs/weft/internal/value"
)

// Compiled is the result of compiling one program definition.
type Compiled struct {
	// Name labels the program in logs and CLI output.
	Name string

	// Program is the hashed instruction sequence.
	Program *kernel.Program

	// Initial holds the declared initial register bindings.
	Initial map[kernel.RegID]value.Value

	// Gas is the declared budget, or kernel.DefaultGas if omitted.
	Gas uint64

	// MaxDepth is the declared nesting ceiling, or kernel.DefaultMaxDepth.
	MaxDepth uint32

	// Handlers is the manifest of effects the program expects to call.
	// The host must register a handler for each before execution.
	Handlers []effect.Spec
}

// CompileFile reads and compiles a .cue program file.
func CompileFile(path string) (*Compiled, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}
	return Compile(string(src), path)
}

// Compile parses CUE source into a Compiled program.
// The filename is used only for error positions.
func Compile(src, filename string) (*Compiled, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(src, cue.Filename(filename))
	if err := root.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := root.LookupPath(cue.ParsePath("program"))
	if !v.Exists() {
		return nil, &CompileError{
			Field:   "program",
			Message: "program struct is required",
			Pos:     root.Pos(),
		}
	}

	c := &Compiled{
		Initial:  map[kernel.RegID]value.Value{},
		Gas:      kernel.DefaultGas,
		MaxDepth: kernel.DefaultMaxDepth,
	}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, compileErrf(v, "program.name", "name is required")
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	c.Name = name

	if gasVal := v.LookupPath(cue.ParsePath("gas")); gasVal.Exists() {
		gas, err := gasVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if gas < 0 {
			return nil, compileErrf(gasVal, "program.gas", "gas must be non-negative")
		}
		c.Gas = uint64(gas)
	}

	if depthVal := v.LookupPath(cue.ParsePath("max_depth")); depthVal.Exists() {
		depth, err := depthVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if depth < 0 {
			return nil, compileErrf(depthVal, "program.max_depth", "max_depth must be non-negative")
		}
		c.MaxDepth = uint32(depth)
	}

	if err := parseRegisters(v, c); err != nil {
		return nil, err
	}
	if err := parseHandlers(v, c); err != nil {
		return nil, err
	}

	instructions, err := parseInstructions(v)
	if err != nil {
		return nil, err
	}
	if len(instructions) == 0 {
		return nil, compileErrf(v, "program.instructions", "at least one instruction is required")
	}
	if err := checkTargets(v, instructions); err != nil {
		return nil, err
	}
	c.Program = kernel.NewProgram(instructions)

	return c, nil
}

// Context builds an execution context from the compiled limits.
func (c *Compiled) Context() *kernel.Context {
	ctx := kernel.NewContext(c.Gas)
	ctx.MaxDepth = c.MaxDepth
	return ctx
}

// parseRegisters reads the `registers` struct: labels are decimal
// register indices, values are value literals.
func parseRegisters(v cue.Value, c *Compiled) error {
	regsVal := v.LookupPath(cue.ParsePath("registers"))
	if !regsVal.Exists() {
		return nil
	}

	iter, err := regsVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		idx, err := strconv.ParseUint(iter.Label(), 10, 32)
		if err != nil {
			return compileErrf(iter.Value(), "program.registers",
				"register label %q is not a decimal index", iter.Label())
		}
		if idx >= kernel.MaxRegisters {
			return compileErrf(iter.Value(), "program.registers",
				"register %d out of range (max %d)", idx, kernel.MaxRegisters-1)
		}
		val, err := parseValue(iter.Value())
		if err != nil {
			return err
		}
		c.Initial[kernel.RegID(idx)] = val
	}
	return nil
}

// parseHandlers reads the handler manifest.
func parseHandlers(v cue.Value, c *Compiled) error {
	handlersVal := v.LookupPath(cue.ParsePath("handlers"))
	if !handlersVal.Exists() {
		return nil
	}

	iter, err := handlersVal.List()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		spec, err := parseHandlerSpec(iter.Value())
		if err != nil {
			return err
		}
		c.Handlers = append(c.Handlers, spec)
	}
	return nil
}

func parseHandlerSpec(v cue.Value) (effect.Spec, error) {
	var spec effect.Spec

	name, err := v.LookupPath(cue.ParsePath("name")).String()
	if err != nil {
		return spec, formatCUEError(err)
	}
	spec.Name = name

	if spec.Inputs, err = parseKindList(v, "inputs"); err != nil {
		return spec, err
	}
	if spec.Outputs, err = parseKindList(v, "outputs"); err != nil {
		return spec, err
	}

	if gasVal := v.LookupPath(cue.ParsePath("gas_cost")); gasVal.Exists() {
		gas, err := gasVal.Int64()
		if err != nil {
			return spec, formatCUEError(err)
		}
		spec.GasCost = uint64(gas)
	}
	if susVal := v.LookupPath(cue.ParsePath("may_suspend")); susVal.Exists() {
		if spec.MaySuspend, err = susVal.Bool(); err != nil {
			return spec, formatCUEError(err)
		}
	}
	if recVal := v.LookupPath(cue.ParsePath("recoverable")); recVal.Exists() {
		if spec.Recoverable, err = recVal.Bool(); err != nil {
			return spec, formatCUEError(err)
		}
	}

	return spec, nil
}

func parseKindList(v cue.Value, field string) ([]value.Kind, error) {
	listVal := v.LookupPath(cue.ParsePath(field))
	if !listVal.Exists() {
		return nil, nil
	}

	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var kinds []value.Kind
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		k, err := value.KindFromName(name)
		if err != nil {
			return nil, compileErrf(iter.Value(), "handlers."+field, "%v", err)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// checkTargets verifies that every branch target is a valid instruction
// index. Caught here so a bad program fails at compile time, not with a
// runtime trap.
func checkTargets(v cue.Value, instructions []kernel.Instruction) error {
	n := len(instructions)
	check := func(idx int, target kernel.Label) error {
		if int(target) >= n {
			return compileErrf(v, "program.instructions",
				"instruction %d: branch target @%d out of range (%d instructions)", idx, target, n)
		}
		return nil
	}

	for idx, in := range instructions {
		switch i := in.(type) {
		case kernel.Case:
			if err := check(idx, i.IfLeft); err != nil {
				return err
			}
			if err := check(idx, i.IfRight); err != nil {
				return err
			}
		case kernel.Jump:
			if err := check(idx, i.Target); err != nil {
				return err
			}
		case kernel.BranchIf:
			if err := check(idx, i.Target); err != nil {
				return err
			}
		}
	}
	return nil
}
