package harness

import (
	"fmt"
	"strconv"

	"github.com/weftlabs/weft/internal/compiler"
	"github.com/weftlabs/weft/internal/effect"
	"github.com/weftlabs/weft/internal/engine"
	"github.com/weftlabs/weft/internal/kernel"
	"github.com/weftlabs/weft/internal/resource"
	"github.com/weftlabs/weft/internal/value"
)

// Result carries everything a scenario execution produced.
type Result struct {
	Scenario *Scenario
	Compiled *compiler.Compiled

	// Staged holds the IDs of pre-staged resources, in declaration order.
	Staged []resource.ID

	// Runs holds the initial execution followed by each resume, in order.
	Runs []*kernel.RunResult
}

// Final returns the last run's result.
func (r *Result) Final() *kernel.RunResult {
	return r.Runs[len(r.Runs)-1]
}

// Run executes a scenario and checks every declared expectation.
// Expectation mismatches are errors, so callers get one failure path for
// both infrastructure problems and behavioral regressions.
func Run(s *Scenario) (*Result, error) {
	compiled, err := compiler.CompileFile(s.Program)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	store := resource.NewStore()
	staged := make([]resource.ID, 0, len(s.Resources))
	for _, spec := range s.Resources {
		staged = append(staged, store.Put(resource.Resource{
			Logic:    spec.Logic,
			Domain:   spec.Domain,
			Quantity: resource.NewQuantity(spec.Quantity),
			Metadata: spec.Metadata,
			State:    resource.Available,
		}))
	}

	eng, err := engine.New(
		engine.NewFixedGenerator(s.Tokens...),
		engine.WithStore(store),
		engine.WithBuiltins(),
	)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	defer eng.Close()

	if err := RegisterManifest(eng, compiled.Handlers); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	initial := make(map[kernel.RegID]value.Value, len(compiled.Initial)+len(s.Registers))
	for reg, v := range compiled.Initial {
		initial[reg] = v
	}
	for label, lit := range s.Registers {
		idx, err := strconv.ParseUint(label, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: register label %q: %w", s.Name, label, err)
		}
		v, err := parseLiteral(lit, staged)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: register %s: %w", s.Name, label, err)
		}
		initial[kernel.RegID(idx)] = v
	}

	result := &Result{Scenario: s, Compiled: compiled, Staged: staged}

	res, err := eng.Execute(compiled.Program, initial, compiled.Context())
	if err != nil {
		return nil, fmt.Errorf("scenario %s: execute: %w", s.Name, err)
	}
	result.Runs = append(result.Runs, res)
	if err := checkExpect("expect", s.Expect, res, staged); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	for i, step := range s.Resumes {
		results := make([]value.Value, 0, len(step.Results))
		for n, lit := range step.Results {
			v, err := parseLiteral(lit, staged)
			if err != nil {
				return nil, fmt.Errorf("scenario %s: resumes[%d].results[%d]: %w", s.Name, i, n, err)
			}
			results = append(results, v)
		}

		res, err := eng.Resume(step.Token, results)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: resumes[%d]: %w", s.Name, i, err)
		}
		result.Runs = append(result.Runs, res)
		if err := checkExpect(fmt.Sprintf("resumes[%d].expect", i), step.Expect, res, staged); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
	}

	return result, nil
}

// RegisterManifest registers synthetic handlers for manifest entries the
// engine does not already provide. Suspending entries yield; the rest
// complete with zero values so compile-checked programs can run without
// host code.
func RegisterManifest(eng *engine.Engine, specs []effect.Spec) error {
	for _, spec := range specs {
		if eng.HasHandler(spec.Name) {
			continue
		}

		fn, err := syntheticHandler(spec)
		if err != nil {
			return err
		}
		if _, err := eng.RegisterHandler(spec, fn); err != nil {
			return err
		}
	}
	return nil
}

func syntheticHandler(spec effect.Spec) (effect.Handler, error) {
	if spec.MaySuspend {
		return func(effect.Call) effect.Outcome {
			return effect.Suspend{}
		}, nil
	}

	results := make([]value.Value, 0, len(spec.Outputs))
	for _, k := range spec.Outputs {
		v, err := zeroValue(k)
		if err != nil {
			return nil, fmt.Errorf("handler %s: %w", spec.Name, err)
		}
		results = append(results, v)
	}
	return func(effect.Call) effect.Outcome {
		return effect.Complete{Results: results}
	}, nil
}

func zeroValue(k value.Kind) (value.Value, error) {
	switch k {
	case value.KindAny, value.KindUnit:
		return value.Unit{}, nil
	case value.KindBool:
		return value.Bool(false), nil
	case value.KindInt:
		return value.Int(0), nil
	case value.KindPair:
		return value.Pair{First: value.Unit{}, Second: value.Unit{}}, nil
	case value.KindSum:
		return value.Sum{Side: value.Left, Inner: value.Unit{}}, nil
	default:
		return nil, fmt.Errorf("cannot synthesize a %s value; register a real handler", k)
	}
}

// checkExpect validates one run against one expectation block.
func checkExpect(label string, e Expect, res *kernel.RunResult, staged []resource.ID) error {
	tr := res.Trace

	if got := tr.Terminus.Kind.String(); got != e.Terminus {
		return fmt.Errorf("%s.terminus: want %s, got %s", label, e.Terminus, tr.Terminus)
	}
	if e.TrapKind != "" && tr.Terminus.TrapKind != e.TrapKind {
		return fmt.Errorf("%s.trap_kind: want %s, got %s", label, e.TrapKind, tr.Terminus.TrapKind)
	}

	if e.Result != nil {
		want, err := parseLiteral(e.Result, staged)
		if err != nil {
			return fmt.Errorf("%s.result: %w", label, err)
		}
		if !value.Equal(want, tr.Result) {
			return fmt.Errorf("%s.result: want %s, got %s", label, value.String(want), value.String(tr.Result))
		}
	}

	if e.Effects != nil {
		var got []string
		for _, id := range tr.ExecutedEffects {
			got = append(got, tr.EffectDetails[id].EffectName)
		}
		if len(got) != len(e.Effects) {
			return fmt.Errorf("%s.effects: want %v, got %v", label, e.Effects, got)
		}
		for i := range got {
			if got[i] != e.Effects[i] {
				return fmt.Errorf("%s.effects[%d]: want %s, got %s", label, i, e.Effects[i], got[i])
			}
		}
	}

	if e.GasRemaining != nil && tr.GasRemaining != *e.GasRemaining {
		return fmt.Errorf("%s.gas_remaining: want %d, got %d", label, *e.GasRemaining, tr.GasRemaining)
	}

	for _, idx := range e.Consumed {
		if idx < 0 || idx >= len(staged) {
			return fmt.Errorf("%s.consumed: index %d out of range (%d staged)", label, idx, len(staged))
		}
		if st := tr.FinalResourceStates[staged[idx]]; st != resource.Consumed {
			return fmt.Errorf("%s.consumed[%d]: resource is %s", label, idx, st)
		}
	}

	return nil
}
