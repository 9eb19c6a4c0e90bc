// Package harness runs YAML-defined execution scenarios against the
// engine: stage resources, execute a compiled program, and check the
// sealed trace against declared expectations. Golden-trace comparison
// keeps the determinism contract under regression watch.
package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one execution scenario.
type Scenario struct {
	// Name uniquely identifies this scenario (also the golden file name).
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the path to the CUE program file, relative to the
	// scenario file location.
	Program string `yaml:"program"`

	// Resources are staged into the store before execution, in order.
	// Register and expectation entries refer to them by index.
	Resources []ResourceSpec `yaml:"resources,omitempty"`

	// Registers adds or overrides initial register bindings. Keys are
	// decimal register indices; values are value literals.
	Registers map[string]Literal `yaml:"registers,omitempty"`

	// Tokens is the fixed continuation-token sequence for deterministic
	// suspension handling.
	Tokens []string `yaml:"tokens,omitempty"`

	// Expect validates the initial execution's trace.
	Expect Expect `yaml:"expect"`

	// Resumes are follow-up resumptions applied in order.
	Resumes []ResumeStep `yaml:"resumes,omitempty"`
}

// ResourceSpec stages one resource before execution.
type ResourceSpec struct {
	Logic    string            `yaml:"logic"`
	Domain   string            `yaml:"domain"`
	Quantity uint64            `yaml:"quantity"`
	Metadata map[string]string `yaml:"metadata,omitempty"`
}

// Literal is a YAML value literal: a one-key map naming the variant.
//
//	{int: 42} {bool: true} {unit: true} {pair: [a, b]}
//	{left: v} {right: v} {resource: 0} {channel: 3}
//
// The resource variant refers to a staged resource by index.
type Literal map[string]any

// Expect declares trace expectations. Zero-valued fields are skipped.
type Expect struct {
	// Terminus is the expected disposition: halted, trapped, cancelled,
	// or suspended.
	Terminus string `yaml:"terminus"`

	// TrapKind is the expected trap code for a trapped terminus.
	TrapKind string `yaml:"trap_kind,omitempty"`

	// Result is the expected Halt value.
	Result Literal `yaml:"result,omitempty"`

	// Effects is the expected effect-name sequence in executed order.
	Effects []string `yaml:"effects,omitempty"`

	// GasRemaining is the expected unspent budget.
	GasRemaining *uint64 `yaml:"gas_remaining,omitempty"`

	// Consumed lists staged-resource indices that must end Consumed.
	Consumed []int `yaml:"consumed,omitempty"`
}

// ResumeStep continues a suspended execution.
type ResumeStep struct {
	// Token is the continuation token to resume.
	Token string `yaml:"token"`

	// Results are the injected handler results.
	Results []Literal `yaml:"results,omitempty"`

	// Expect validates the resumed execution's trace.
	Expect Expect `yaml:"expect"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly. The program path is resolved relative
// to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if !filepath.IsAbs(s.Program) && s.Program != "" {
		s.Program = filepath.Join(filepath.Dir(path), s.Program)
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Program == "" {
		return fmt.Errorf("program is required")
	}
	if _, err := os.Stat(s.Program); err != nil {
		return fmt.Errorf("program file: %w", err)
	}
	if s.Expect.Terminus == "" {
		return fmt.Errorf("expect.terminus is required")
	}
	for i, r := range s.Resources {
		if r.Logic == "" || r.Domain == "" {
			return fmt.Errorf("resources[%d]: logic and domain are required", i)
		}
	}
	for i, step := range s.Resumes {
		if step.Token == "" {
			return fmt.Errorf("resumes[%d]: token is required", i)
		}
		if step.Expect.Terminus == "" {
			return fmt.Errorf("resumes[%d]: expect.terminus is required", i)
		}
	}
	return nil
}
