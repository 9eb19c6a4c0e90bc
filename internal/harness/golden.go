package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/weftlabs/weft/internal/resource"
	"github.com/weftlabs/weft/internal/value"
)

// Snapshot renders a scenario result as stable, human-readable text for
// golden comparison. Content hashes are deliberately omitted: the
// snapshot tracks observable behavior, while hash stability is covered
// by the determinism tests that compare raw trace encodings.
func Snapshot(r *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", r.Scenario.Name)
	fmt.Fprintf(&b, "program: %s\n", r.Compiled.Name)

	for i, run := range r.Runs {
		tr := run.Trace
		fmt.Fprintf(&b, "run %d:\n", i)
		fmt.Fprintf(&b, "  terminus: %s\n", tr.Terminus)
		if tr.ContinuationToken != "" {
			fmt.Fprintf(&b, "  token: %s\n", tr.ContinuationToken)
		}
		if tr.Result != nil {
			fmt.Fprintf(&b, "  result: %s\n", value.String(tr.Result))
		}
		fmt.Fprintf(&b, "  gas_remaining: %d\n", tr.GasRemaining)

		if len(tr.ExecutedEffects) > 0 {
			fmt.Fprintf(&b, "  effects:\n")
			for _, id := range tr.ExecutedEffects {
				rec := tr.EffectDetails[id]
				fmt.Fprintf(&b, "    %d %s pc=%d->%d in=%d out=%d\n",
					rec.LogicalTime, rec.EffectName, rec.PrePC, rec.PostPC,
					len(rec.InputResources), len(rec.OutputResources))
			}
		}

		available, consumed := 0, 0
		for _, st := range tr.FinalResourceStates {
			switch st {
			case resource.Available:
				available++
			case resource.Consumed:
				consumed++
			}
		}
		fmt.Fprintf(&b, "  resources: available=%d consumed=%d\n", available, consumed)
	}

	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/<name>.golden. Regenerate with `go test -update`.
func RunWithGolden(t *testing.T, s *Scenario) *Result {
	t.Helper()

	res, err := Run(s)
	if err != nil {
		t.Fatalf("run scenario: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, Snapshot(res))

	return res
}
