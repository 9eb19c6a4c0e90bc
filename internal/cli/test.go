package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
}

// ScenarioDoc reports one scenario's outcome.
type ScenarioDoc struct {
	Path     string `json:"path"`
	Name     string `json:"name,omitempty"`
	Passed   bool   `json:"passed"`
	Runs     int    `json:"runs,omitempty"`
	Terminus string `json:"terminus,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario.yaml>...",
		Short: "Run scenario files and check their expectations",
		Long: `Run each scenario file: stage its resources, execute its program,
apply its resumptions, and check every declared expectation.

Exit codes:
  0 - all scenarios passed
  1 - at least one scenario failed
  2 - command error (unreadable scenario file)

Examples:
  weft test ./scenarios/transfer.yaml
  weft test ./scenarios/*.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	return cmd
}

func runScenarios(opts *TestOptions, paths []string, cmd *cobra.Command) error {
	docs := make([]ScenarioDoc, 0, len(paths))
	failed := 0

	for _, path := range paths {
		doc := ScenarioDoc{Path: path}

		s, err := harness.LoadScenario(path)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("load scenario %s", path), err)
		}
		doc.Name = s.Name

		res, err := harness.Run(s)
		if err != nil {
			doc.Error = err.Error()
			failed++
		} else {
			doc.Passed = true
			doc.Runs = len(res.Runs)
			doc.Terminus = res.Final().Trace.Terminus.String()
		}
		docs = append(docs, doc)
	}

	if opts.Format == "json" {
		if failed > 0 {
			if err := writeJSONError(cmd.OutOrStdout(), "E_SCENARIO",
				fmt.Sprintf("%d of %d scenarios failed", failed, len(paths)), docs); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "scenarios failed")
		}
		return writeJSONOK(cmd.OutOrStdout(), docs)
	}

	w := cmd.OutOrStdout()
	for _, doc := range docs {
		if doc.Passed {
			fmt.Fprintf(w, "ok   %s (%d run(s), %s)\n", doc.Name, doc.Runs, doc.Terminus)
		} else {
			fmt.Fprintf(w, "FAIL %s\n     %s\n", doc.Name, doc.Error)
		}
	}
	if failed > 0 {
		fmt.Fprintf(w, "\n%d of %d scenarios failed\n", failed, len(paths))
		return NewExitError(ExitFailure, "scenarios failed")
	}
	fmt.Fprintf(w, "\n%d scenario(s) passed\n", len(paths))
	return nil
}
