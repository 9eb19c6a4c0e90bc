package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// ValidationResult reports one program's compile check.
type ValidationResult struct {
	Path     string `json:"path"`
	Valid    bool   `json:"valid"`
	Name     string `json:"name,omitempty"`
	Error    string `json:"error,omitempty"`
	Handlers int    `json:"handlers,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <program.cue>...",
		Short: "Compile-check program files",
		Long: `Compile each program file and report errors without executing.

Exit codes:
  0 - all programs compile
  1 - at least one program failed to compile

Examples:
  weft validate ./programs/transfer.cue
  weft validate ./programs/*.cue --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, paths []string, cmd *cobra.Command) error {
	results := make([]ValidationResult, 0, len(paths))
	failed := 0

	for _, path := range paths {
		r := ValidationResult{Path: path}
		compiled, err := compiler.CompileFile(path)
		if err != nil {
			r.Error = compileErrorText(err)
			failed++
		} else {
			r.Valid = true
			r.Name = compiled.Name
			r.Handlers = len(compiled.Handlers)
		}
		results = append(results, r)
	}

	if opts.Format == "json" {
		if failed > 0 {
			if err := writeJSONError(cmd.OutOrStdout(), "E_COMPILE",
				fmt.Sprintf("%d of %d programs failed", failed, len(paths)), results); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "validation failed")
		}
		return writeJSONOK(cmd.OutOrStdout(), results)
	}

	w := cmd.OutOrStdout()
	for _, r := range results {
		if r.Valid {
			fmt.Fprintf(w, "ok   %s (%s, %d handlers)\n", r.Path, r.Name, r.Handlers)
		} else {
			fmt.Fprintf(w, "FAIL %s\n     %s\n", r.Path, r.Error)
		}
	}
	if failed > 0 {
		fmt.Fprintf(w, "\n%d of %d programs failed\n", failed, len(paths))
		return NewExitError(ExitFailure, "validation failed")
	}
	fmt.Fprintf(w, "\n%d programs ok\n", len(paths))
	return nil
}

// compileErrorText renders a compile failure with its source position
// when one is available.
func compileErrorText(err error) string {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return ce.Error()
	}
	return err.Error()
}
