package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/compiler"
	"github.com/weftlabs/weft/internal/engine"
	"github.com/weftlabs/weft/internal/harness"
	"github.com/weftlabs/weft/internal/kernel"
	"github.com/weftlabs/weft/internal/tracedb"
	"github.com/weftlabs/weft/internal/value"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string

	// Tokens overrides the continuation-token generator (for testing).
	// Empty means UUIDv7.
	Tokens engine.TokenGenerator
}

// RunDoc summarizes one execution for command output.
type RunDoc struct {
	Program      string `json:"program"`
	Terminus     string `json:"terminus"`
	TrapKind     string `json:"trap_kind,omitempty"`
	Result       string `json:"result,omitempty"`
	Token        string `json:"token,omitempty"`
	GasRemaining uint64 `json:"gas_remaining"`
	Effects      int    `json:"effects"`
	TraceHash    string `json:"trace_hash"`
	Archived     bool   `json:"archived,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <program.cue>",
		Short: "Compile and execute a program",
		Long: `Compile a program, execute it to a terminus, and print the sealed
trace summary. Manifest effects without a built-in handler get synthetic
handlers, so any compilable program runs.

With --db the sealed trace is archived to a SQLite trace database,
created on first use.

Exit codes:
  0 - execution halted or suspended
  1 - execution trapped
  2 - command error (compile failure, database error)

Examples:
  weft run ./programs/transfer.cue
  weft run ./programs/transfer.cue --db ./traces.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "archive the trace to this SQLite database")

	return cmd
}

func runProgram(opts *RunOptions, path string, cmd *cobra.Command) error {
	compiled, err := compiler.CompileFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "compile failed", err)
	}
	slog.Debug("program compiled", "name", compiled.Name, "gas", compiled.Gas)

	tokens := opts.Tokens
	if tokens == nil {
		tokens = engine.UUIDv7Generator{}
	}
	eng, err := engine.New(tokens, engine.WithBuiltins())
	if err != nil {
		return WrapExitError(ExitCommandError, "engine start failed", err)
	}
	defer eng.Close()

	if err := harness.RegisterManifest(eng, compiled.Handlers); err != nil {
		return WrapExitError(ExitCommandError, "handler registration failed", err)
	}

	initial := make(map[kernel.RegID]value.Value, len(compiled.Initial))
	for reg, v := range compiled.Initial {
		initial[reg] = v
	}

	res, err := eng.Execute(compiled.Program, initial, compiled.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "execution failed", err)
	}
	tr := res.Trace

	doc := RunDoc{
		Program:      compiled.Name,
		Terminus:     tr.Terminus.Kind.String(),
		TrapKind:     tr.Terminus.TrapKind,
		Token:        tr.ContinuationToken,
		GasRemaining: tr.GasRemaining,
		Effects:      len(tr.ExecutedEffects),
		TraceHash:    res.Hash.String(),
	}
	if tr.Result != nil {
		doc.Result = value.String(tr.Result)
	}

	if opts.Database != "" {
		db, err := tracedb.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "open trace database", err)
		}
		defer db.Close()
		if err := db.WriteTrace(cmd.Context(), tr); err != nil {
			return WrapExitError(ExitCommandError, "archive trace", err)
		}
		doc.Archived = true
	}

	if opts.Format == "json" {
		if err := writeJSONOK(cmd.OutOrStdout(), doc); err != nil {
			return err
		}
	} else {
		printRunDoc(cmd, doc)
	}

	if doc.Terminus == "trapped" {
		return NewExitError(ExitFailure, fmt.Sprintf("execution trapped: %s", doc.TrapKind))
	}
	return nil
}

func printRunDoc(cmd *cobra.Command, doc RunDoc) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "program:       %s\n", doc.Program)
	if doc.TrapKind != "" {
		fmt.Fprintf(w, "terminus:      %s (%s)\n", doc.Terminus, doc.TrapKind)
	} else {
		fmt.Fprintf(w, "terminus:      %s\n", doc.Terminus)
	}
	if doc.Result != "" {
		fmt.Fprintf(w, "result:        %s\n", doc.Result)
	}
	if doc.Token != "" {
		fmt.Fprintf(w, "token:         %s\n", doc.Token)
	}
	fmt.Fprintf(w, "gas remaining: %d\n", doc.GasRemaining)
	fmt.Fprintf(w, "effects:       %d\n", doc.Effects)
	fmt.Fprintf(w, "trace:         %s\n", doc.TraceHash)
	if doc.Archived {
		fmt.Fprintln(w, "archived")
	}
}
