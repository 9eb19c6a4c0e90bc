package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/compiler"
	"github.com/weftlabs/weft/internal/content"
	"github.com/weftlabs/weft/internal/engine"
	"github.com/weftlabs/weft/internal/harness"
	"github.com/weftlabs/weft/internal/kernel"
	"github.com/weftlabs/weft/internal/tracedb"
	"github.com/weftlabs/weft/internal/value"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Hash     string // optional, verify a single archived trace
}

// ReplayTraceDoc holds the verification outcome for one trace.
type ReplayTraceDoc struct {
	Hash     string `json:"hash"`
	Terminus string `json:"terminus,omitempty"`
	Verified bool   `json:"verified"`
	Error    string `json:"error,omitempty"`
}

// ReplayDoc holds the overall verification result.
type ReplayDoc struct {
	Traces      []ReplayTraceDoc `json:"traces"`
	Total       int              `json:"total"`
	AllVerified bool             `json:"all_verified"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [program.cue]",
		Short: "Verify archived traces",
		Long: `Without a program: decode every archived trace, recompute its
canonical encoding, and verify the content hash it was stored under.

With a program: compile and re-execute it, then verify the sealed trace
hash is present in the archive. An execution that no longer reproduces
an archived hash means determinism was lost somewhere.

Exit codes:
  0 - verification passed
  1 - verification failed
  2 - command error (database not found, compile failure, etc.)

Examples:
  weft replay --db ./traces.db
  weft replay --db ./traces.db --hash 4f2a...
  weft replay ./programs/transfer.cue --db ./traces.db`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runReplayProgram(opts, args[0], cmd)
			}
			return runReplayArchive(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Hash, "hash", "", "verify a single archived trace")

	return cmd
}

// runReplayProgram re-executes a program and checks its trace against
// the archive.
func runReplayProgram(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	compiled, err := compiler.CompileFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "compile failed", err)
	}

	eng, err := engine.New(engine.UUIDv7Generator{}, engine.WithBuiltins())
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

	db, err := tracedb.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "open trace database", err)
	}
	defer db.Close()

	doc := ReplayTraceDoc{
		Hash:     res.Hash.String(),
		Terminus: res.Trace.Terminus.String(),
	}
	if _, err := db.ReadTrace(cmd.Context(), res.Hash); err != nil {
		if !tracedb.IsNotFound(err) {
			return WrapExitError(ExitCommandError, "read trace", err)
		}
		doc.Error = "re-executed trace not found in archive"
	} else {
		doc.Verified = true
	}

	if opts.Format == "json" {
		if !doc.Verified {
			if err := writeJSONError(cmd.OutOrStdout(), "E_REPLAY", doc.Error, doc); err != nil {
				return err
			}
			return NewExitError(ExitFailure, doc.Error)
		}
		return writeJSONOK(cmd.OutOrStdout(), doc)
	}

	w := cmd.OutOrStdout()
	if doc.Verified {
		fmt.Fprintf(w, "ok   %s  %s (%s)\n", doc.Hash[:8], compiled.Name, doc.Terminus)
		return nil
	}
	fmt.Fprintf(w, "FAIL %s  %s: %s\n", doc.Hash[:8], compiled.Name, doc.Error)
	return NewExitError(ExitFailure, doc.Error)
}

// runReplayArchive verifies stored traces against their content hashes.
func runReplayArchive(opts *ReplayOptions, cmd *cobra.Command) error {
	db, err := tracedb.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "open trace database", err)
	}
	defer db.Close()

	var hashes []content.Hash
	if opts.Hash != "" {
		h, err := content.ParseHash(opts.Hash)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid trace hash", err)
		}
		hashes = []content.Hash{h}
	} else {
		infos, err := db.ListTraces(cmd.Context())
		if err != nil {
			return WrapExitError(ExitCommandError, "list traces", err)
		}
		for _, info := range infos {
			hashes = append(hashes, info.Hash)
		}
	}

	doc := ReplayDoc{
		Traces:      make([]ReplayTraceDoc, 0, len(hashes)),
		Total:       len(hashes),
		AllVerified: true,
	}
	for _, h := range hashes {
		td := ReplayTraceDoc{Hash: h.String()}
		tr, err := db.ReadTrace(cmd.Context(), h)
		if err != nil {
			if tracedb.IsNotFound(err) {
				return WrapExitError(ExitCommandError, "trace not found", err)
			}
			// Decode failure or hash mismatch: the archive does not
			// reproduce the committed trace.
			td.Error = err.Error()
			doc.AllVerified = false
		} else {
			td.Verified = true
			td.Terminus = tr.Terminus.String()
		}
		doc.Traces = append(doc.Traces, td)
	}

	if opts.Format == "json" {
		if !doc.AllVerified {
			if err := writeJSONError(cmd.OutOrStdout(), "E_VERIFY",
				"trace verification failed", doc); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "trace verification failed")
		}
		return writeJSONOK(cmd.OutOrStdout(), doc)
	}

	w := cmd.OutOrStdout()
	if doc.Total == 0 {
		fmt.Fprintln(w, "No traces archived.")
		return nil
	}
	for _, td := range doc.Traces {
		if td.Verified {
			fmt.Fprintf(w, "ok   %s  %s\n", td.Hash[:8], td.Terminus)
		} else {
			fmt.Fprintf(w, "FAIL %s  %s\n", td.Hash[:8], td.Error)
		}
	}
	if doc.AllVerified {
		fmt.Fprintf(w, "\n%d trace(s) verified\n", doc.Total)
		return nil
	}
	fmt.Fprintln(w, "\ntrace verification failed")
	return NewExitError(ExitFailure, "trace verification failed")
}
