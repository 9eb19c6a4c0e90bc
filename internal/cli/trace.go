package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/content"
	"github.com/weftlabs/weft/internal/resource"
	"github.com/weftlabs/weft/internal/trace"
	"github.com/weftlabs/weft/internal/tracedb"
	"github.com/weftlabs/weft/internal/value"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
}

// TraceListDoc is one row of the trace listing.
type TraceListDoc struct {
	Hash         string `json:"hash"`
	ProgramHash  string `json:"program_hash"`
	Terminus     string `json:"terminus"`
	Effects      int    `json:"effects"`
	GasRemaining uint64 `json:"gas_remaining"`
	CreatedAt    string `json:"created_at"`
}

// TraceEffectDoc is one effect entry of a trace inspection.
type TraceEffectDoc struct {
	LogicalTime uint64   `json:"logical_time"`
	Name        string   `json:"name"`
	PrePC       uint32   `json:"pre_pc"`
	PostPC      uint32   `json:"post_pc"`
	Inputs      int      `json:"inputs"`
	Outputs     int      `json:"outputs"`
	Constraints []string `json:"constraints,omitempty"`
}

// TraceDoc is the full inspection payload for one trace.
type TraceDoc struct {
	Hash         string           `json:"hash"`
	ProgramHash  string           `json:"program_hash"`
	Terminus     string           `json:"terminus"`
	TrapKind     string           `json:"trap_kind,omitempty"`
	Token        string           `json:"token,omitempty"`
	Result       string           `json:"result,omitempty"`
	GasRemaining uint64           `json:"gas_remaining"`
	Effects      []TraceEffectDoc `json:"effects"`
	Available    int              `json:"resources_available"`
	Consumed     int              `json:"resources_consumed"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [hash]",
		Short: "Inspect archived traces",
		Long: `List archived traces, or inspect one by its content hash.

Examples:
  weft trace --db ./traces.db
  weft trace 4f2a... --db ./traces.db --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runTraceList(opts, cmd)
			}
			return runTraceShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the trace database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runTraceList(opts *TraceOptions, cmd *cobra.Command) error {
	db, err := tracedb.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "open trace database", err)
	}
	defer db.Close()

	infos, err := db.ListTraces(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "list traces", err)
	}

	docs := make([]TraceListDoc, 0, len(infos))
	for _, info := range infos {
		docs = append(docs, TraceListDoc{
			Hash:         info.Hash.String(),
			ProgramHash:  info.ProgramHash.String(),
			Terminus:     info.Terminus,
			Effects:      info.EffectCount,
			GasRemaining: info.GasRemaining,
			CreatedAt:    info.CreatedAt,
		})
	}

	if opts.Format == "json" {
		return writeJSONOK(cmd.OutOrStdout(), docs)
	}

	w := cmd.OutOrStdout()
	if len(docs) == 0 {
		fmt.Fprintln(w, "No traces archived.")
		return nil
	}
	for _, d := range docs {
		fmt.Fprintf(w, "%s  %-22s gas=%-6d effects=%d\n",
			d.Hash[:8], d.Terminus, d.GasRemaining, d.Effects)
	}
	fmt.Fprintf(w, "\n%d trace(s)\n", len(docs))
	return nil
}

func runTraceShow(opts *TraceOptions, hashStr string, cmd *cobra.Command) error {
	hash, err := content.ParseHash(hashStr)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid trace hash", err)
	}

	db, err := tracedb.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "open trace database", err)
	}
	defer db.Close()

	tr, err := db.ReadTrace(cmd.Context(), hash)
	if err != nil {
		if tracedb.IsNotFound(err) {
			return WrapExitError(ExitFailure, "trace not found", err)
		}
		return WrapExitError(ExitCommandError, "read trace", err)
	}

	doc := traceDoc(tr)
	if opts.Format == "json" {
		return writeJSONOK(cmd.OutOrStdout(), doc)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "trace:         %s\n", doc.Hash)
	fmt.Fprintf(w, "program:       %s\n", doc.ProgramHash)
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
	fmt.Fprintf(w, "resources:     available=%d consumed=%d\n", doc.Available, doc.Consumed)
	if len(doc.Effects) > 0 {
		fmt.Fprintln(w, "effects:")
		for _, e := range doc.Effects {
			fmt.Fprintf(w, "  %d %s pc=%d->%d in=%d out=%d\n",
				e.LogicalTime, e.Name, e.PrePC, e.PostPC, e.Inputs, e.Outputs)
		}
	}
	return nil
}

func traceDoc(tr *trace.ExecutionTrace) TraceDoc {
	doc := TraceDoc{
		Hash:         tr.TraceHash.String(),
		ProgramHash:  tr.ProgramHash.String(),
		Terminus:     tr.Terminus.Kind.String(),
		TrapKind:     tr.Terminus.TrapKind,
		Token:        tr.ContinuationToken,
		GasRemaining: tr.GasRemaining,
		Effects:      make([]TraceEffectDoc, 0, len(tr.ExecutedEffects)),
	}
	if tr.Result != nil {
		doc.Result = value.String(tr.Result)
	}
	for _, id := range tr.ExecutedEffects {
		rec := tr.EffectDetails[id]
		doc.Effects = append(doc.Effects, TraceEffectDoc{
			LogicalTime: rec.LogicalTime,
			Name:        rec.EffectName,
			PrePC:       rec.PrePC,
			PostPC:      rec.PostPC,
			Inputs:      len(rec.InputResources),
			Outputs:     len(rec.OutputResources),
			Constraints: rec.Constraints,
		})
	}
	for _, st := range tr.FinalResourceStates {
		switch st {
		case resource.Available:
			doc.Available++
		case resource.Consumed:
			doc.Consumed++
		}
	}
	return doc
}
