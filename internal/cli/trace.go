package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/scorebox/internal/audit"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Check    string // optional - filter to one check id
}

// TraceRow is one audit event prepared for output.
type TraceRow struct {
	Seq       int64  `json:"seq"`
	Tick      uint64 `json:"tick"`
	Type      string `json:"type"`
	CheckID   string `json:"check_id,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Completed bool   `json:"completed,omitempty"`
	ErrCode   string `json:"err_code,omitempty"`
	ScoreID   uint64 `json:"score_id,omitempty"`
	Value     int    `json:"value,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect a recorded audit trace",
		Long: `Read the audit trace written by a run with --trace-db.

Shows every recorded event in order: tick starts, check evaluations
with their outcomes, and score mutations.

Examples:
  scorebox trace --db ./trace.db
  scorebox trace --db ./trace.db --check check-3
  scorebox trace --db ./trace.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Check, "check", "", "filter to one check id")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "trace database not found", err)
	}

	trace, err := audit.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace database", err)
	}
	defer trace.Close()

	var events []audit.Event
	if opts.Check != "" {
		events, err = trace.EventsForCheck(ctx, opts.Check)
	} else {
		events, err = trace.Events(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if formatter.Format == "json" {
		rows := make([]TraceRow, len(events))
		for i, ev := range events {
			rows[i] = TraceRow{
				Seq:       ev.Seq,
				Tick:      ev.Tick,
				Type:      string(ev.Type),
				CheckID:   ev.CheckID,
				Kind:      ev.Kind,
				Completed: ev.Completed,
				ErrCode:   ev.ErrCode,
				ScoreID:   ev.ScoreID,
				Value:     ev.Value,
				Reason:    ev.Reason,
			}
		}
		return formatter.Success(rows)
	}

	for _, ev := range events {
		fmt.Fprintln(formatter.Writer, formatEvent(ev))
	}
	fmt.Fprintf(formatter.Writer, "%d events\n", len(events))
	return nil
}

// formatEvent renders one event as a single text line.
func formatEvent(ev audit.Event) string {
	switch ev.Type {
	case audit.EventTickStarted:
		return fmt.Sprintf("[%4d] tick %d started", ev.Seq, ev.Tick)
	case audit.EventCheckEvaluated:
		if ev.ErrCode != "" {
			return fmt.Sprintf("[%4d] tick %d  %s (%s) error %s", ev.Seq, ev.Tick, ev.CheckID, ev.Kind, ev.ErrCode)
		}
		return fmt.Sprintf("[%4d] tick %d  %s (%s) completed=%t", ev.Seq, ev.Tick, ev.CheckID, ev.Kind, ev.Completed)
	case audit.EventScoreUpserted:
		return fmt.Sprintf("[%4d] tick %d  score %d = %d (%s)", ev.Seq, ev.Tick, ev.ScoreID, ev.Value, ev.Reason)
	case audit.EventScoreRemoved:
		return fmt.Sprintf("[%4d] tick %d  score %d removed", ev.Seq, ev.Tick, ev.ScoreID)
	default:
		return fmt.Sprintf("[%4d] tick %d  %s", ev.Seq, ev.Tick, ev.Type)
	}
}
