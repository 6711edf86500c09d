package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/scorebox/internal/audit"
	"github.com/roach88/scorebox/internal/confval"
	"github.com/roach88/scorebox/internal/engine"
	"github.com/roach88/scorebox/internal/ledger"
	"github.com/roach88/scorebox/internal/suite"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Ticks   int
	Poll    time.Duration
	Review  uint64
	TraceDB string
	Configs []string
}

// RunReport is the final scoreboard printed when a run ends.
type RunReport struct {
	Suite  string              `json:"suite,omitempty"`
	Checks int                 `json:"checks"`
	Total  int                 `json:"total"`
	Report []ledger.ReportLine `json:"report"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <suite-dir>",
		Short: "Run a check suite against this machine",
		Long: `Run the scoring engine with a compiled check suite.

The engine loads every .cue suite file from the directory, binds the
checks, and evaluates them on a fixed cadence until interrupted. With
--ticks N the engine instead steps exactly N passes and exits, which
is useful for scripted scoring snapshots.

Examples:
  scorebox run ./suites
  scorebox run ./suites --poll 1s --review 5
  scorebox run ./suites --ticks 1 --format json
  scorebox run ./suites --trace-db ./trace.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Ticks, "ticks", 0, "step exactly N passes and exit (0 = run until interrupted)")
	cmd.Flags().DurationVar(&opts.Poll, "poll", 0, "pause between passes (default engine cadence)")
	cmd.Flags().Uint64Var(&opts.Review, "review", 0, "re-evaluate completed checks every N passes")
	cmd.Flags().StringVar(&opts.TraceDB, "trace-db", "", "write the audit trace to a SQLite file")
	cmd.Flags().StringSliceVar(&opts.Configs, "config", nil, "layered config files (JSON/YAML/TOML, first hit wins)")

	return cmd
}

// applyConfig fills unset cadence options from layered config files.
// Explicit flags always win over config values.
func applyConfig(opts *RunOptions, logger *slog.Logger) error {
	if len(opts.Configs) == 0 {
		return nil
	}
	reader := confval.NewReader(opts.Configs...)

	if opts.Poll == 0 {
		v, err := reader.Lookup("poll")
		if err != nil {
			return fmt.Errorf("config key poll: %w", err)
		}
		if s, ok := v.(confval.String); ok {
			d, err := time.ParseDuration(string(s))
			if err != nil {
				return fmt.Errorf("config key poll: %w", err)
			}
			opts.Poll = d
			logger.Debug("poll interval from config", "poll", d)
		}
	}

	if opts.Review == 0 {
		v, err := reader.Lookup("review")
		if err != nil {
			return fmt.Errorf("config key review: %w", err)
		}
		if n, ok := v.(confval.Int); ok && n > 0 {
			opts.Review = uint64(n)
			logger.Debug("review interval from config", "review", uint64(n))
		}
	}

	if opts.TraceDB == "" {
		v, err := reader.Lookup("trace_db")
		if err != nil {
			return fmt.Errorf("config key trace_db: %w", err)
		}
		if s, ok := v.(confval.String); ok {
			opts.TraceDB = string(s)
		}
	}
	return nil
}

func runSuite(opts *RunOptions, suiteDir string, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	if err := applyConfig(opts, logger); err != nil {
		return WrapExitError(ExitCommandError, "failed to read config", err)
	}

	logger.Info("loading suite", "dir", suiteDir)
	s, err := suite.LoadDir(suiteDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load suite", err)
	}
	logger.Info("suite loaded", "name", s.Name, "checks", len(s.Checks))

	tracePath := opts.TraceDB
	if tracePath == "" {
		tracePath = audit.InMemory
	}
	trace, err := audit.Open(tracePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace", err)
	}
	defer func() {
		if closeErr := trace.Close(); closeErr != nil {
			logger.Error("error closing trace", "error", closeErr)
		}
	}()

	e := engine.New(
		engine.WithLogger(logger),
		engine.WithRecorder(trace),
	)
	if opts.Poll > 0 {
		e.SetPollInterval(opts.Poll)
	}
	if opts.Review > 0 {
		e.SetReviewInterval(opts.Review)
	}
	suite.Bind(e, s, suite.BindOptions{})

	if opts.Ticks > 0 {
		for i := 0; i < opts.Ticks; i++ {
			e.RunTick()
		}
		return printReport(opts.RootOptions, cmd, s, e)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	fmt.Fprintln(cmd.OutOrStdout(), "Engine started. Press Ctrl-C to stop.")
	sig := <-sigChan
	logger.Info("received signal, shutting down", "signal", sig)
	e.Stop(true)
	<-done

	return printReport(opts.RootOptions, cmd, s, e)
}

func printReport(opts *RootOptions, cmd *cobra.Command, s *suite.Suite, e *engine.Engine) error {
	report := RunReport{
		Suite:  s.Name,
		Checks: len(s.Checks),
		Total:  e.TotalScore(),
		Report: e.ScoreReport(),
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if formatter.Format == "json" {
		return formatter.Success(report)
	}

	out := cmd.OutOrStdout()
	if report.Suite != "" {
		fmt.Fprintf(out, "Suite: %s (%d checks)\n", report.Suite, report.Checks)
	}
	for _, line := range report.Report {
		fmt.Fprintf(out, "  %4d  %s\n", line.Value, line.Reason)
	}
	fmt.Fprintf(out, "Total: %d\n", report.Total)
	return nil
}
