package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/solvermatrix/internal/artifact"
	"github.com/roach88/solvermatrix/internal/catalog/fixture"
	"github.com/roach88/solvermatrix/internal/engine"
	"github.com/roach88/solvermatrix/internal/matrix"
	"github.com/roach88/solvermatrix/internal/outcome"
	"github.com/roach88/solvermatrix/internal/runner"
	"github.com/roach88/solvermatrix/internal/scenario"
	"github.com/roach88/solvermatrix/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Catalog                 string
	WorkDir                 string
	Parallel                int
	Filter                  string
	Categories              []string
	CleanupExpectedFailures bool
	Database                string

	// Now overrides the clock used for run timestamps (for testing).
	Now func() time.Time
}

// RunOutput is the JSON payload of the run command.
type RunOutput struct {
	RunID  string         `json:"run_id,omitempty"`
	Report *runner.Report `json:"report"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <registry>",
		Short: "Run the test matrix",
		Long: `Build the test matrix from a scenario registry and run every unit.

Each unit generates its model, solves it with the scenario's solver and
interface, saves the solution to an artifact in the work directory and
validates it against the model's baseline. Artifacts of failing units are
kept for inspection.

Exit codes:
  0 - All units passed
  1 - One or more units failed
  2 - Command error (invalid registry, catalog, etc.)

Examples:
  solvermatrix run registry.yaml --catalog models.yaml
  solvermatrix run registry.cue --catalog models.yaml --parallel 4
  solvermatrix run registry.yaml --catalog models.yaml --filter "Test_LP_*/*"
  solvermatrix run registry.yaml --catalog models.yaml --db history.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatrix(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "path to the model catalog YAML (required)")
	cmd.Flags().StringVar(&opts.WorkDir, "workdir", "artifacts", "directory for solution artifacts")
	cmd.Flags().IntVarP(&opts.Parallel, "parallel", "p", 1, "number of units run concurrently")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter units by glob pattern on <container>/<unit> or <unit>")
	cmd.Flags().StringSliceVar(&opts.Categories, "category", nil, "only run models tagged with one of these categories")
	cmd.Flags().BoolVar(&opts.CleanupExpectedFailures, "cleanup-xfail", true, "remove artifacts of expected-failure units that passed")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record verdicts in this SQLite database")
	_ = cmd.MarkFlagRequired("catalog")

	return cmd
}

func runMatrix(opts *RunOptions, registryPath string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)
	logger := newLogger(opts.RootOptions, formatter.GetErrWriter())
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	reg, err := scenario.LoadFile(registryPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, CodeRegistryInvalid, "failed to load registry", err)
	}
	formatter.VerboseLog("Loaded %d scenario(s) for %d model(s) from %s", reg.Len(), len(reg.ListModels()), registryPath)

	cat, err := fixture.LoadFile(opts.Catalog)
	if err != nil {
		return formatter.Fail(ExitCommandError, CodeCatalogInvalid, "failed to load catalog", err)
	}

	artifacts := artifact.NewManager(opts.WorkDir, logger)
	artifacts.CleanupExpectedFailures = opts.CleanupExpectedFailures

	eng, err := engine.New(engine.Config{Catalog: cat, Artifacts: artifacts, Logger: logger})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create engine", err)
	}

	m, err := (&matrix.Builder{Executor: eng, Categories: opts.Categories, Logger: logger}).Build(reg)
	if err != nil {
		return formatter.Fail(ExitCommandError, CodeRegistryInvalid, "failed to build matrix", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := runner.Config{Parallel: opts.Parallel, Filter: opts.Filter, Logger: logger}

	var rec *store.RunRecorder
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, CodeStore, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		rec, err = st.BeginRun(ctx, registryPath, now())
		if err != nil {
			return formatter.Fail(ExitCommandError, CodeStore, "failed to record run", err)
		}
		cfg.Recorder = rec
		logger.Debug("recording run", "run_id", rec.ID(), "db", opts.Database)
	}

	report, runErr := runner.Run(ctx, m, cfg)
	if errors.Is(runErr, runner.ErrInvalidFilter) {
		return formatter.Fail(ExitCommandError, CodeRegistryInvalid, "invalid filter", runErr)
	}

	out := RunOutput{Report: report}
	if rec != nil {
		out.RunID = rec.ID()
		if err := rec.Finish(context.WithoutCancel(ctx), report, now()); err != nil && runErr == nil {
			runErr = err
		}
	}

	if runErr != nil {
		return outputRecordFailure(formatter, out, runErr)
	}

	if formatter.Format == "json" {
		return outputRunJSON(formatter, out)
	}
	return outputRunText(formatter.Writer, out)
}

func outputRunJSON(f *OutputFormatter, out RunOutput) error {
	report := out.Report
	response := CLIResponse{Status: "ok", Data: out}
	if !report.OK() {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    CodeTestFailed,
			Message: fmt.Sprintf("%d unit(s) failed", report.Failed),
		}
	}

	if err := f.JSON(response); err != nil {
		return err
	}

	if !report.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d unit(s) failed", report.Failed))
	}
	return nil
}

// outputRecordFailure reports the verdicts of a run whose results could not
// be stored, then returns the store error. Its exit code wins over unit
// failures.
func outputRecordFailure(f *OutputFormatter, out RunOutput, err error) error {
	const message = "failed to store run history"
	if f.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   out,
			Error:  &CLIError{Code: CodeStore, Message: message, Details: err.Error()},
		}
		if outErr := f.JSON(response); outErr != nil {
			return outErr
		}
	} else {
		_ = outputRunText(f.Writer, out)
	}
	return WrapExitError(ExitCommandError, message, err)
}

func outputRunText(w io.Writer, out RunOutput) error {
	report := out.Report
	if report.Total == 0 {
		fmt.Fprintln(w, "No units selected.")
		return nil
	}

	for _, u := range report.Units {
		writeUnitLine(w, u)
	}

	fmt.Fprintln(w)
	writeContainerTable(w, report)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d skipped, %d expected failures, %d total\n",
		report.Passed, report.Failed, report.Skipped, report.ExpectedFailures, report.Total)
	if out.RunID != "" {
		fmt.Fprintf(w, "Run ID: %s\n", out.RunID)
	}

	if !report.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d unit(s) failed", report.Failed))
	}

	fmt.Fprintln(w, "✓ All units passed")
	return nil
}

func writeUnitLine(w io.Writer, u runner.UnitResult) {
	name := u.FullName()
	switch u.Verdict.Kind {
	case outcome.KindPass:
		fmt.Fprintf(w, "✓ %s\n", name)
	case outcome.KindExpectedFailure:
		fmt.Fprintf(w, "✓ %s (expected failure)\n", name)
	case outcome.KindSkip:
		fmt.Fprintf(w, "- %s (skipped: %s)\n", name, u.Verdict.Message)
	default:
		fmt.Fprintf(w, "✗ %s\n", name)
		writeIndented(w, u.Verdict.Message)
		if u.ArtifactRetained {
			fmt.Fprintf(w, "  artifact: %s\n", u.ArtifactPath)
		}
	}
	if u.Verdict.Warning != "" {
		fmt.Fprintln(w, "  warning:")
		writeIndented(w, u.Verdict.Warning)
	}
}

func writeIndented(w io.Writer, s string) {
	for _, line := range strings.Split(s, "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
}

type containerStats struct {
	name     string
	passed   int
	failed   int
	skipped  int
	xfail    int
	warnings int
	duration time.Duration
}

func writeContainerTable(w io.Writer, report *runner.Report) {
	var stats []*containerStats
	index := make(map[string]*containerStats)
	for _, u := range report.Units {
		s, ok := index[u.Container]
		if !ok {
			s = &containerStats{name: u.Container}
			index[u.Container] = s
			stats = append(stats, s)
		}
		switch u.Verdict.Kind {
		case outcome.KindPass:
			s.passed++
		case outcome.KindFail:
			s.failed++
		case outcome.KindSkip:
			s.skipped++
		case outcome.KindExpectedFailure:
			s.xfail++
		}
		if u.Verdict.Warning != "" {
			s.warnings++
		}
		s.duration += u.Duration
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Container", "Passed", "Failed", "Skipped", "XFail", "Warnings", "Duration"})
	t.SetColumnConfigs(countColumns("Passed", "Failed", "Skipped", "XFail", "Warnings", "Duration"))

	var total time.Duration
	for _, s := range stats {
		t.AppendRow(table.Row{s.name, s.passed, s.failed, s.skipped, s.xfail, s.warnings, s.duration.Round(time.Millisecond)})
		total += s.duration
	}
	t.AppendFooter(table.Row{"TOTAL", report.Passed, report.Failed, report.Skipped, report.ExpectedFailures, report.Warnings, total.Round(time.Millisecond)})
	t.SetStyle(table.StyleLight)
	t.Render()
}
