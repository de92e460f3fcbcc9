package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/roach88/solvermatrix/internal/outcome"
	"github.com/roach88/solvermatrix/internal/runner"
	"github.com/roach88/solvermatrix/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// RunDetail is the JSON payload of history --run.
type RunDetail struct {
	Run   store.Run           `json:"run"`
	Units []runner.UnitResult `json:"units"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Long: `Show runs recorded with run --db.

Without --run, lists every run, most recent first. With --run, prints the
verdict of every unit of that run.

Examples:
  solvermatrix history --db history.db
  solvermatrix history --db history.db --run 0190b2f4-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the units of this run")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func showHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)
	ctx := cmd.Context()

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, CodeStore, "failed to open database", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, CodeStore, "failed to list runs", err)
		}
		if formatter.Format == "json" {
			return formatter.Success(runs)
		}
		writeRunsTable(formatter.Writer, runs)
		return nil
	}

	run, units, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		return formatter.Fail(ExitCommandError, CodeRunNotFound, "run not found", err)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, CodeStore, "failed to read run", err)
	}
	if formatter.Format == "json" {
		return formatter.Success(RunDetail{Run: run, Units: units})
	}
	writeRunDetail(formatter.Writer, run, units)
	return nil
}

func writeRunsTable(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Run ID", "Registry", "Started", "Total", "Passed", "Failed", "Skipped", "XFail", "Warnings"})
	t.SetColumnConfigs(countColumns("Total", "Passed", "Failed", "Skipped", "XFail", "Warnings"))
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID,
			r.Registry,
			r.StartedAt.Local().Format(time.DateTime),
			r.Total,
			r.Passed,
			r.Failed,
			r.Skipped,
			r.ExpectedFailures,
			r.Warnings,
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

func writeRunDetail(w io.Writer, run store.Run, units []runner.UnitResult) {
	fmt.Fprintf(w, "Run %s (%s, started %s)\n\n", run.ID, run.Registry, run.StartedAt.Local().Format(time.DateTime))

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Container", "Unit", "Status", "Verdict", "Duration"})
	t.SetColumnConfigs(countColumns("#", "Duration"))
	for _, u := range units {
		t.AppendRow(table.Row{u.Seq, u.Container, u.Unit, u.Status, u.Verdict.Kind, u.Duration.Round(time.Millisecond)})
	}
	t.SetStyle(table.StyleLight)
	t.Render()

	for _, u := range units {
		if u.Verdict.Kind != outcome.KindFail && u.Verdict.Warning == "" {
			continue
		}
		fmt.Fprintln(w)
		writeUnitLine(w, u)
	}
}

func countColumns(names ...string) []table.ColumnConfig {
	configs := make([]table.ColumnConfig, len(names))
	for i, name := range names {
		configs[i] = table.ColumnConfig{Name: name, Align: text.AlignRight}
	}
	return configs
}
