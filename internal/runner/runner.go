// Package runner executes a built matrix and aggregates verdicts into a
// report. Units may run concurrently; results are reported in matrix order.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/roach88/solvermatrix/internal/matrix"
	"github.com/roach88/solvermatrix/internal/outcome"
	"github.com/roach88/solvermatrix/internal/scenario"
)

// ErrInvalidFilter is returned when the unit filter is not a valid glob.
var ErrInvalidFilter = errors.New("invalid filter pattern")

// Recorder persists unit results. store.RunRecorder implements it.
type Recorder interface {
	RecordUnit(ctx context.Context, r UnitResult) error
}

// Config controls a run.
type Config struct {
	// Parallel is the number of units executed at once. Values below 1 mean 1.
	Parallel int

	// Filter is a glob matched against "<container>/<unit>" and against the
	// bare unit name. Empty selects every unit.
	Filter string

	Recorder Recorder
	Logger   *slog.Logger
}

// UnitResult is one reported row.
type UnitResult struct {
	Seq              int             `json:"seq"`
	Container        string          `json:"container"`
	Unit             string          `json:"unit"`
	Model            string          `json:"model"`
	Solver           string          `json:"solver"`
	Interface        string          `json:"interface"`
	Labels           string          `json:"labels"`
	Status           scenario.Status `json:"status"`
	Verdict          outcome.Verdict `json:"verdict"`
	ArtifactPath     string          `json:"artifact_path,omitempty"`
	ArtifactRetained bool            `json:"artifact_retained,omitempty"`
	Duration         time.Duration   `json:"duration_ns"`
}

// FullName returns "<container>/<unit>".
func (r UnitResult) FullName() string { return r.Container + "/" + r.Unit }

// Report aggregates a run.
type Report struct {
	Units            []UnitResult `json:"units"`
	Passed           int          `json:"passed"`
	Failed           int          `json:"failed"`
	Skipped          int          `json:"skipped"`
	ExpectedFailures int          `json:"expected_failures"`
	Warnings         int          `json:"warnings"`
	Total            int          `json:"total"`
}

// OK reports whether no unit failed.
func (r *Report) OK() bool { return r.Failed == 0 }

func (r *Report) add(u UnitResult) {
	r.Units = append(r.Units, u)
	r.Total++
	switch u.Verdict.Kind {
	case outcome.KindPass:
		r.Passed++
	case outcome.KindFail:
		r.Failed++
	case outcome.KindSkip:
		r.Skipped++
	case outcome.KindExpectedFailure:
		r.ExpectedFailures++
	}
	if u.Verdict.Warning != "" {
		r.Warnings++
	}
}

// Select returns the units of m matching filter, in matrix order.
func Select(m *matrix.Matrix, filter string) ([]*matrix.Unit, error) {
	units := m.Units()
	if filter == "" {
		return units, nil
	}
	if _, err := filepath.Match(filter, ""); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidFilter, filter, err)
	}
	var out []*matrix.Unit
	for _, u := range units {
		if matches(filter, u.FullName()) || matches(filter, u.Name()) {
			out = append(out, u)
		}
	}
	return out, nil
}

func matches(pattern, name string) bool {
	ok, _ := filepath.Match(pattern, name)
	return ok
}

// Run executes the selected units of m and returns the aggregated report.
// Unit failures are verdicts, not errors; the error reports an invalid
// filter or results the recorder could not persist.
//
// Once ctx is done no further unit is started. Units left unstarted are
// interpreted as pipeline failures of their scenario and still reported.
func Run(ctx context.Context, m *matrix.Matrix, cfg Config) (*Report, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	units, err := Select(m, cfg.Filter)
	if err != nil {
		return nil, err
	}

	parallel := cfg.Parallel
	if parallel < 1 {
		parallel = 1
	}

	results := make([]matrix.Result, len(units))
	sem := semaphore.NewWeighted(int64(parallel))
	var wg sync.WaitGroup
	for i, u := range units {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = notStarted(u, err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = u.Run(ctx)
		}()
	}
	wg.Wait()

	// Results are persisted even when the run was interrupted.
	recordCtx := context.WithoutCancel(ctx)

	report := &Report{Units: make([]UnitResult, 0, len(units))}
	var recordErrs []error
	for i, u := range units {
		row := newUnitResult(i+1, u, results[i])
		report.add(row)

		logger.Debug("unit verdict", "unit", row.FullName(), "verdict", row.Verdict.Kind, "duration", row.Duration)
		if row.Verdict.Warning != "" {
			logger.Warn("expected failure did not occur", "unit", row.FullName(), "warning", row.Verdict.Warning)
		}

		if cfg.Recorder != nil {
			if err := cfg.Recorder.RecordUnit(recordCtx, row); err != nil {
				logger.Error("failed to record unit result", "unit", row.FullName(), "error", err)
				recordErrs = append(recordErrs, fmt.Errorf("%s: %w", row.FullName(), err))
			}
		}
	}

	if err := ctx.Err(); err != nil {
		logger.Warn("run interrupted", "error", err)
	}
	logger.Info("run finished",
		"total", report.Total,
		"passed", report.Passed,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"xfail", report.ExpectedFailures,
		"warnings", report.Warnings)

	if len(recordErrs) > 0 {
		return report, fmt.Errorf("failed to record results: %w", errors.Join(recordErrs...))
	}
	return report, nil
}

// notStarted is the result of a unit that was never started because the run
// was cancelled.
func notStarted(u *matrix.Unit, cause error) matrix.Result {
	s := u.Scenario()
	exec := &outcome.Execution{
		Scenario:    s,
		Labels:      u.Labels(),
		Description: s.Model,
		Err:         fmt.Errorf("unit not started: %w", cause),
	}
	return matrix.Result{Verdict: outcome.Interpret(exec), Execution: exec}
}

func newUnitResult(seq int, u *matrix.Unit, res matrix.Result) UnitResult {
	s := u.Scenario()
	row := UnitResult{
		Seq:       seq,
		Container: u.Container(),
		Unit:      u.Name(),
		Model:     s.Model,
		Solver:    s.Solver,
		Interface: s.Interface,
		Labels:    u.Labels().String(),
		Status:    s.Status,
		Verdict:   res.Verdict,
	}
	if exec := res.Execution; exec != nil {
		row.ArtifactPath = exec.ArtifactPath
		row.ArtifactRetained = exec.ArtifactRetained
		row.Duration = exec.Duration
	}
	return row
}
