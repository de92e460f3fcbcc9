package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/solvermatrix/internal/outcome"
	"github.com/roach88/solvermatrix/internal/runner"
	"github.com/roach88/solvermatrix/internal/scenario"
)

// ErrRunNotFound is returned by ReadRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded harness invocation.
type Run struct {
	ID               string     `json:"id"`
	Registry         string     `json:"registry"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	Total            int        `json:"total"`
	Passed           int        `json:"passed"`
	Failed           int        `json:"failed"`
	Skipped          int        `json:"skipped"`
	ExpectedFailures int        `json:"expected_failures"`
	Warnings         int        `json:"warnings"`
}

// RunRecorder appends unit results to one run. It implements runner.Recorder.
type RunRecorder struct {
	store *Store
	id    string
}

var _ runner.Recorder = (*RunRecorder)(nil)

// ID returns the run id.
func (r *RunRecorder) ID() string { return r.id }

// BeginRun inserts a new run row with a UUIDv7 id.
func (s *Store) BeginRun(ctx context.Context, registry string, startedAt time.Time) (*RunRecorder, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("begin run: generate id: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, registry, started_at)
		VALUES (?, ?, ?)
	`, id.String(), registry, formatTime(startedAt))
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}

	return &RunRecorder{store: s, id: id.String()}, nil
}

// RecordUnit inserts one unit result.
func (r *RunRecorder) RecordUnit(ctx context.Context, u runner.UnitResult) error {
	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO unit_results
		(run_id, seq, container, unit, model, solver, interface, labels, status, verdict,
		 message, warning, artifact_path, artifact_retained, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.id,
		u.Seq,
		u.Container,
		u.Unit,
		u.Model,
		u.Solver,
		u.Interface,
		u.Labels,
		string(u.Status),
		string(u.Verdict.Kind),
		u.Verdict.Message,
		u.Verdict.Warning,
		u.ArtifactPath,
		u.ArtifactRetained,
		int64(u.Duration),
	)
	if err != nil {
		return fmt.Errorf("record unit %s: %w", u.FullName(), err)
	}
	return nil
}

// Finish stores the report counters and the finish time.
func (r *RunRecorder) Finish(ctx context.Context, report *runner.Report, finishedAt time.Time) error {
	_, err := r.store.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, total = ?, passed = ?, failed = ?, skipped = ?,
		    expected_failures = ?, warnings = ?
		WHERE id = ?
	`,
		formatTime(finishedAt),
		report.Total,
		report.Passed,
		report.Failed,
		report.Skipped,
		report.ExpectedFailures,
		report.Warnings,
		r.id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// ListRuns returns every run, most recent first.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.Query(ctx, `
		SELECT id, registry, started_at, finished_at, total, passed, failed, skipped, expected_failures, warnings
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns a run and its unit results in seq order.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, []runner.UnitResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, registry, started_at, finished_at, total, passed, failed, skipped, expected_failures, warnings
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, nil, err
	}

	rows, err := s.Query(ctx, `
		SELECT seq, container, unit, model, solver, interface, labels, status, verdict,
		       message, warning, artifact_path, artifact_retained, duration_ns
		FROM unit_results
		WHERE run_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return Run{}, nil, fmt.Errorf("query unit results: %w", err)
	}
	defer rows.Close()

	units := []runner.UnitResult{}
	for rows.Next() {
		var (
			u               runner.UnitResult
			status, verdict string
			durationNS      int64
		)
		if err := rows.Scan(
			&u.Seq, &u.Container, &u.Unit, &u.Model, &u.Solver, &u.Interface, &u.Labels,
			&status, &verdict, &u.Verdict.Message, &u.Verdict.Warning,
			&u.ArtifactPath, &u.ArtifactRetained, &durationNS,
		); err != nil {
			return Run{}, nil, fmt.Errorf("scan unit result: %w", err)
		}
		u.Status = scenario.Status(status)
		u.Verdict.Kind = outcome.Kind(verdict)
		u.Duration = time.Duration(durationNS)
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return Run{}, nil, fmt.Errorf("iterate unit results: %w", err)
	}
	return run, units, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		startedAt  string
		finishedAt sql.NullString
	)
	err := row.Scan(&run.ID, &run.Registry, &startedAt, &finishedAt,
		&run.Total, &run.Passed, &run.Failed, &run.Skipped, &run.ExpectedFailures, &run.Warnings)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	run.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("scan run %s: started_at: %w", run.ID, err)
	}
	if finishedAt.Valid {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return Run{}, fmt.Errorf("scan run %s: finished_at: %w", run.ID, err)
		}
		run.FinishedAt = &t
	}
	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
