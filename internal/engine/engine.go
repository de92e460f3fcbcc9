package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/solvermatrix/internal/artifact"
	"github.com/roach88/solvermatrix/internal/catalog"
	"github.com/roach88/solvermatrix/internal/outcome"
	"github.com/roach88/solvermatrix/internal/scenario"
)

// Config configures an Engine.
type Config struct {
	Catalog   catalog.Catalog
	Artifacts *artifact.Manager

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now defaults to time.Now. Tests inject a fixed clock.
	Now func() time.Time
}

// Engine runs units through the generate, solve, validate and cleanup pipeline.
// It holds no per-unit state and is safe for concurrent use as long as the
// catalog hands out independent model instances.
type Engine struct {
	catalog   catalog.Catalog
	artifacts *artifact.Manager
	logger    *slog.Logger
	now       func() time.Time
}

// New validates cfg and returns an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("engine: catalog is required")
	}
	if cfg.Artifacts == nil {
		return nil, errors.New("engine: artifact manager is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		catalog:   cfg.Catalog,
		artifacts: cfg.Artifacts,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}, nil
}

// UnitID formats the identity used in logs and pipeline errors.
func UnitID(s scenario.Scenario, mode scenario.LabelingMode) string {
	return fmt.Sprintf("%s/%s/%s/%s", s.Model, s.Solver, s.Interface, mode)
}

// Execute runs one unit and reports what happened. It never returns a nil
// Execution; pipeline failures are recorded in Execution.Err.
func (e *Engine) Execute(ctx context.Context, s scenario.Scenario, mode scenario.LabelingMode) (exec *outcome.Execution) {
	start := e.now()
	unit := UnitID(s, mode)
	exec = &outcome.Execution{Scenario: s, Labels: mode, Description: s.Model}
	stage := StageGenerateModel

	fail := func(err error) *outcome.Execution {
		exec.Err = &PipelineError{Stage: stage, Unit: unit, Err: err}
		exec.Validation = nil
		return exec
	}

	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Errorf("panic: %v", r))
		}
		if exec.ArtifactPath != "" {
			matched := exec.Validation != nil && exec.Validation.Matched
			exec.ArtifactRetained = e.artifacts.Retain(s.Status, exec.Err != nil, matched)
			e.artifacts.Settle(exec.ArtifactPath, exec.ArtifactRetained)
		}
		exec.Duration = e.now().Sub(start)

		attrs := []any{"unit", unit, "duration", exec.Duration}
		if exec.Err != nil {
			e.logger.Info("unit pipeline failed", append(attrs, "stage", stage, "error", exec.Err)...)
			return
		}
		e.logger.Info("unit finished", append(attrs, "matched", exec.Validation.Matched)...)
	}()

	e.logger.Debug("unit started", "unit", unit, "status", s.Status)

	model, err := e.catalog.ModelFor(s.Model)
	if err != nil {
		return fail(err)
	}
	exec.Description = model.Description()

	// Step 1.
	exec.ArtifactPath = e.artifacts.Path(artifact.Key{
		Model:       s.Model,
		Description: exec.Description,
		Solver:      s.Solver,
		Interface:   s.Interface,
		Labels:      mode,
	})
	e.artifacts.ClearStale(exec.ArtifactPath)

	// Steps 2-3.
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if err := model.GenerateModel(ctx, s.ImportSuffixes); err != nil {
		return fail(err)
	}
	stage = StageWarmstart
	if err := model.WarmstartModel(ctx); err != nil {
		return fail(err)
	}

	// Step 4.
	stage = StageSolve
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	handle, results, err := model.Solve(ctx, s.Solver, s.Interface, s.IOOptions, mode.SymbolicLabels())
	if err != nil {
		return fail(err)
	}
	if results == nil {
		return fail(errors.New("solver returned no results"))
	}

	// Step 5.
	stage = StagePostSolveValidation
	if err := model.PostSolveValidation(ctx, results); err != nil {
		return fail(err)
	}

	// Step 6.
	stage = StageLoadSolution
	var fill *float64
	if handle != nil {
		fill = handle.DefaultVariableValue()
	}
	if err := model.LoadSolution(results, fill); err != nil {
		return fail(err)
	}

	// Step 7.
	stage = StageSaveSolution
	suffixes := s.TestSuffixes
	if len(suffixes) == 0 {
		suffixes = model.TestSuffixes()
	}
	if err := model.SaveCurrentSolution(exec.ArtifactPath, suffixes); err != nil {
		return fail(err)
	}

	// Step 8.
	stage = StageValidateSolution
	matched, diagnostic, err := model.ValidateCurrentSolution(suffixes)
	if err != nil {
		return fail(err)
	}
	exec.Validation = &outcome.Validation{Matched: matched, Diagnostic: diagnostic}

	if !matched {
		// Best effort: the dump is only a diagnostic aid.
		if err := model.StoreSolution(results); err != nil {
			e.logger.Debug("storing solution for report failed", "unit", unit, "error", err)
		}
		if results.SolutionCount() > 0 {
			exec.Solution = results.Solution(0)
			exec.HasSolution = true
		}
	}

	// Step 9 runs in the deferred func.
	return exec
}
