package engine

import (
	"errors"
	"fmt"
)

// Stage names the pipeline step an error came from.
type Stage string

const (
	StageGenerateModel       Stage = "GENERATE_MODEL"
	StageWarmstart           Stage = "WARMSTART"
	StageSolve               Stage = "SOLVE"
	StagePostSolveValidation Stage = "POST_SOLVE_VALIDATION"
	StageLoadSolution        Stage = "LOAD_SOLUTION"
	StageSaveSolution        Stage = "SAVE_SOLUTION"
	StageValidateSolution    Stage = "VALIDATE_SOLUTION"
)

// PipelineError is a fatal error raised while executing a unit.
type PipelineError struct {
	// Stage identifies the failing step.
	Stage Stage

	// Unit identifies the unit (model/solver/interface/labels).
	Unit string

	Err error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Unit != "" {
		return fmt.Sprintf("%s: %v (unit=%s)", e.Stage, e.Err, e.Unit)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the collaborator error.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage of a wrapped PipelineError.
func StageOf(err error) (Stage, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage, true
	}
	return "", false
}

// IsModelGenerationError reports whether model generation (or model lookup) failed.
func IsModelGenerationError(err error) bool {
	stage, ok := StageOf(err)
	return ok && stage == StageGenerateModel
}

// IsSolveError reports whether the solver plugin failed.
func IsSolveError(err error) bool {
	stage, ok := StageOf(err)
	return ok && stage == StageSolve
}

// IsPostSolveValidationError reports whether the post-solve validation hook failed.
func IsPostSolveValidationError(err error) bool {
	stage, ok := StageOf(err)
	return ok && stage == StagePostSolveValidation
}
