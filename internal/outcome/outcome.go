// Package outcome turns the raw result of executing a test unit into a
// verdict, according to the status the scenario declares.
//
//	status            pipeline error   matched   verdict
//	normal            yes              -         fail (pipeline error)
//	normal            no               true      pass
//	normal            no               false     fail (mismatch report)
//	expected_failure  yes              -         expected failure (passes)
//	expected_failure  no               true      pass + warning
//	expected_failure  no               false     expected failure (passes)
//	skip              -                -         skipped
package outcome

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/solvermatrix/internal/scenario"
)

// NoSolution is reported when a mismatching run produced no solution.
const NoSolution = "No Solution"

// errNoValidation marks an execution that neither failed nor validated.
var errNoValidation = errors.New("pipeline produced no validation result")

// Validation is the result of comparing a saved solution with its baseline.
type Validation struct {
	Matched    bool   `json:"matched"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Execution is everything the engine learned while running one unit.
type Execution struct {
	Scenario    scenario.Scenario
	Labels      scenario.LabelingMode
	Description string

	// Err is the fatal pipeline error, if any.
	Err error

	// Validation is nil when Err is set.
	Validation *Validation

	// Solution is the textual dump of the first solution, when HasSolution.
	Solution    string
	HasSolution bool

	ArtifactPath     string
	ArtifactRetained bool

	Duration time.Duration
}

// Kind classifies a verdict.
type Kind string

const (
	KindPass            Kind = "pass"
	KindFail            Kind = "fail"
	KindSkip            Kind = "skip"
	KindExpectedFailure Kind = "xfail"
)

// Verdict is the final interpretation of a unit.
type Verdict struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message,omitempty"`

	// Warning is set when an expected failure did not reproduce.
	Warning string `json:"warning,omitempty"`
}

// Passed reports whether the verdict counts as a passing test.
func (v Verdict) Passed() bool {
	return v.Kind == KindPass || v.Kind == KindExpectedFailure
}

// Skipped returns the verdict for a skip scenario. The pipeline never runs.
func Skipped(s scenario.Scenario) Verdict {
	return Verdict{Kind: KindSkip, Message: s.Message}
}

// Interpret maps an execution to a verdict for its scenario's status.
func Interpret(exec *Execution) Verdict {
	s := exec.Scenario
	if s.Status == scenario.StatusSkip {
		return Skipped(s)
	}

	pipelineErr := exec.Err
	if pipelineErr == nil && exec.Validation == nil {
		pipelineErr = errNoValidation
	}

	if s.Status == scenario.StatusExpectedFailure {
		switch {
		case pipelineErr != nil:
			return Verdict{Kind: KindExpectedFailure, Message: fmt.Sprintf("expected failure: %v", pipelineErr)}
		case exec.Validation.Matched:
			return Verdict{Kind: KindPass, Warning: UnexpectedSuccessWarning(exec)}
		default:
			return Verdict{Kind: KindExpectedFailure, Message: "expected failure: solution mismatch"}
		}
	}

	switch {
	case pipelineErr != nil:
		return Verdict{Kind: KindFail, Message: PipelineFailureMessage(exec, pipelineErr)}
	case exec.Validation.Matched:
		return Verdict{Kind: KindPass}
	default:
		return Verdict{Kind: KindFail, Message: MismatchMessage(exec)}
	}
}

// MismatchMessage reports a normal-case solution mismatch with the plugin,
// interface, problem type, comparison diagnostic and solution dump.
func MismatchMessage(exec *Execution) string {
	diag := ""
	if exec.Validation != nil {
		diag = exec.Validation.Diagnostic
	}
	dump := NoSolution
	if exec.HasSolution {
		dump = exec.Solution
	}
	return fmt.Sprintf("Solution mismatch for plugin %s, %s interface and problem type %s\n%s\n%s",
		exec.Scenario.Solver, exec.Scenario.Interface, exec.Description, diag, dump)
}

// PipelineFailureMessage reports a fatal pipeline error of a normal unit.
func PipelineFailureMessage(exec *Execution, err error) string {
	return fmt.Sprintf("Pipeline failure for plugin %s, %s interface and problem type %s: %v",
		exec.Scenario.Solver, exec.Scenario.Interface, exec.Description, err)
}

// UnexpectedSuccessWarning names a scenario marked as an expected failure that
// solved and matched its baseline, together with the recorded justification.
func UnexpectedSuccessWarning(exec *Execution) string {
	s := exec.Scenario
	return fmt.Sprintf("Test model '%s' (plugin %s, %s interface, %s labels) was marked as an expected "+
		"failure but no failure occurred. The reason given for the expected failure is:\n\n"+
		"****\n%s\n****\n\n"+
		"Please remove this case as an expected failure if the above issue has been "+
		"corrected in the latest version of the solver.",
		exec.Description, s.Solver, s.Interface, exec.Labels, s.Message)
}
