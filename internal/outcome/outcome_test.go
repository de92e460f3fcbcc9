package outcome

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/solvermatrix/internal/scenario"
)

func exec(status scenario.Status, err error, v *Validation) *Execution {
	return &Execution{
		Scenario: scenario.Scenario{
			Model: "M1", Solver: "S1", Interface: "I1",
			Status: status, Message: "known infeasibility",
		},
		Labels:      scenario.Symbolic,
		Description: "M1",
		Err:         err,
		Validation:  v,
	}
}

func TestInterpret_Table(t *testing.T) {
	solveErr := errors.New("solver exited with status 3")

	tests := []struct {
		name       string
		exec       *Execution
		wantKind   Kind
		wantPassed bool
		wantWarn   bool
	}{
		{"normal pipeline error", exec(scenario.StatusNormal, solveErr, nil), KindFail, false, false},
		{"normal match", exec(scenario.StatusNormal, nil, &Validation{Matched: true}), KindPass, true, false},
		{"normal mismatch", exec(scenario.StatusNormal, nil, &Validation{Diagnostic: "x differs"}), KindFail, false, false},
		{"xfail pipeline error", exec(scenario.StatusExpectedFailure, solveErr, nil), KindExpectedFailure, true, false},
		{"xfail match", exec(scenario.StatusExpectedFailure, nil, &Validation{Matched: true}), KindPass, true, true},
		{"xfail mismatch", exec(scenario.StatusExpectedFailure, nil, &Validation{}), KindExpectedFailure, true, false},
		{"skip", exec(scenario.StatusSkip, nil, nil), KindSkip, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Interpret(tt.exec)
			assert.Equal(t, tt.wantKind, v.Kind)
			assert.Equal(t, tt.wantPassed, v.Passed())
			if tt.wantWarn {
				assert.NotEmpty(t, v.Warning)
			} else {
				assert.Empty(t, v.Warning)
			}
		})
	}
}

func TestInterpret_NormalPipelineErrorReportsError(t *testing.T) {
	v := Interpret(exec(scenario.StatusNormal, errors.New("solver exited with status 3"), nil))

	assert.Contains(t, v.Message, "solver exited with status 3")
	assert.Contains(t, v.Message, "S1")
	assert.Contains(t, v.Message, "I1")
}

func TestInterpret_MismatchMessage(t *testing.T) {
	e := exec(scenario.StatusNormal, nil, &Validation{Diagnostic: "variable x: got 2, want 1"})
	e.Description = "diet LP"

	v := Interpret(e)
	assert.Equal(t, KindFail, v.Kind)
	assert.Contains(t, v.Message, "Solution mismatch for plugin S1, I1 interface and problem type diet LP")
	assert.Contains(t, v.Message, "variable x: got 2, want 1")
	assert.Contains(t, v.Message, NoSolution)

	e.HasSolution = true
	e.Solution = "Variable: x Value: 2"
	v = Interpret(e)
	assert.Contains(t, v.Message, "Variable: x Value: 2")
	assert.NotContains(t, v.Message, NoSolution)
}

func TestInterpret_UnexpectedSuccessWarningNamesScenario(t *testing.T) {
	v := Interpret(exec(scenario.StatusExpectedFailure, nil, &Validation{Matched: true}))

	assert.Contains(t, v.Warning, "Test model 'M1'")
	assert.Contains(t, v.Warning, "plugin S1")
	assert.Contains(t, v.Warning, "I1 interface")
	assert.Contains(t, v.Warning, "known infeasibility")
}

func TestInterpret_MissingValidationIsPipelineError(t *testing.T) {
	v := Interpret(exec(scenario.StatusNormal, nil, nil))
	assert.Equal(t, KindFail, v.Kind)
	assert.Contains(t, v.Message, "no validation result")

	v = Interpret(exec(scenario.StatusExpectedFailure, nil, nil))
	assert.Equal(t, KindExpectedFailure, v.Kind)
}

func TestSkipped(t *testing.T) {
	v := Skipped(scenario.Scenario{Status: scenario.StatusSkip, Message: "solver not installed"})
	assert.Equal(t, KindSkip, v.Kind)
	assert.Equal(t, "solver not installed", v.Message)
	assert.False(t, v.Passed())
}
