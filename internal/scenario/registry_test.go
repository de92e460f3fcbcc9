package scenario

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_GroupsScenariosByModel(t *testing.T) {
	reg, err := NewRegistry(
		[]ModelEntry{{ID: "M1", Categories: []string{"smoke"}}, {ID: "M2"}, {ID: "M3"}},
		[]Scenario{
			{Model: "M2", Solver: "S1", Interface: "I1", Status: StatusNormal},
			{Model: "M1", Solver: "S1", Interface: "I1", Status: StatusNormal},
			{Model: "M1", Solver: "S2", Interface: "I1", Status: StatusSkip, Message: "not installed"},
		},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"M1", "M2", "M3"}, reg.ListModels())
	assert.Equal(t, 3, reg.Len())

	m1, err := reg.ScenariosFor("M1")
	require.NoError(t, err)
	require.Len(t, m1, 2)
	assert.Equal(t, "S1", m1[0].Solver)
	assert.Equal(t, StatusSkip, m1[1].Status)

	m3, err := reg.ScenariosFor("M3")
	require.NoError(t, err)
	assert.Empty(t, m3)

	all := reg.All()
	require.Len(t, all, 3)
	assert.Equal(t, "M1", all[0].Model)
	assert.Equal(t, "M2", all[2].Model)

	cats, err := reg.Categories("M1")
	require.NoError(t, err)
	assert.Equal(t, []string{"smoke"}, cats)
}

func TestNewRegistry_UnknownModel(t *testing.T) {
	_, err := NewRegistry(
		[]ModelEntry{{ID: "M1"}},
		[]Scenario{{Model: "M9", Solver: "S1", Interface: "I1", Status: StatusNormal}},
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownModel))
}

func TestNewRegistry_DuplicateKey(t *testing.T) {
	_, err := NewRegistry(
		[]ModelEntry{{ID: "M1"}},
		[]Scenario{
			{Model: "M1", Solver: "S1", Interface: "I1", Status: StatusNormal},
			{Model: "M1", Solver: "S1", Interface: "I1", Status: StatusSkip},
		},
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateScenario))
}

func TestNewRegistry_RequiredFields(t *testing.T) {
	tests := []struct {
		name     string
		scenario Scenario
		wantErr  string
	}{
		{"missing solver", Scenario{Model: "M1", Interface: "I1", Status: StatusNormal}, "solver is required"},
		{"missing interface", Scenario{Model: "M1", Solver: "S1", Status: StatusNormal}, "interface is required"},
		{"bad status", Scenario{Model: "M1", Solver: "S1", Interface: "I1", Status: "flaky"}, "invalid status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry([]ModelEntry{{ID: "M1"}}, []Scenario{tt.scenario})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegistry_LookupUnknownModel(t *testing.T) {
	reg, err := NewRegistry([]ModelEntry{{ID: "M1"}}, nil)
	require.NoError(t, err)

	_, err = reg.ScenariosFor("nope")
	assert.ErrorIs(t, err, ErrUnknownModel)

	_, err = reg.Categories("nope")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	reg, err := NewRegistry(
		[]ModelEntry{{ID: "M1"}},
		[]Scenario{{
			Model: "M1", Solver: "S1", Interface: "I1", Status: StatusNormal,
			ImportSuffixes: []string{"dual"},
			IOOptions:      map[string]any{"symbolic_solver_labels": true},
		}},
	)
	require.NoError(t, err)

	first, err := reg.ScenariosFor("M1")
	require.NoError(t, err)
	first[0].ImportSuffixes[0] = "rc"
	first[0].IOOptions["extra"] = 1

	second, err := reg.ScenariosFor("M1")
	require.NoError(t, err)
	assert.Equal(t, []string{"dual"}, second[0].ImportSuffixes)
	assert.NotContains(t, second[0].IOOptions, "extra")
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"", StatusNormal},
		{"normal", StatusNormal},
		{"skip", StatusSkip},
		{"expected_failure", StatusExpectedFailure},
		{"expected failure", StatusExpectedFailure},
		{"Expected Failure", StatusExpectedFailure},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseStatus("sometimes")
	assert.Error(t, err)
}

func TestLabelingMode(t *testing.T) {
	assert.Equal(t, "symbolic", Symbolic.String())
	assert.Equal(t, "nonsymbolic", NonSymbolic.String())
	assert.True(t, Symbolic.SymbolicLabels())
	assert.False(t, NonSymbolic.SymbolicLabels())
	assert.Equal(t, []LabelingMode{Symbolic, NonSymbolic}, LabelingModes)
}
