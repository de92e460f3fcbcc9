// Package catalog defines the contracts the harness consumes from the model
// catalog and solver plugins. The harness never looks inside a model or a
// solver; it only drives these interfaces.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownModel is returned by Catalog.ModelFor for an unregistered id.
var ErrUnknownModel = errors.New("model not in catalog")

// Model is one test model instance. A fresh instance is obtained per test unit
// so that units can run concurrently.
type Model interface {
	// Description names the problem type; it appears in failure messages and
	// artifact filenames.
	Description() string

	// TestSuffixes is the default suffix set saved and compared after a solve.
	TestSuffixes() []string

	GenerateModel(ctx context.Context, importSuffixes []string) error
	WarmstartModel(ctx context.Context) error

	// Solve runs the plugin identified by (solver, iface).
	Solve(ctx context.Context, solver, iface string, ioOptions map[string]any, symbolicLabels bool) (SolverHandle, Results, error)

	// PostSolveValidation checks the raw results before they are loaded.
	PostSolveValidation(ctx context.Context, results Results) error

	// LoadSolution loads results into the model, filling unreported variables
	// with defaultValue when it is non-nil.
	LoadSolution(results Results, defaultValue *float64) error

	// StoreSolution writes the model's current solution back into results.
	StoreSolution(results Results) error

	SaveCurrentSolution(path string, suffixes []string) error

	// ValidateCurrentSolution compares the saved solution with the baseline.
	// A mismatch is reported through matched, not through err.
	ValidateCurrentSolution(suffixes []string) (matched bool, diagnostic string, err error)
}

// SolverHandle is the plugin instance that produced a set of results.
type SolverHandle interface {
	// DefaultVariableValue is the fill value for variables the solver did not
	// report, or nil to leave them unset.
	DefaultVariableValue() *float64
}

// Results is a solver results object.
type Results interface {
	SolutionCount() int
	// Solution renders solution i as text for failure reports.
	Solution(i int) string
}

// Catalog resolves model ids to fresh model instances.
type Catalog interface {
	ListModels() []string
	ModelFor(id string) (Model, error)
}

// Factory creates a new model instance.
type Factory func() Model

// Static is a Catalog backed by a fixed set of factories.
type Static struct {
	ids       []string
	factories map[string]Factory
}

// NewStatic returns an empty static catalog.
func NewStatic() *Static {
	return &Static{factories: make(map[string]Factory)}
}

// Register adds a model factory. Registering an id twice is an error.
func (s *Static) Register(id string, f Factory) error {
	if id == "" {
		return fmt.Errorf("register model: id is required")
	}
	if f == nil {
		return fmt.Errorf("register model %q: nil factory", id)
	}
	if _, ok := s.factories[id]; ok {
		return fmt.Errorf("register model %q: already registered", id)
	}
	s.ids = append(s.ids, id)
	s.factories[id] = f
	return nil
}

// ListModels returns the registered ids in registration order.
func (s *Static) ListModels() []string {
	return slices.Clone(s.ids)
}

// ModelFor returns a new instance of the model.
func (s *Static) ModelFor(id string) (Model, error) {
	f, ok := s.factories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
	return f(), nil
}
