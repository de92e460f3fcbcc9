// Package testutil provides deterministic clocks and spy collaborators for
// exercising the harness without real models or solvers.
package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/solvermatrix/internal/artifact"
	"github.com/roach88/solvermatrix/internal/catalog"
)

// SolveCall records the arguments of one Solve invocation.
type SolveCall struct {
	Solver         string
	Interface      string
	IOOptions      map[string]any
	SymbolicLabels bool
}

// SpyModel is a catalog.Model whose behaviour is configured through its
// exported fields and whose calls are recorded.
type SpyModel struct {
	ID   string
	Desc string

	Suffixes []string

	GenerateErr  error
	WarmstartErr error
	SolveErr     error
	PostSolveErr error
	LoadErr      error
	SaveErr      error
	ValidateErr  error

	// PanicIn names a method that panics instead of returning.
	PanicIn string

	// Matched and Diagnostic are returned by ValidateCurrentSolution.
	Matched    bool
	Diagnostic string

	// Solutions is the dump of each solution in the results.
	Solutions []string

	// Default is returned by the solver handle's DefaultVariableValue.
	Default *float64

	// OnGenerate runs at the start of GenerateModel.
	OnGenerate func()

	mu             sync.Mutex
	calls          []string
	solveCalls     []SolveCall
	importSuffixes []string
	loadedDefault  *float64
	savedPath      string
	savedSuffixes  []string
}

var _ catalog.Model = (*SpyModel)(nil)

func (m *SpyModel) record(name string) {
	m.mu.Lock()
	m.calls = append(m.calls, name)
	m.mu.Unlock()
	if m.PanicIn == name {
		panic(fmt.Sprintf("spy: %s panicked", name))
	}
}

// Calls returns the recorded method names in call order.
// Description and TestSuffixes are not recorded.
func (m *SpyModel) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// SolveCalls returns the recorded Solve arguments.
func (m *SpyModel) SolveCalls() []SolveCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.solveCalls)
}

// ImportSuffixes returns the suffixes passed to GenerateModel.
func (m *SpyModel) ImportSuffixes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.importSuffixes)
}

// LoadedDefault returns the fill value passed to LoadSolution.
func (m *SpyModel) LoadedDefault() *float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadedDefault
}

// Saved returns the path and suffixes of the last SaveCurrentSolution.
func (m *SpyModel) Saved() (string, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.savedPath, slices.Clone(m.savedSuffixes)
}

func (m *SpyModel) Description() string {
	if m.Desc == "" {
		return m.ID
	}
	return m.Desc
}

func (m *SpyModel) TestSuffixes() []string { return m.Suffixes }

func (m *SpyModel) GenerateModel(_ context.Context, importSuffixes []string) error {
	if m.OnGenerate != nil {
		m.OnGenerate()
	}
	m.record("GenerateModel")
	m.mu.Lock()
	m.importSuffixes = slices.Clone(importSuffixes)
	m.mu.Unlock()
	return m.GenerateErr
}

func (m *SpyModel) WarmstartModel(context.Context) error {
	m.record("WarmstartModel")
	return m.WarmstartErr
}

func (m *SpyModel) Solve(_ context.Context, solver, iface string, ioOptions map[string]any, symbolicLabels bool) (catalog.SolverHandle, catalog.Results, error) {
	m.record("Solve")
	m.mu.Lock()
	m.solveCalls = append(m.solveCalls, SolveCall{Solver: solver, Interface: iface, IOOptions: ioOptions, SymbolicLabels: symbolicLabels})
	m.mu.Unlock()
	if m.SolveErr != nil {
		return nil, nil, m.SolveErr
	}
	return SpyHandle{Default: m.Default}, &SpyResults{Solutions: slices.Clone(m.Solutions)}, nil
}

func (m *SpyModel) PostSolveValidation(context.Context, catalog.Results) error {
	m.record("PostSolveValidation")
	return m.PostSolveErr
}

func (m *SpyModel) LoadSolution(_ catalog.Results, defaultValue *float64) error {
	m.record("LoadSolution")
	m.mu.Lock()
	m.loadedDefault = defaultValue
	m.mu.Unlock()
	return m.LoadErr
}

func (m *SpyModel) StoreSolution(catalog.Results) error {
	m.record("StoreSolution")
	return nil
}

// SaveCurrentSolution writes a small JSON artifact unless SaveErr is set.
func (m *SpyModel) SaveCurrentSolution(path string, suffixes []string) error {
	m.record("SaveCurrentSolution")
	m.mu.Lock()
	m.savedPath = path
	m.savedSuffixes = slices.Clone(suffixes)
	m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	return artifact.WriteJSON(path, map[string]any{"model": m.ID, "suffixes": suffixes})
}

func (m *SpyModel) ValidateCurrentSolution([]string) (bool, string, error) {
	m.record("ValidateCurrentSolution")
	if m.ValidateErr != nil {
		return false, "", m.ValidateErr
	}
	return m.Matched, m.Diagnostic, nil
}

// SpyHandle is the solver handle returned by SpyModel.Solve.
type SpyHandle struct {
	Default *float64
}

func (h SpyHandle) DefaultVariableValue() *float64 { return h.Default }

// SpyResults is the results object returned by SpyModel.Solve.
type SpyResults struct {
	Solutions []string
}

func (r *SpyResults) SolutionCount() int { return len(r.Solutions) }

func (r *SpyResults) Solution(i int) string { return r.Solutions[i] }

// SpyCatalog hands out a fresh SpyModel per lookup and keeps every instance.
type SpyCatalog struct {
	mu        sync.Mutex
	ids       []string
	configure map[string]func(*SpyModel)
	instances map[string][]*SpyModel
	lookups   int
}

var _ catalog.Catalog = (*SpyCatalog)(nil)

// NewSpyCatalog returns an empty spy catalog.
func NewSpyCatalog() *SpyCatalog {
	return &SpyCatalog{
		configure: make(map[string]func(*SpyModel)),
		instances: make(map[string][]*SpyModel),
	}
}

// Add registers a model id. configure, if non-nil, is applied to every new
// instance after defaults (Matched: true, one solution) are set.
func (c *SpyCatalog) Add(id string, configure func(*SpyModel)) *SpyCatalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.configure[id]; !ok {
		c.ids = append(c.ids, id)
	}
	c.configure[id] = configure
	return c
}

func (c *SpyCatalog) ListModels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.ids)
}

func (c *SpyCatalog) ModelFor(id string) (catalog.Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	configure, ok := c.configure[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", catalog.ErrUnknownModel, id)
	}
	m := &SpyModel{ID: id, Matched: true, Solutions: []string{"Variable: x Value: 1"}}
	if configure != nil {
		configure(m)
	}
	c.instances[id] = append(c.instances[id], m)
	return m, nil
}

// Lookups returns how many times ModelFor was called.
func (c *SpyCatalog) Lookups() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookups
}

// Instances returns every instance created for id.
func (c *SpyCatalog) Instances(id string) []*SpyModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.instances[id])
}

// PipelineCalls counts every recorded model call across all instances.
func (c *SpyCatalog) PipelineCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, models := range c.instances {
		for _, m := range models {
			n += len(m.Calls())
		}
	}
	return n
}
