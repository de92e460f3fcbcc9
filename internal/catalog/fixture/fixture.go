// Package fixture implements catalog models declared in YAML. Each model has a
// fixed baseline, and each (solver, interface) plugin returns a canned
// solution or fails at a chosen stage. It stands in for a real model catalog
// when exercising the harness.
//
//	models:
//	  - id: M1
//	    description: M1
//	    test_suffixes: [dual]
//	    variables: [x, y]
//	    baseline:
//	      variables: {x: 1, y: 2}
//	      suffixes: {dual: {c1: 0.5}}
//	    plugins:
//	      S1/I1:
//	        variables: {x: 1, y: 2}
//	        suffixes: {dual: {c1: 0.5}}
//	      S2/I1:
//	        fail: solve
//	        error: infeasible
package fixture

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/solvermatrix/internal/artifact"
	"github.com/roach88/solvermatrix/internal/catalog"
)

// DefaultTolerance is used when a model does not set one.
const DefaultTolerance = 1e-6

// Failure stages. Models may fail at generate or warmstart; plugins at solve
// or post_solve.
const (
	FailGenerate  = "generate"
	FailWarmstart = "warmstart"
	FailSolve     = "solve"
	FailPostSolve = "post_solve"
)

// File is the YAML document accepted by LoadFile.
type File struct {
	Models []ModelSpec `yaml:"models"`
}

// ModelSpec declares one fixture model.
type ModelSpec struct {
	ID           string                `yaml:"id"`
	Description  string                `yaml:"description,omitempty"`
	TestSuffixes []string              `yaml:"test_suffixes,omitempty"`
	Variables    []string              `yaml:"variables"`
	Baseline     Solution              `yaml:"baseline"`
	Tolerance    float64               `yaml:"tolerance,omitempty"`
	Plugins      map[string]PluginSpec `yaml:"plugins,omitempty"`
	Fail         string                `yaml:"fail,omitempty"`
	Error        string                `yaml:"error,omitempty"`
}

// PluginSpec declares how one solver/interface pair answers.
type PluginSpec struct {
	Variables    map[string]float64            `yaml:"variables,omitempty"`
	Suffixes     map[string]map[string]float64 `yaml:"suffixes,omitempty"`
	DefaultValue *float64                      `yaml:"default_value,omitempty"`
	Fail         string                        `yaml:"fail,omitempty"`
	Error        string                        `yaml:"error,omitempty"`
	SymbolicOnly bool                          `yaml:"symbolic_only,omitempty"`
}

// Solution is the serialized form of a model solution, used both for
// baselines and for saved artifacts.
type Solution struct {
	Variables map[string]float64            `yaml:"variables" json:"variables"`
	Suffixes  map[string]map[string]float64 `yaml:"suffixes,omitempty" json:"suffixes,omitempty"`
}

// LoadFile reads a fixture catalog from YAML.
func LoadFile(path string) (*catalog.Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture catalog: %w", err)
	}
	var file File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse fixture catalog: %w", err)
	}
	return New(file)
}

// New validates file and returns a catalog of its models.
func New(file File) (*catalog.Static, error) {
	cat := catalog.NewStatic()
	for i, spec := range file.Models {
		if err := validate(spec); err != nil {
			return nil, fmt.Errorf("models[%d]: %w", i, err)
		}
		if err := cat.Register(spec.ID, func() catalog.Model { return newModel(spec) }); err != nil {
			return nil, fmt.Errorf("models[%d]: %w", i, err)
		}
	}
	return cat, nil
}

func validate(spec ModelSpec) error {
	if spec.ID == "" {
		return fmt.Errorf("id is required")
	}
	if len(spec.Variables) == 0 {
		return fmt.Errorf("model %q: variables list is required", spec.ID)
	}
	switch spec.Fail {
	case "", FailGenerate, FailWarmstart:
	default:
		return fmt.Errorf("model %q: unknown fail stage %q", spec.ID, spec.Fail)
	}
	for key, p := range spec.Plugins {
		if !strings.Contains(key, "/") {
			return fmt.Errorf("model %q: plugin key %q must be <solver>/<interface>", spec.ID, key)
		}
		switch p.Fail {
		case "", FailSolve, FailPostSolve:
		default:
			return fmt.Errorf("model %q: plugin %q: unknown fail stage %q", spec.ID, key, p.Fail)
		}
	}
	return nil
}

// Model is a fixture catalog.Model. Instances are not safe for concurrent
// use; the harness takes a fresh instance per unit.
type Model struct {
	spec     ModelSpec
	imported []string
	plugin   *PluginSpec
	current  map[string]float64
	suffixes map[string]map[string]float64
	saved    string
}

var _ catalog.Model = (*Model)(nil)

func newModel(spec ModelSpec) *Model {
	return &Model{spec: spec}
}

func (m *Model) Description() string {
	if m.spec.Description != "" {
		return m.spec.Description
	}
	return m.spec.ID
}

func (m *Model) TestSuffixes() []string {
	return slices.Clone(m.spec.TestSuffixes)
}

func (m *Model) injected(fail, stage, msg string) error {
	if fail != stage {
		return nil
	}
	if msg == "" {
		msg = "injected failure"
	}
	return fmt.Errorf("%s: %s", m.Description(), msg)
}

func (m *Model) failure(stage string) error {
	if m.plugin == nil {
		return nil
	}
	return m.injected(m.plugin.Fail, stage, m.plugin.Error)
}

// GenerateModel records the import suffixes and resets any loaded solution.
func (m *Model) GenerateModel(_ context.Context, importSuffixes []string) error {
	m.imported = slices.Clone(importSuffixes)
	m.current = nil
	m.suffixes = nil
	m.plugin = nil
	m.saved = ""
	return m.injected(m.spec.Fail, FailGenerate, m.spec.Error)
}

func (m *Model) WarmstartModel(context.Context) error {
	m.current = make(map[string]float64)
	return m.injected(m.spec.Fail, FailWarmstart, m.spec.Error)
}

// Solve selects the plugin for (solver, iface) and returns its canned answer.
func (m *Model) Solve(_ context.Context, solver, iface string, _ map[string]any, symbolicLabels bool) (catalog.SolverHandle, catalog.Results, error) {
	p, ok := m.spec.Plugins[solver+"/"+iface]
	if !ok {
		return nil, nil, fmt.Errorf("no plugin %s/%s configured for model %s", solver, iface, m.spec.ID)
	}
	m.plugin = &p

	if err := m.failure(FailSolve); err != nil {
		return nil, nil, err
	}
	if p.SymbolicOnly && !symbolicLabels {
		return nil, nil, fmt.Errorf("%s/%s requires symbolic labels", solver, iface)
	}

	res := &Results{}
	if p.Variables != nil {
		sol := Solution{Variables: clone(p.Variables), Suffixes: make(map[string]map[string]float64)}
		for _, name := range m.imported {
			if values, ok := p.Suffixes[name]; ok {
				sol.Suffixes[name] = clone(values)
			}
		}
		res.Solutions = append(res.Solutions, sol)
	}
	return handle{def: p.DefaultValue}, res, nil
}

func (m *Model) PostSolveValidation(_ context.Context, results catalog.Results) error {
	if err := m.failure(FailPostSolve); err != nil {
		return err
	}
	if results.SolutionCount() == 0 {
		return fmt.Errorf("%s: solver reported no solution", m.Description())
	}
	return nil
}

func (m *Model) LoadSolution(results catalog.Results, defaultValue *float64) error {
	res, ok := results.(*Results)
	if !ok {
		return fmt.Errorf("unsupported results type %T", results)
	}
	if len(res.Solutions) == 0 {
		return fmt.Errorf("no solution to load")
	}
	sol := res.Solutions[0]
	m.current = make(map[string]float64, len(m.spec.Variables))
	for _, v := range m.spec.Variables {
		if value, ok := sol.Variables[v]; ok {
			m.current[v] = value
		} else if defaultValue != nil {
			m.current[v] = *defaultValue
		}
	}
	m.suffixes = sol.Suffixes
	return nil
}

func (m *Model) StoreSolution(results catalog.Results) error {
	res, ok := results.(*Results)
	if !ok {
		return fmt.Errorf("unsupported results type %T", results)
	}
	sol := Solution{Variables: clone(m.current), Suffixes: m.suffixes}
	if len(res.Solutions) == 0 {
		res.Solutions = append(res.Solutions, sol)
	} else {
		res.Solutions[0] = sol
	}
	return nil
}

// SaveCurrentSolution writes the loaded solution, restricted to suffixes.
func (m *Model) SaveCurrentSolution(path string, suffixes []string) error {
	sol := Solution{Variables: clone(m.current)}
	for _, name := range suffixes {
		values, ok := m.suffixes[name]
		if !ok {
			continue
		}
		if sol.Suffixes == nil {
			sol.Suffixes = make(map[string]map[string]float64)
		}
		sol.Suffixes[name] = clone(values)
	}
	if err := artifact.WriteJSON(path, sol); err != nil {
		return err
	}
	m.saved = path
	return nil
}

// ValidateCurrentSolution reads the saved artifact back and compares it with
// the baseline within tolerance.
func (m *Model) ValidateCurrentSolution(suffixes []string) (bool, string, error) {
	if m.saved == "" {
		return false, "", fmt.Errorf("no solution has been saved")
	}
	var got Solution
	if err := artifact.ReadJSON(m.saved, &got); err != nil {
		return false, "", err
	}

	tol := m.spec.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}

	var diffs []string
	diffs = append(diffs, compare("variable", m.spec.Baseline.Variables, got.Variables, tol)...)
	for _, name := range suffixes {
		diffs = append(diffs, compare("suffix "+name, m.spec.Baseline.Suffixes[name], got.Suffixes[name], tol)...)
	}
	if len(diffs) == 0 {
		return true, "", nil
	}
	return false, strings.Join(diffs, "\n"), nil
}

func compare(kind string, want, got map[string]float64, tol float64) []string {
	var diffs []string
	for _, name := range sortedKeys(want) {
		g, ok := got[name]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("%s %s: missing, want %g", kind, name, want[name]))
			continue
		}
		if math.Abs(g-want[name]) > tol*math.Max(1, math.Abs(want[name])) {
			diffs = append(diffs, fmt.Sprintf("%s %s: got %g, want %g", kind, name, g, want[name]))
		}
	}
	for _, name := range sortedKeys(got) {
		if _, ok := want[name]; !ok {
			diffs = append(diffs, fmt.Sprintf("%s %s: unexpected value %g", kind, name, got[name]))
		}
	}
	return diffs
}

type handle struct {
	def *float64
}

func (h handle) DefaultVariableValue() *float64 { return h.def }

// Results holds the solutions a fixture plugin returned.
type Results struct {
	Solutions []Solution
}

func (r *Results) SolutionCount() int { return len(r.Solutions) }

// Solution renders solution i one variable or suffix value per line.
func (r *Results) Solution(i int) string {
	sol := r.Solutions[i]
	var b strings.Builder
	for _, name := range sortedKeys(sol.Variables) {
		fmt.Fprintf(&b, "Variable: %s Value: %g\n", name, sol.Variables[name])
	}
	suffixNames := make([]string, 0, len(sol.Suffixes))
	for name := range sol.Suffixes {
		suffixNames = append(suffixNames, name)
	}
	sort.Strings(suffixNames)
	for _, suffix := range suffixNames {
		for _, name := range sortedKeys(sol.Suffixes[suffix]) {
			fmt.Fprintf(&b, "Suffix: %s %s Value: %g\n", suffix, name, sol.Suffixes[suffix][name])
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func clone(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
