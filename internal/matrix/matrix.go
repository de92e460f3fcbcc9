package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/solvermatrix/internal/outcome"
	"github.com/roach88/solvermatrix/internal/scenario"
)

var (
	// ErrDuplicateUnit is returned when two units of a container share a name.
	ErrDuplicateUnit = errors.New("duplicate test unit")

	// ErrDuplicateContainer is returned when two models map to the same
	// container name.
	ErrDuplicateContainer = errors.New("duplicate test container")
)

// Executor runs the pipeline for one unit. *engine.Engine implements it.
type Executor interface {
	Execute(ctx context.Context, s scenario.Scenario, mode scenario.LabelingMode) *outcome.Execution
}

// Class is how a unit body treats the pipeline, decided once per scenario.
type Class string

const (
	ClassRunnable        Class = "runnable"
	ClassSkip            Class = "skip"
	ClassExpectedFailure Class = "expected_failure"
)

// Classify maps a scenario status to its unit class.
func Classify(s scenario.Scenario) Class {
	switch s.Status {
	case scenario.StatusSkip:
		return ClassSkip
	case scenario.StatusExpectedFailure:
		return ClassExpectedFailure
	default:
		return ClassRunnable
	}
}

// ContainerName returns "Test_<model>".
func ContainerName(model string) string {
	return "Test_" + norm.NFC.String(model)
}

// UnitName returns "test_<solver>_<interface>_<mode>_labels".
func UnitName(solver, iface string, mode scenario.LabelingMode) string {
	return fmt.Sprintf("test_%s_%s_%s_labels", norm.NFC.String(solver), norm.NFC.String(iface), mode)
}

// Result is what running a unit produced. Execution is nil for skipped units.
type Result struct {
	Verdict   outcome.Verdict
	Execution *outcome.Execution
}

// Unit is one executable test: a scenario bound to a labeling mode.
type Unit struct {
	name      string
	container string
	scenario  scenario.Scenario
	labels    scenario.LabelingMode
	class     Class
	body      func(ctx context.Context) Result
}

func (u *Unit) Name() string { return u.name }
func (u *Unit) Container() string { return u.container }
func (u *Unit) Labels() scenario.LabelingMode { return u.labels }
func (u *Unit) Class() Class { return u.class }

// Scenario returns a copy of the bound scenario.
func (u *Unit) Scenario() scenario.Scenario { return u.scenario.Clone() }

// FullName returns "<container>/<unit>".
func (u *Unit) FullName() string { return u.container + "/" + u.name }

// Run executes the unit body. Skip units never reach the executor.
func (u *Unit) Run(ctx context.Context) Result {
	return u.body(ctx)
}

// Container groups the units of one model.
type Container struct {
	name       string
	model      string
	categories []string
	units      []*Unit
	index      map[string]*Unit
}

func (c *Container) Name() string { return c.name }
func (c *Container) Model() string { return c.model }
func (c *Container) Categories() []string { return slices.Clone(c.categories) }

// Units returns the units in registration order.
func (c *Container) Units() []*Unit { return slices.Clone(c.units) }

// Unit looks a unit up by name.
func (c *Container) Unit(name string) (*Unit, bool) {
	u, ok := c.index[name]
	return u, ok
}

// Len returns the number of units.
func (c *Container) Len() int { return len(c.units) }

func (c *Container) register(u *Unit) error {
	if _, ok := c.index[u.name]; ok {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateUnit, c.name, u.name)
	}
	c.index[u.name] = u
	c.units = append(c.units, u)
	return nil
}

// Matrix is the owned collection of containers produced by a Builder.
type Matrix struct {
	containers []*Container
	index      map[string]*Container
}

// Containers returns the containers in model declaration order.
func (m *Matrix) Containers() []*Container { return slices.Clone(m.containers) }

// Container looks a container up by model id.
func (m *Matrix) Container(model string) (*Container, bool) {
	c, ok := m.index[model]
	return c, ok
}

// Units returns every unit of every container.
func (m *Matrix) Units() []*Unit {
	var out []*Unit
	for _, c := range m.containers {
		out = append(out, c.units...)
	}
	return out
}

// Len returns the total number of units.
func (m *Matrix) Len() int {
	n := 0
	for _, c := range m.containers {
		n += len(c.units)
	}
	return n
}

// Builder expands a registry into a Matrix.
type Builder struct {
	// Executor runs runnable and expected-failure units.
	Executor Executor

	// Categories, when non-empty, keeps only models tagged with at least one
	// of them.
	Categories []string

	Logger *slog.Logger
}

// Build creates one container per selected model and two units per scenario.
func (b *Builder) Build(reg *scenario.Registry) (*Matrix, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Matrix{index: make(map[string]*Container)}
	names := make(map[string]string)
	for _, model := range reg.ListModels() {
		categories, err := reg.Categories(model)
		if err != nil {
			return nil, err
		}
		if !b.selected(categories) {
			logger.Debug("model filtered out by category", "model", model, "categories", categories)
			continue
		}

		name := ContainerName(model)
		if prev, ok := names[name]; ok {
			return nil, fmt.Errorf("%w: %s (models %q and %q)", ErrDuplicateContainer, name, prev, model)
		}
		names[name] = model

		c := &Container{
			name:       name,
			model:      model,
			categories: categories,
			index:      make(map[string]*Unit),
		}

		scenarios, err := reg.ScenariosFor(model)
		if err != nil {
			return nil, err
		}
		for _, s := range scenarios {
			class := Classify(s)
			for _, mode := range scenario.LabelingModes {
				u := &Unit{
					name:      UnitName(s.Solver, s.Interface, mode),
					container: c.name,
					scenario:  s,
					labels:    mode,
					class:     class,
				}
				u.body = b.body(s, mode, class)
				if err := c.register(u); err != nil {
					return nil, err
				}
			}
		}

		m.containers = append(m.containers, c)
		m.index[model] = c
		logger.Debug("container built", "container", c.name, "units", len(c.units))
	}
	return m, nil
}

func (b *Builder) selected(categories []string) bool {
	if len(b.Categories) == 0 {
		return true
	}
	for _, want := range b.Categories {
		if slices.Contains(categories, want) {
			return true
		}
	}
	return false
}

func (b *Builder) body(s scenario.Scenario, mode scenario.LabelingMode, class Class) func(context.Context) Result {
	if class == ClassSkip {
		return func(context.Context) Result {
			return Result{Verdict: outcome.Skipped(s)}
		}
	}

	executor := b.Executor
	return func(ctx context.Context) Result {
		if executor == nil {
			return Result{Verdict: outcome.Verdict{Kind: outcome.KindFail, Message: "matrix built without an executor"}}
		}
		exec := executor.Execute(ctx, s, mode)
		return Result{Verdict: outcome.Interpret(exec), Execution: exec}
	}
}
