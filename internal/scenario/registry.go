package scenario

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrUnknownModel is returned for lookups of a model the registry does not declare.
	ErrUnknownModel = errors.New("unknown model")

	// ErrDuplicateScenario is returned when two scenarios share a Key.
	ErrDuplicateScenario = errors.New("duplicate scenario")
)

// ModelEntry declares a model and the categories it is tagged with.
type ModelEntry struct {
	ID         string
	Categories []string
}

// Registry enumerates models and their scenarios in declaration order.
// It is immutable once built and safe for concurrent use.
type Registry struct {
	models     []ModelEntry
	index      map[string]int
	byModel    map[string][]Scenario
	keys       map[Key]struct{}
	totalCount int
}

// NewRegistry validates models and scenarios and builds a registry.
func NewRegistry(models []ModelEntry, scenarios []Scenario) (*Registry, error) {
	r := &Registry{
		index:   make(map[string]int, len(models)),
		byModel: make(map[string][]Scenario, len(models)),
		keys:    make(map[Key]struct{}, len(scenarios)),
	}

	for i, m := range models {
		if m.ID == "" {
			return nil, fmt.Errorf("models[%d]: id is required", i)
		}
		if _, ok := r.index[m.ID]; ok {
			return nil, fmt.Errorf("models[%d]: model %q declared twice", i, m.ID)
		}
		r.index[m.ID] = len(r.models)
		r.models = append(r.models, ModelEntry{ID: m.ID, Categories: slices.Clone(m.Categories)})
	}

	for i, s := range scenarios {
		if err := validateScenario(s); err != nil {
			return nil, fmt.Errorf("scenarios[%d]: %w", i, err)
		}
		if _, ok := r.index[s.Model]; !ok {
			return nil, fmt.Errorf("scenarios[%d]: %w %q", i, ErrUnknownModel, s.Model)
		}
		key := s.Key()
		if _, ok := r.keys[key]; ok {
			return nil, fmt.Errorf("scenarios[%d]: %w %s", i, ErrDuplicateScenario, key)
		}
		r.keys[key] = struct{}{}
		r.byModel[s.Model] = append(r.byModel[s.Model], s.Clone())
		r.totalCount++
	}

	return r, nil
}

func validateScenario(s Scenario) error {
	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if s.Solver == "" {
		return fmt.Errorf("solver is required")
	}
	if s.Interface == "" {
		return fmt.Errorf("interface is required")
	}
	switch s.Status {
	case StatusNormal, StatusSkip, StatusExpectedFailure:
	default:
		return fmt.Errorf("invalid status %q", s.Status)
	}
	return nil
}

// ListModels returns every declared model id in declaration order.
func (r *Registry) ListModels() []string {
	ids := make([]string, len(r.models))
	for i, m := range r.models {
		ids[i] = m.ID
	}
	return ids
}

// Categories returns the categories a model is tagged with.
func (r *Registry) Categories(model string) ([]string, error) {
	i, ok := r.index[model]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownModel, model)
	}
	return slices.Clone(r.models[i].Categories), nil
}

// ScenariosFor returns the scenarios registered for a model.
// A declared model without scenarios yields an empty slice.
func (r *Registry) ScenariosFor(model string) ([]Scenario, error) {
	if _, ok := r.index[model]; !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownModel, model)
	}
	src := r.byModel[model]
	out := make([]Scenario, len(src))
	for i, s := range src {
		out[i] = s.Clone()
	}
	return out, nil
}

// All returns every scenario, grouped by model in declaration order.
func (r *Registry) All() []Scenario {
	out := make([]Scenario, 0, r.totalCount)
	for _, m := range r.models {
		for _, s := range r.byModel[m.ID] {
			out = append(out, s.Clone())
		}
	}
	return out
}

// Len returns the number of scenarios.
func (r *Registry) Len() int {
	return r.totalCount
}
