package scenario

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Status is the expected outcome declared for a scenario.
type Status string

const (
	StatusNormal          Status = "normal"
	StatusSkip            Status = "skip"
	StatusExpectedFailure Status = "expected_failure"
)

// ParseStatus converts a registry status string to a Status.
// An empty string means normal. "expected failure" (with a space) is accepted
// for registries written against older tooling.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal", "ok":
		return StatusNormal, nil
	case "skip":
		return StatusSkip, nil
	case "expected_failure", "expected failure", "xfail":
		return StatusExpectedFailure, nil
	default:
		return "", fmt.Errorf("unknown scenario status %q", s)
	}
}

// LabelingMode selects whether the solver sees human-readable or opaque
// variable and constraint names.
type LabelingMode int

const (
	Symbolic LabelingMode = iota
	NonSymbolic
)

// LabelingModes lists both modes in registration order.
var LabelingModes = []LabelingMode{Symbolic, NonSymbolic}

// String returns "symbolic" or "nonsymbolic".
func (m LabelingMode) String() string {
	if m == NonSymbolic {
		return "nonsymbolic"
	}
	return "symbolic"
}

// SymbolicLabels reports whether the mode passes symbolic labels to the solver.
func (m LabelingMode) SymbolicLabels() bool {
	return m == Symbolic
}

// Key identifies a scenario within a registry.
type Key struct {
	Model     string
	Solver    string
	Interface string
}

func (k Key) String() string {
	return k.Model + "/" + k.Solver + "/" + k.Interface
}

// Scenario is one (model, solver, interface) combination with its expected
// status. Values handed out by a Registry are copies.
type Scenario struct {
	Model     string
	Solver    string
	Interface string
	Status    Status

	// Message explains a skip or an expected failure.
	Message string

	// ImportSuffixes are passed to model generation.
	ImportSuffixes []string

	// TestSuffixes restricts which suffixes are saved and compared.
	// Empty means the model's own test suffixes.
	TestSuffixes []string

	// IOOptions are passed through to the solver plugin untouched.
	IOOptions map[string]any
}

// Key returns the registry key of the scenario.
func (s Scenario) Key() Key {
	return Key{Model: s.Model, Solver: s.Solver, Interface: s.Interface}
}

// Clone returns a deep-enough copy: slices and the top-level options map are
// not shared with the receiver.
func (s Scenario) Clone() Scenario {
	s.ImportSuffixes = slices.Clone(s.ImportSuffixes)
	s.TestSuffixes = slices.Clone(s.TestSuffixes)
	if s.IOOptions != nil {
		s.IOOptions = maps.Clone(s.IOOptions)
	}
	return s
}
