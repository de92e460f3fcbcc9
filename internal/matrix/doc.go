// Package matrix expands a scenario registry into the test matrix: one
// Container per model and, per scenario, one Unit for each labeling mode.
//
// Names are deterministic and exposed to the surrounding test runner:
//
//	Test_<model>
//	    test_<solver>_<interface>_symbolic_labels
//	    test_<solver>_<interface>_nonsymbolic_labels
//
// Building the same registry twice yields identical names. Two scenarios
// whose identifiers collapse to the same unit name are rejected with
// ErrDuplicateUnit rather than silently overwriting one another; models whose
// ids normalize to the same container name are rejected with
// ErrDuplicateContainer.
package matrix
