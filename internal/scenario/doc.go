// Package scenario holds the read-only registry of model × solver × interface
// scenarios that the test matrix is built from.
//
// A registry is loaded once at startup, either from a YAML file or from a CUE
// file, and never mutated afterwards:
//
//	models:
//	  - id: diet
//	    categories: [smoke, nightly]
//	scenarios:
//	  - model: diet
//	    solver: glpk
//	    interface: lp
//	    status: normal
//	  - model: diet
//	    solver: cbc
//	    interface: nl
//	    status: expected_failure
//	    message: "cbc drops reduced costs"
//	    import_suffixes: [rc]
//	    io_options: { skip_trivial_constraints: true }
//
// Every scenario names a model declared under models; unknown models and
// duplicate (model, solver, interface) keys are load errors.
package scenario
