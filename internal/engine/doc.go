// Package engine executes a single test unit end to end:
//
//  1. derive the artifact path and clear any stale artifact
//  2. generate the model instance with the scenario's import suffixes
//  3. warmstart it
//  4. solve through the (solver, interface) plugin in the unit's labeling mode
//  5. run the model's post-solve validation on the raw results
//  6. load the results, filling unreported variables with the solver default
//  7. save the current solution to the artifact path
//  8. compare the saved solution with the baseline
//  9. settle the artifact (delete unless it is retained for inspection)
//
// Failures in steps 2 through 8 are fatal pipeline errors, reported as a
// *PipelineError carrying the failing Stage. A baseline mismatch is not an
// error; it is returned as a Validation with Matched false. Step 9 runs on
// every exit path, including a panic inside a collaborator.
package engine
