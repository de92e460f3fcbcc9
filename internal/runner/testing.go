package runner

import (
	"context"
	"testing"

	"github.com/roach88/solvermatrix/internal/matrix"
	"github.com/roach88/solvermatrix/internal/outcome"
)

// RunTests exposes m to the go test runner: one subtest per container and
// one nested subtest per unit. Skip verdicts skip, fail verdicts error, and
// unexpected-success warnings are logged. With parallel set, units of a
// container run concurrently.
func RunTests(t *testing.T, m *matrix.Matrix, parallel bool) {
	t.Helper()
	for _, c := range m.Containers() {
		t.Run(c.Name(), func(t *testing.T) {
			for _, u := range c.Units() {
				t.Run(u.Name(), func(t *testing.T) {
					if parallel {
						t.Parallel()
					}
					report(t, u.Run(context.Background()).Verdict)
				})
			}
		})
	}
}

func report(t *testing.T, v outcome.Verdict) {
	t.Helper()
	if v.Warning != "" {
		t.Log(v.Warning)
	}
	switch v.Kind {
	case outcome.KindSkip:
		t.Skip(v.Message)
	case outcome.KindFail:
		t.Error(v.Message)
	case outcome.KindExpectedFailure:
		t.Log(v.Message)
	}
}
