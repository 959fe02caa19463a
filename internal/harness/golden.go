package harness

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden runs suite and compares each case's snapshot against
// testdata/golden/<suite>_<case>.golden. Each case is a subtest; unmet
// expectations fail it as well.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, suite *Suite) error {
	t.Helper()

	result, err := Run(suite, Options{PrimaryKeys: suite.PrimaryKeys})
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for i, cr := range result.Cases {
		c := suite.Cases[i]
		t.Run(c.Name, func(t *testing.T) {
			if !cr.Pass {
				t.Errorf("case %q failed:\n  %s", cr.Name, strings.Join(cr.Failures, "\n  "))
			}
			g.Assert(t, strings.TrimSuffix(GoldenName(suite, c), ".golden"), []byte(cr.Snapshot))
		})
	}
	return nil
}
