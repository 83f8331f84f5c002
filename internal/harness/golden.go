package harness

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario and compares the plan's canonical JSON
// against a golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails or the plan did not compile.
// Test failure (via goldie) occurs if the plan doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares the given result's plan against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	if result == nil || result.Plan == nil {
		return errors.Newf("scenario %s produced no plan", scenarioName)
	}

	planJSON, err := result.Plan.CanonicalJSON()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, planJSON)

	return nil
}
