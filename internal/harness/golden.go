package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/relfold/relfold/rel"
	"github.com/relfold/relfold/session"
)

// Snapshot captures a scenario execution for golden comparison: the
// cycle reports plus the final root in canonical form. Serialization
// is RFC 8785 canonical JSON, so equal runs produce byte-identical
// snapshots.
type Snapshot struct {
	ScenarioName string
	Cycles       []CycleReport
	Final        session.Root
}

// canonicalObject converts the snapshot to a canonical-JSON-ready
// Object.
func (s *Snapshot) canonicalObject() rel.Object {
	cycles := make(rel.Array, len(s.Cycles))
	for i, c := range s.Cycles {
		cycles[i] = rel.Object{
			"name":      rel.String(c.Name),
			"token":     rel.String(c.Token),
			"mutations": rel.Int(c.Mutations),
			"failed":    rel.Bool(c.Failed),
		}
	}
	return rel.Object{
		"scenario_name": rel.String(s.ScenarioName),
		"cycles":        cycles,
		"final":         s.Final.CanonicalObject(),
	}
}

// SnapshotJSON serializes a scenario result as a canonical snapshot:
// the cycle reports plus the final root. Every golden comparison (the
// goldie assertions here and the CLI test command) goes through this
// one serialization, so golden files written by either stay comparable.
func SnapshotJSON(scenarioName string, result *Result) ([]byte, error) {
	snapshot := Snapshot{
		ScenarioName: scenarioName,
		Cycles:       result.Cycles,
		Final:        result.Final,
	}
	return rel.MarshalCanonical(snapshot.canonicalObject())
}

// RunWithGolden executes a scenario and compares its snapshot against
// a golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files serve as the source of truth for expected fold output:
// a snapshot drift means the fold semantics changed.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already-computed result against a golden
// file, without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := SnapshotJSON(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
