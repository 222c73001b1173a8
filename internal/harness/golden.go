package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/lwoollett/FrameHub/internal/docstore"
)

// Transcript renders what a scenario wrote: every committed batch in commit
// order, one canonical JSON operation per line, followed by the final stored
// document. The output is deterministic and used for golden comparison.
func Transcript(scenarioName string, result *Result) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# scenario %s\n", scenarioName)

	for i, batch := range result.Batches {
		fmt.Fprintf(&buf, "# batch %d %s\n", i+1, batch.Ref)
		ops, err := docstore.FormatBatch(batch.Ops)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i+1, err)
		}
		buf.Write(ops)
	}

	buf.WriteString("# document\n")
	doc, err := docstore.MarshalCanonical(map[string]any(result.Document))
	if err != nil {
		return nil, fmt.Errorf("document: %w", err)
	}
	buf.Write(doc)
	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its transcript against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the transcript doesn't match.
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

// AssertGolden compares the given result's transcript against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	transcript, err := Transcript(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, transcript)

	return nil
}
