package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata and compares its
// transcript with testdata/golden/<name>.golden.
//
// To regenerate golden files:
//
//	go test ./internal/harness -run TestScenarios -update
func TestScenarios(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(file)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "scenario name must match its file name")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario failed:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

const miniCatalog = `
catalog:
  MISC:
    A: {xp: 100}
`

func mustParse(t *testing.T, body string) *Scenario {
	t.Helper()
	scenario, err := ParseScenario([]byte(body))
	require.NoError(t, err)
	return scenario
}

func TestRun_FailedAssertionIsReported(t *testing.T) {
	scenario := mustParse(t, `
name: wrong-xp
description: expects the wrong experience
`+miniCatalog+`
steps:
  - master: A
assertions:
  - type: stats
    expect: {xp: 999}
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "xp = 999")
	assert.Contains(t, result.Errors[0], "xp = 100")
}

func TestRun_UnexpectedStepOutcome(t *testing.T) {
	scenario := mustParse(t, `
name: step-outcomes
description: step errors are compared with expect_error
`+miniCatalog+`
steps:
  - master: Missing
  - master: A
    expect_error: UNKNOWN_ITEM
assertions:
  - type: pending
    count: 1
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, "UNKNOWN_ITEM", result.Steps[0].Error)
	assert.Empty(t, result.Steps[1].Error)
	assert.Equal(t, []string{
		"steps[0]: expected success, got UNKNOWN_ITEM",
		"steps[1]: expected UNKNOWN_ITEM, got success",
	}, result.Errors)
}

func TestRun_TimerFlushFailureKeepsEntries(t *testing.T) {
	scenario := mustParse(t, `
name: timer-failure
description: a failed timer flush is not retried automatically
`+miniCatalog+`
steps:
  - fail_next: 1
  - master: A
  - advance: 2.5s
  - advance: 1m
assertions:
  - type: batch_count
    count: 0
  - type: pending
    count: 1
  - type: mastered
    items: [A]
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
	assert.Empty(t, result.Document)
}

func TestRun_CustomDebounce(t *testing.T) {
	scenario := mustParse(t, `
name: custom-debounce
description: the debounce can be shortened
debounce: 100ms
`+miniCatalog+`
steps:
  - master: A
  - advance: 100ms
assertions:
  - type: batch_count
    count: 1
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
}

func TestRun_CatalogFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "items.cue"), []byte(`
MISC: A: xp: 100
PRIMARY: Braton: components: Ferrite: 500
`), 0644))

	scenarioPath := filepath.Join(dir, "cue-catalog.yaml")
	require.NoError(t, os.WriteFile(scenarioPath, []byte(`
name: cue-catalog
description: catalogs can be CUE files next to the scenario
catalog_file: items.cue
steps:
  - master: A
assertions:
  - type: ingredients
    expect: {Ferrite: 500}
  - type: stats
    expect: {totalItems: 2}
`), 0644))

	scenario, err := LoadScenario(scenarioPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "items.cue"), scenario.CatalogFile)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
}

func TestRun_BadCatalog(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad",
		Description: "unreadable catalog",
		CatalogFile: filepath.Join(t.TempDir(), "missing.json"),
		Steps:       []Step{{Flush: true}},
		Assertions:  []Assertion{{Type: AssertPending}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load catalog")
}
