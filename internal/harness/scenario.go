package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// A scenario seeds a progress document, drives the tracker through a list of
// steps on a manual clock and asserts on the derived statistics, the write
// batches the sync engine committed and the final stored document.
type Scenario struct {
	// Name uniquely identifies this scenario. It is also the document id and
	// the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is an inline item catalog in the items.json layout
	// (category → item name → item).
	Catalog map[string]map[string]any `yaml:"catalog,omitempty"`

	// CatalogFile is a JSON or CUE catalog file, relative to the scenario
	// file. Exactly one of Catalog and CatalogFile is required.
	CatalogFile string `yaml:"catalog_file,omitempty"`

	// Document is the stored progress document before the first step.
	Document *Document `yaml:"document,omitempty"`

	// ReadOnly opens the tracker as a shared, read-only view.
	ReadOnly bool `yaml:"read_only,omitempty"`

	// Debounce overrides the sync engine's quiet period (e.g. "1s").
	Debounce string `yaml:"debounce,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Document is a progress document in its stored layout.
type Document struct {
	Missions          int            `yaml:"missions,omitempty"`
	Junctions         int            `yaml:"junctions,omitempty"`
	Intrinsics        int            `yaml:"intrinsics,omitempty"`
	HideMastered      *bool          `yaml:"hideMastered,omitempty"`
	HideFounders      *bool          `yaml:"hideFounders,omitempty"`
	Mastered          []string       `yaml:"mastered,omitempty"`
	PartiallyMastered map[string]int `yaml:"partiallyMastered,omitempty"`
}

// Step is one action. Exactly one action field must be set.
type Step struct {
	Master      string       `yaml:"master,omitempty"`
	Unmaster    string       `yaml:"unmaster,omitempty"`
	Rank        *RankStep    `yaml:"rank,omitempty"`
	MasterAll   bool         `yaml:"master_all,omitempty"`
	UnmasterAll bool         `yaml:"unmaster_all,omitempty"`
	Counter     *CounterStep `yaml:"counter,omitempty"`
	Filter      *FilterStep  `yaml:"filter,omitempty"`

	// Advance moves the manual clock forward, firing due flush timers.
	Advance string `yaml:"advance,omitempty"`

	// Flush forces an immediate flush.
	Flush bool `yaml:"flush,omitempty"`

	// FailNext makes the next n commits fail.
	FailNext int `yaml:"fail_next,omitempty"`

	// Reload re-reads the stored document and hydrates the tracker.
	Reload bool `yaml:"reload,omitempty"`

	// ExpectError is the error code this step must fail with:
	// INVALID_ARGUMENT, UNKNOWN_ITEM, READ_ONLY or COMMIT_FAILED.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// RankStep sets a partial rank.
type RankStep struct {
	Item string `yaml:"item"`
	Rank int    `yaml:"rank"`
	// Max defaults to the item's level cap; any other value is rejected.
	Max int `yaml:"max,omitempty"`
}

// CounterStep sets a progress counter.
type CounterStep struct {
	Kind  string `yaml:"kind"`
	Value int    `yaml:"value"`
}

// FilterStep sets a visibility filter.
type FilterStep struct {
	Key   string `yaml:"key"`
	Value bool   `yaml:"value"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "stats": subset match on xp, rank, masteredCount, totalXP, totalItems
	// - "ingredients": the exact remaining component totals
	// - "mastered": the exact mastered set
	// - "partial": the exact partial ranks
	// - "pending": number of change-log entries not yet committed
	// - "batch_count": number of committed batches
	// - "batch": the operations of one committed batch
	// - "document": subset match on the stored document
	Type string `yaml:"type"`

	// Expect holds expected values (stats, ingredients, partial, document).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Items is the expected mastered set (mastered).
	Items []string `yaml:"items,omitempty"`

	// Count is the expected count (pending, batch_count).
	Count int `yaml:"count,omitempty"`

	// Batch is the 1-based committed batch index (batch).
	Batch int `yaml:"batch,omitempty"`

	// Ops are the expected operations of the batch, as rendered in journals.
	Ops []map[string]any `yaml:"ops,omitempty"`
}

// Assertion type constants.
const (
	AssertStats       = "stats"
	AssertIngredients = "ingredients"
	AssertMastered    = "mastered"
	AssertPartial     = "partial"
	AssertPending     = "pending"
	AssertBatchCount  = "batch_count"
	AssertBatch       = "batch"
	AssertDocument    = "document"
)

// Step error codes that are not mutation error codes.
const CodeCommitFailed = "COMMIT_FAILED"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative catalog_file is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.CatalogFile != "" && !filepath.IsAbs(scenario.CatalogFile) {
		scenario.CatalogFile = filepath.Join(filepath.Dir(path), scenario.CatalogFile)
	}
	if scenario.CatalogFile != "" {
		if _, err := os.Stat(scenario.CatalogFile); err != nil {
			return nil, fmt.Errorf("invalid scenario: catalog file not found: %s", scenario.CatalogFile)
		}
	}

	return scenario, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case len(s.Catalog) == 0 && s.CatalogFile == "":
		return fmt.Errorf("catalog or catalog_file is required")
	case len(s.Catalog) > 0 && s.CatalogFile != "":
		return fmt.Errorf("catalog and catalog_file are mutually exclusive")
	}

	if s.Debounce != "" {
		if d, err := time.ParseDuration(s.Debounce); err != nil || d <= 0 {
			return fmt.Errorf("invalid debounce %q", s.Debounce)
		}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks that a step names exactly one action.
func validateStep(index int, st *Step) error {
	actions := 0
	for _, set := range []bool{
		st.Master != "",
		st.Unmaster != "",
		st.Rank != nil,
		st.MasterAll,
		st.UnmasterAll,
		st.Counter != nil,
		st.Filter != nil,
		st.Advance != "",
		st.Flush,
		st.FailNext != 0,
		st.Reload,
	} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		return fmt.Errorf("steps[%d]: exactly one action is required, found %d", index, actions)
	}

	if st.Rank != nil && st.Rank.Item == "" {
		return fmt.Errorf("steps[%d]: rank.item is required", index)
	}
	if st.Counter != nil && st.Counter.Kind == "" {
		return fmt.Errorf("steps[%d]: counter.kind is required", index)
	}
	if st.Filter != nil && st.Filter.Key == "" {
		return fmt.Errorf("steps[%d]: filter.key is required", index)
	}
	if st.Advance != "" {
		if d, err := time.ParseDuration(st.Advance); err != nil || d < 0 {
			return fmt.Errorf("steps[%d]: invalid advance %q", index, st.Advance)
		}
	}
	if st.FailNext < 0 {
		return fmt.Errorf("steps[%d]: fail_next must be positive", index)
	}

	switch st.ExpectError {
	case "", "INVALID_ARGUMENT", "UNKNOWN_ITEM", "READ_ONLY", CodeCommitFailed:
	default:
		return fmt.Errorf("steps[%d]: unknown expect_error %q", index, st.ExpectError)
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStats, AssertDocument:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for %s", index, a.Type)
		}
	case AssertIngredients, AssertPartial, AssertMastered:
		// An empty expectation asserts emptiness.
	case AssertPending, AssertBatchCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertBatch:
		if a.Batch < 1 {
			return fmt.Errorf("assertions[%d]: batch index (1-based) is required for batch", index)
		}
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for batch", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
