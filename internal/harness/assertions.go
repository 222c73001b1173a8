package harness

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/lwoollett/FrameHub/internal/docstore"
)

// floatTolerance absorbs rounding in interpolated experience.
const floatTolerance = 1e-6

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions runs every assertion against the result and returns the
// failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertStats:
		return assertStats(result, a)
	case AssertIngredients:
		return assertIngredients(result, a)
	case AssertMastered:
		return assertMastered(result, a)
	case AssertPartial:
		return assertPartial(result, a)
	case AssertPending:
		return assertCount(AssertPending, a.Count, result.Pending)
	case AssertBatchCount:
		return assertCount(AssertBatchCount, a.Count, len(result.Batches))
	case AssertBatch:
		return assertBatch(result, a)
	case AssertDocument:
		return assertDocument(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertStats checks the listed statistics (subset match).
func assertStats(result *Result, a Assertion) error {
	actual := map[string]float64{
		"xp":            result.Stats.Experience,
		"rank":          float64(result.Stats.Rank),
		"masteredCount": float64(result.Stats.MasteredCount),
		"totalXP":       result.Stats.TotalExperience,
		"totalItems":    float64(result.Stats.TotalItemCount),
	}

	for _, key := range sortedKeys(a.Expect) {
		got, ok := actual[key]
		if !ok {
			return fmt.Errorf("unknown stat %q", key)
		}
		want, ok := toFloat(a.Expect[key])
		if !ok {
			return fmt.Errorf("stat %q: expected value %v is not a number", key, a.Expect[key])
		}
		if math.Abs(got-want) > floatTolerance {
			return &AssertionError{
				Type:     AssertStats,
				Expected: fmt.Sprintf("%s = %v", key, want),
				Actual:   fmt.Sprintf("%s = %v", key, got),
			}
		}
	}
	return nil
}

// assertIngredients checks the complete component totals.
func assertIngredients(result *Result, a Assertion) error {
	want := make(map[string]float64, len(a.Expect))
	for name, v := range a.Expect {
		f, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("ingredient %q: expected value %v is not a number", name, v)
		}
		want[name] = f
	}

	mismatch := len(want) != len(result.Ingredients)
	for name, qty := range want {
		got, ok := result.Ingredients[name]
		if !ok || math.Abs(got-qty) > floatTolerance {
			mismatch = true
		}
	}
	if mismatch {
		return &AssertionError{
			Type:     AssertIngredients,
			Expected: formatQuantities(want),
			Actual:   formatQuantities(result.Ingredients),
		}
	}
	return nil
}

// assertMastered checks the complete mastered set.
func assertMastered(result *Result, a Assertion) error {
	want := append([]string(nil), a.Items...)
	sort.Strings(want)
	got := append([]string(nil), result.Mastered...)
	sort.Strings(got)

	if !reflect.DeepEqual(normalizeEmpty(want), normalizeEmpty(got)) {
		return &AssertionError{
			Type:     AssertMastered,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

// assertPartial checks the complete partial ranks.
func assertPartial(result *Result, a Assertion) error {
	want := make(map[string]int, len(a.Expect))
	for name, v := range a.Expect {
		n, ok := v.(int)
		if !ok {
			return fmt.Errorf("partial rank %q: expected value %v is not an integer", name, v)
		}
		want[name] = n
	}

	got := result.PartialRanks
	if got == nil {
		got = map[string]int{}
	}
	if !reflect.DeepEqual(want, got) {
		return &AssertionError{
			Type:     AssertPartial,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

func assertCount(kind string, want, got int) error {
	if want != got {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("%d", want),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

// assertBatch compares one committed batch operation by operation, in
// canonical JSON form.
func assertBatch(result *Result, a Assertion) error {
	if a.Batch > len(result.Batches) {
		return &AssertionError{
			Type:     AssertBatch,
			Expected: fmt.Sprintf("batch %d", a.Batch),
			Actual:   fmt.Sprintf("%d batches committed", len(result.Batches)),
		}
	}
	ops := result.Batches[a.Batch-1].Ops

	if len(ops) != len(a.Ops) {
		return &AssertionError{
			Type:     AssertBatch,
			Expected: fmt.Sprintf("%d ops", len(a.Ops)),
			Actual:   fmt.Sprintf("%d ops", len(ops)),
		}
	}

	for i, op := range ops {
		got, err := docstore.MarshalCanonical(op.Value())
		if err != nil {
			return fmt.Errorf("batch %d op %d: %w", a.Batch, i, err)
		}
		want, err := docstore.MarshalCanonical(normalizeYAML(a.Ops[i]))
		if err != nil {
			return fmt.Errorf("batch %d op %d: expected value: %w", a.Batch, i, err)
		}
		if !bytes.Equal(got, want) {
			return &AssertionError{
				Type:     AssertBatch,
				Expected: fmt.Sprintf("op %d = %s", i, want),
				Actual:   fmt.Sprintf("op %d = %s", i, got),
			}
		}
	}
	return nil
}

// assertDocument checks the listed top-level fields of the stored document.
// String arrays compare as sets.
func assertDocument(result *Result, a Assertion) error {
	for _, key := range sortedKeys(a.Expect) {
		want := sortStringArrays(normalizeYAML(a.Expect[key]))
		got := sortStringArrays(result.Document[key])
		if !reflect.DeepEqual(want, got) {
			return &AssertionError{
				Type:     AssertDocument,
				Expected: fmt.Sprintf("%s = %v", key, want),
				Actual:   fmt.Sprintf("%s = %v", key, got),
			}
		}
	}
	return nil
}

// normalizeYAML converts decoded YAML into the value types documents use.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = normalizeYAML(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalizeYAML(elem)
		}
		return out
	default:
		return val
	}
}

// sortStringArrays sorts string arrays so set-valued fields compare by content.
func sortStringArrays(v any) any {
	switch val := v.(type) {
	case []any:
		strs := make([]string, 0, len(val))
		for _, elem := range val {
			s, ok := elem.(string)
			if !ok {
				return val
			}
			strs = append(strs, s)
		}
		sort.Strings(strs)
		return strs
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = sortStringArrays(elem)
		}
		return out
	default:
		return val
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func formatQuantities[M ~map[string]float64](m M) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %v", name, m[name])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func normalizeEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
