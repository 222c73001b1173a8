package harness

import (
	"github.com/lwoollett/FrameHub/internal/docstore"
	"github.com/lwoollett/FrameHub/internal/mastery"
	"github.com/lwoollett/FrameHub/internal/testutil"
)

// StepOutcome records what one step did.
type StepOutcome struct {
	Index int    `json:"index"`
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step behaved as expected and all assertions hold.
	Pass bool `json:"pass"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Steps holds one outcome per executed step.
	Steps []StepOutcome `json:"steps"`

	// Batches are the committed write batches in commit order. Failed
	// commits are not included.
	Batches []testutil.Batch `json:"-"`

	// Stats and Ingredients are the derived values after the last step.
	Stats       mastery.Stats       `json:"stats"`
	Ingredients mastery.Ingredients `json:"ingredients"`

	// Mastered and PartialRanks are the tracker's state after the last step.
	Mastered     []string       `json:"mastered"`
	PartialRanks map[string]int `json:"partial"`

	// Pending is the number of change-log entries not yet committed.
	Pending int `json:"pending"`

	// Document is the stored document after the last step.
	Document docstore.Document `json:"document"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Steps:  []StepOutcome{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
