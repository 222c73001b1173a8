package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Recipe maps a component name to what the recipe requires of it.
type Recipe map[string]Requirement

// Names returns the component names in sorted order.
func (r Recipe) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Requirement is one node of a recipe tree.
//
// A requirement is a leaf quantity, a generic part (interchangeable and not
// tracked), or an intermediate component with its own nested recipe. Nested
// quantities are per unit of the parent.
//
// In catalog documents a plain number is shorthand for a leaf quantity; the
// object form is {"count": n, "generic": bool, "components": {...}} with count
// defaulting to 1.
type Requirement struct {
	Quantity   float64
	Generic    bool
	Components Recipe
}

// Nested reports whether the requirement expands into further components.
func (r Requirement) Nested() bool {
	return len(r.Components) > 0
}

type requirementObject struct {
	Count      *float64 `json:"count,omitempty"`
	Generic    bool     `json:"generic,omitempty"`
	Components Recipe   `json:"components,omitempty"`
}

// UnmarshalJSON accepts both the numeric and the object form.
func (r *Requirement) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj requirementObject
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("decode requirement: %w", err)
		}
		r.Quantity = 1
		if obj.Count != nil {
			r.Quantity = *obj.Count
		}
		r.Generic = obj.Generic
		r.Components = obj.Components
		return nil
	}

	var qty float64
	if err := json.Unmarshal(data, &qty); err != nil {
		return fmt.Errorf("decode requirement quantity: %w", err)
	}
	*r = Requirement{Quantity: qty}
	return nil
}

// MarshalJSON writes plain leaves as numbers and everything else as objects.
func (r Requirement) MarshalJSON() ([]byte, error) {
	if !r.Generic && !r.Nested() {
		return json.Marshal(r.Quantity)
	}
	qty := r.Quantity
	return json.Marshal(requirementObject{
		Count:      &qty,
		Generic:    r.Generic,
		Components: r.Components,
	})
}
