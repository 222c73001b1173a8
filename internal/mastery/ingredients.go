package mastery

import (
	"sort"

	"github.com/lwoollett/FrameHub/internal/catalog"
)

// Ingredients maps a raw component name to the quantity still required.
type Ingredients map[string]float64

// Names returns the component names in sorted order.
func (in Ingredients) Names() []string {
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ComputeIngredients totals the raw components needed to build every item
// that is neither mastered nor partially ranked.
//
// Recipes are expanded depth first. A requirement with nested components is
// replaced by its components, scaled by its own quantity; generic parts are
// skipped; every other requirement adds quantity × multiplier. The catalog's
// recipe graph is finite and acyclic, which bounds the walk.
func ComputeIngredients(cat *catalog.Catalog, mastered map[string]struct{}, partial map[string]int) Ingredients {
	out := make(Ingredients)
	for _, item := range cat.Items() {
		if _, ok := mastered[item.Name]; ok {
			continue
		}
		if partial[item.Name] > 0 {
			continue
		}
		if len(item.Components) == 0 {
			continue
		}
		accumulate(out, item.Components, 1)
	}
	return out
}

func accumulate(out Ingredients, recipe catalog.Recipe, multiplier float64) {
	for name, req := range recipe {
		switch {
		case req.Nested():
			accumulate(out, req.Components, multiplier*req.Quantity)
		case req.Generic:
			continue
		default:
			out[name] += req.Quantity * multiplier
		}
	}
}
