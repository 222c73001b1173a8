package cli

import (
	"slices"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/lwoollett/FrameHub/internal/catalog"
	"github.com/lwoollett/FrameHub/internal/mastery"
	"github.com/lwoollett/FrameHub/internal/session"
)

// printer formats numbers with digit grouping in text output.
var printer = message.NewPrinter(language.English)

// counterView is one progress counter.
type counterView struct {
	Value int `json:"value"`
	Total int `json:"total"`
}

// statusView is the output of status and of every mutation command.
type statusView struct {
	Document     string                 `json:"document"`
	Kind         session.Kind           `json:"kind"`
	ReadOnly     bool                   `json:"readOnly"`
	Stats        mastery.Stats          `json:"stats"`
	NextRankXP   float64                `json:"nextRankXP"`
	Counters     map[string]counterView `json:"counters"`
	Filters      mastery.Filters        `json:"filters"`
	Partial      map[string]int         `json:"partiallyMastered"`
	Pending      int                    `json:"pending"`
	CatalogStamp string                 `json:"catalogStamp"`
}

func newStatusView(sess *session.Session) statusView {
	t := sess.Tracker()
	stats := t.Stats()

	counters := make(map[string]counterView, len(mastery.Counters))
	values := t.Counters()
	for _, c := range mastery.Counters {
		counters[string(c)] = counterView{Value: values[c], Total: c.Total()}
	}

	return statusView{
		Document:     sess.Ref().String(),
		Kind:         sess.Kind(),
		ReadOnly:     t.IsReadOnly(),
		Stats:        stats,
		NextRankXP:   mastery.RankToXP(stats.Rank + 1),
		Counters:     counters,
		Filters:      t.Filters(),
		Partial:      t.PartialRanks(),
		Pending:      t.Pending(),
		CatalogStamp: sess.Loader().Stamp(),
	}
}

func (v statusView) String() string {
	var b strings.Builder
	s := v.Stats

	kind := string(v.Kind)
	if v.ReadOnly {
		kind += ", read-only"
	}
	printer.Fprintf(&b, "%-12s %s (%s)\n", "Document", v.Document, kind)
	printer.Fprintf(&b, "%-12s %d\n", "Rank", s.Rank)
	printer.Fprintf(&b, "%-12s %v / %v (%.1f%%)\n", "Experience",
		number.Decimal(s.Experience, number.MaxFractionDigits(0)),
		number.Decimal(s.TotalExperience, number.MaxFractionDigits(0)),
		percent(s.Experience, s.TotalExperience))
	printer.Fprintf(&b, "%-12s %v XP\n", "Next rank", number.Decimal(v.NextRankXP, number.MaxFractionDigits(0)))
	printer.Fprintf(&b, "%-12s %d / %d items\n", "Mastered", s.MasteredCount, s.TotalItemCount)
	printer.Fprintf(&b, "%-12s %d\n", "In progress", len(v.Partial))
	for _, c := range mastery.Counters {
		cv := v.Counters[string(c)]
		printer.Fprintf(&b, "%-12s %d / %d\n", counterLabel(c), cv.Value, cv.Total)
	}
	printer.Fprintf(&b, "%-12s hideMastered=%t hideFounders=%t\n", "Filters", v.Filters.HideMastered, v.Filters.HideFounders)
	printer.Fprintf(&b, "%-12s %d", "Pending", v.Pending)
	return b.String()
}

func counterLabel(c mastery.Counter) string {
	s := string(c)
	return strings.ToUpper(s[:1]) + s[1:]
}

func percent(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return part / total * 100
}

// ingredientView is one remaining raw component.
type ingredientView struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
}

// ingredientsView lists the raw components still required.
type ingredientsView struct {
	Ingredients []ingredientView `json:"ingredients"`
}

func newIngredientsView(in mastery.Ingredients) ingredientsView {
	v := ingredientsView{Ingredients: make([]ingredientView, 0, len(in))}
	for _, name := range in.Names() {
		v.Ingredients = append(v.Ingredients, ingredientView{Name: name, Quantity: in[name]})
	}
	return v
}

func (v ingredientsView) String() string {
	if len(v.Ingredients) == 0 {
		return "Nothing left to build."
	}

	width := 0
	for _, in := range v.Ingredients {
		width = max(width, len(in.Name))
	}

	var b strings.Builder
	for i, in := range v.Ingredients {
		if i > 0 {
			b.WriteByte('\n')
		}
		printer.Fprintf(&b, "%-*s %v", width, in.Name, number.Decimal(in.Quantity))
	}
	return b.String()
}

// catalogView describes the loaded catalog.
type catalogView struct {
	Path       string         `json:"path"`
	Stamp      string         `json:"stamp"`
	Changed    bool           `json:"changed"`
	Items      int            `json:"items"`
	Categories map[string]int `json:"categories"`
}

func newCatalogView(path, stamp string, changed bool, cat *catalog.Catalog) catalogView {
	v := catalogView{
		Path:       path,
		Stamp:      stamp,
		Changed:    changed,
		Items:      cat.Len(),
		Categories: make(map[string]int),
	}
	for _, c := range cat.Categories() {
		v.Categories[string(c)] = len(cat.Category(c))
	}
	return v
}

func (v catalogView) String() string {
	var b strings.Builder
	printer.Fprintf(&b, "%-12s %s\n", "Catalog", v.Path)
	printer.Fprintf(&b, "%-12s %s\n", "Stamp", v.Stamp)
	printer.Fprintf(&b, "%-12s %d\n", "Items", v.Items)

	names := make([]string, 0, len(v.Categories))
	for name := range v.Categories {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		printer.Fprintf(&b, "  %-16s %d\n", name, v.Categories[name])
	}
	if v.Changed {
		b.WriteString("Catalog updated.")
	} else {
		b.WriteString("Catalog up to date.")
	}
	return b.String()
}
