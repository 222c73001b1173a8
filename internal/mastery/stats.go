package mastery

import "github.com/lwoollett/FrameHub/internal/catalog"

// Filters are the user's visibility toggles.
type Filters struct {
	HideMastered bool `json:"hideMastered"`
	HideFounders bool `json:"hideFounders"`
}

// DefaultFilters are the filters of a fresh document.
func DefaultFilters() Filters {
	return Filters{HideMastered: true, HideFounders: true}
}

// Excludes reports whether the filters drop the named item from totals and
// bulk operations. Mastered founders items are handled by the caller.
func (f Filters) Excludes(name string) bool {
	return f.HideFounders && catalog.IsFounders(name)
}

// State is the tracked progress a computation reads.
type State struct {
	Mastered     map[string]struct{}
	PartialRanks map[string]int
	Counters     CounterValues
	Filters      Filters
}

// IsMastered reports whether name is in the mastered set.
func (s State) IsMastered(name string) bool {
	_, ok := s.Mastered[name]
	return ok
}

// Stats are the derived progress statistics.
type Stats struct {
	Experience      float64 `json:"xp"`
	Rank            int     `json:"rank"`
	MasteredCount   int     `json:"masteredCount"`
	TotalExperience float64 `json:"totalXP"`
	TotalItemCount  int     `json:"totalItems"`
}

// ComputeStats recomputes the statistics from scratch.
//
// Experience sums the counters, the full experience of every mastered item and
// the interpolated experience of every partially ranked item. Totals cover the
// counters at their maximum and every item the filters keep; a founders item
// that is already mastered stays in the totals.
func ComputeStats(cat *catalog.Catalog, st State) Stats {
	stats := Stats{
		Experience:      st.Counters.Experience(),
		TotalExperience: maxCounterExperience(),
	}

	for _, item := range cat.Items() {
		mastered := st.IsMastered(item.Name)
		if mastered {
			stats.Experience += item.Experience()
			stats.MasteredCount++
		} else if rank, ok := st.PartialRanks[item.Name]; ok && rank > 0 {
			stats.Experience += item.PartialExperience(rank)
		}

		if !mastered && st.Filters.Excludes(item.Name) {
			continue
		}
		stats.TotalExperience += item.Experience()
		stats.TotalItemCount++
	}

	stats.Rank = Rank(stats.Experience)
	return stats
}
