// Package catalog holds the static item catalog: items grouped by category,
// each with its mastery attributes and an optional component recipe.
//
// A Catalog is immutable once built. It is loaded once per session through a
// Loader, which consults a local cache before asking the Source whether a
// newer version exists.
package catalog

import (
	"encoding/json"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Category groups items of the same kind. The category decides how much
// experience an item grants per level.
type Category string

const (
	CategoryWarframe       Category = "WF"
	CategoryPrimary        Category = "PRIMARY"
	CategorySecondary      Category = "SECONDARY"
	CategoryKitgun         Category = "KITGUN"
	CategoryMelee          Category = "MELEE"
	CategoryZaw            Category = "ZAW"
	CategorySentinel       Category = "SENTINEL"
	CategorySentinelWeapon Category = "SENTINEL_WEAPON"
	CategoryAmp            Category = "AMP"
	CategoryArchwing       Category = "AW"
	CategoryArchGun        Category = "AW_GUN"
	CategoryArchMelee      Category = "AW_MELEE"
	CategoryDog            Category = "DOG"
	CategoryCat            Category = "CAT"
	CategoryMoa            Category = "MOA"
	CategoryKDrive         Category = "KDRIVE"
	CategoryMech           Category = "MECH"
	CategoryMisc           Category = "MISC"
)

// DefaultMaxLevel is the level used for experience when an item declares none.
const DefaultMaxLevel = 30

// XPPerLevel returns the experience granted per item level.
// Frames, companions and vehicles grant double the weapon rate.
func (c Category) XPPerLevel() float64 {
	switch c {
	case CategoryWarframe, CategoryArchwing, CategorySentinel, CategoryDog,
		CategoryCat, CategoryMoa, CategoryKDrive, CategoryMech:
		return 200
	default:
		return 100
	}
}

// FoundersItems lists items that can no longer be obtained. The hideFounders
// filter drops them from totals unless already mastered.
var FoundersItems = []string{"Excalibur Prime", "Lato Prime", "Skana Prime"}

// IsFounders reports whether name is a founders-only item.
func IsFounders(name string) bool {
	for _, f := range FoundersItems {
		if f == name {
			return true
		}
	}
	return false
}

// Item describes a single collectible item.
//
// MaxLevel of 0 means the item has no partial ranks; its experience is still
// computed at DefaultMaxLevel.
type Item struct {
	Name       string   `json:"-"`
	Category   Category `json:"-"`
	MaxLevel   int      `json:"maxLvl,omitempty"`
	MasteryReq int      `json:"mr,omitempty"`
	XP         float64  `json:"xp,omitempty"`
	Components Recipe   `json:"components,omitempty"`
	BuildTime  int      `json:"buildTime,omitempty"`
	BuildPrice int      `json:"buildPrice,omitempty"`
	Vaulted    bool     `json:"vaulted,omitempty"`
	Wiki       string   `json:"wiki,omitempty"`
}

// Rankable reports whether the item accepts partial ranks.
func (it Item) Rankable() bool {
	return it.MaxLevel > 0
}

// Levels returns the level count used for experience calculations.
func (it Item) Levels() int {
	if it.MaxLevel > 0 {
		return it.MaxLevel
	}
	return DefaultMaxLevel
}

// Experience returns the experience granted by mastering the item.
func (it Item) Experience() float64 {
	if it.XP > 0 {
		return it.XP
	}
	return it.Category.XPPerLevel() * float64(it.Levels())
}

// PartialExperience interpolates the item's experience linearly for a partial
// rank. The result is not rounded.
func (it Item) PartialExperience(rank int) float64 {
	return it.Experience() * float64(rank) / float64(it.Levels())
}

// Catalog is the read-only item catalog.
type Catalog struct {
	categories map[Category]map[string]Item
	items      []Item
	byName     map[string]int
}

// New builds a catalog from category → item name → item. Names are NFC
// normalised; items are ordered by category and then by name.
func New(categories map[Category]map[string]Item) *Catalog {
	c := &Catalog{
		categories: make(map[Category]map[string]Item, len(categories)),
		byName:     make(map[string]int),
	}

	for cat, items := range categories {
		normalized := make(map[string]Item, len(items))
		for name, item := range items {
			item.Name = NormalizeName(name)
			item.Category = cat
			normalized[item.Name] = item
		}
		c.categories[cat] = normalized
	}

	for _, cat := range c.Categories() {
		names := make([]string, 0, len(c.categories[cat]))
		for name := range c.categories[cat] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c.byName[name] = len(c.items)
			c.items = append(c.items, c.categories[cat][name])
		}
	}

	return c
}

// NormalizeName returns the NFC form of an item name.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// Item looks up an item by name.
func (c *Catalog) Item(name string) (Item, bool) {
	idx, ok := c.byName[NormalizeName(name)]
	if !ok {
		return Item{}, false
	}
	return c.items[idx], true
}

// Items returns every item, ordered by category and name.
// The returned slice must not be modified.
func (c *Catalog) Items() []Item {
	return c.items
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Categories returns the category keys in sorted order.
func (c *Catalog) Categories() []Category {
	cats := make([]Category, 0, len(c.categories))
	for cat := range c.categories {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

// Category returns the items of one category ordered by name.
func (c *Catalog) Category(cat Category) []Item {
	var out []Item
	for _, it := range c.items {
		if it.Category == cat {
			out = append(out, it)
		}
	}
	return out
}

// MarshalJSON encodes the catalog in its category → name → item document form.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.categories)
}
