package receipt

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category is a spending category. The set of known values is closed;
// anything else coming from the backend's classifier is treated as Other.
type Category string

const (
	// AllCategories is the no-filter selector. It is never a receipt's category.
	AllCategories Category = ""

	Groceries     Category = "groceries"
	Restaurant    Category = "restaurant"
	Gas           Category = "gas"
	Shopping      Category = "shopping"
	Entertainment Category = "entertainment"
	Health        Category = "health"
	Transport     Category = "transport"
	Other         Category = "other"
)

// Color is a CSS hex color
type Color string

// Descriptor is a category registry entry
type Descriptor struct {
	DisplayName string   `json:"name"`
	Value       Category `json:"value"`
	Icon        string   `json:"icon"`
}

// IsAll reports whether the descriptor is the all-categories entry
func (d Descriptor) IsAll() bool {
	return d.Value == AllCategories
}

var registry = []Descriptor{
	{DisplayName: "All", Value: AllCategories, Icon: "🏷️"},
	{DisplayName: "Groceries", Value: Groceries, Icon: "🛒"},
	{DisplayName: "Restaurant", Value: Restaurant, Icon: "🍽️"},
	{DisplayName: "Gas", Value: Gas, Icon: "⛽"},
	{DisplayName: "Shopping", Value: Shopping, Icon: "🛍️"},
	{DisplayName: "Entertainment", Value: Entertainment, Icon: "🎬"},
	{DisplayName: "Health", Value: Health, Icon: "💊"},
	{DisplayName: "Transport", Value: Transport, Icon: "🚗"},
	{DisplayName: "Other", Value: Other, Icon: "📦"},
}

var colors = map[Category]Color{
	Groceries:     "#28a745",
	Restaurant:    "#fd7e14",
	Gas:           "#6f42c1",
	Shopping:      "#e83e8c",
	Entertainment: "#20c997",
	Health:        "#17a2b8",
	Transport:     "#ffc107",
	Other:         "#6c757d",
}

// Registry returns the ordered category list, starting with the
// all-categories entry. The returned slice is a copy.
func Registry() []Descriptor {
	out := make([]Descriptor, len(registry))
	copy(out, registry)
	return out
}

// Categories returns the known receipt categories in registry order
func Categories() []Category {
	out := make([]Category, 0, len(registry)-1)
	for _, d := range registry {
		if !d.IsAll() {
			out = append(out, d.Value)
		}
	}
	return out
}

// ParseCategory maps free text onto a known category.
// Unknown or empty input yields Other and ok=false.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c.Known() {
		return c, true
	}
	return Other, false
}

// ParseSelector parses a filter selector. Empty input and "all" select
// every category; anything else must be a known category.
func ParseSelector(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "all" {
		return AllCategories, true
	}
	c := Category(s)
	return c, c.Known()
}

// Known reports whether c is one of the registry categories
func (c Category) Known() bool {
	_, ok := colors[c]
	return ok
}

// Normalize coerces an unknown or missing category to Other
func (c Category) Normalize() Category {
	n, _ := ParseCategory(string(c))
	return n
}

// Title returns the capitalized display label
func (c Category) Title() string {
	if c == AllCategories {
		return "All"
	}
	// Casers carry state, so each call gets its own.
	return cases.Title(language.English).String(string(c))
}

// ColorFor returns the display color of a category, falling back to
// Other's color for anything unrecognized.
func ColorFor(c Category) Color {
	return colors[c.Normalize()]
}
