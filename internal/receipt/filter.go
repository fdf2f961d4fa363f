package receipt

import (
	"fmt"
	"strings"
)

// Matches reports whether the merchant name or any item name contains
// query, ignoring case. An empty query matches every receipt.
func (r Receipt) Matches(query string) bool {
	q := strings.ToLower(query)
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(r.MerchantName), q) {
		return true
	}
	for _, item := range r.Items {
		if strings.Contains(strings.ToLower(item.Name), q) {
			return true
		}
	}
	return false
}

// Search returns the receipts matching query in their original order.
// The input slice is left untouched.
func Search(receipts []Receipt, query string) []Receipt {
	out := make([]Receipt, 0, len(receipts))
	for _, r := range receipts {
		if r.Matches(query) {
			out = append(out, r)
		}
	}
	return out
}

// View is the visible subset of an already category-scoped receipt set
type View struct {
	Receipts         []Receipt `json:"receipts"`
	Category         Category  `json:"category"`
	Query            string    `json:"query"`
	IsEmpty          bool      `json:"is_empty"`
	HasActiveFilters bool      `json:"has_active_filters"`
}

// Visible applies the free-text search to receipts, which the caller has
// already fetched for category. Category narrowing happens at fetch time.
func Visible(receipts []Receipt, category Category, query string) View {
	matched := Search(receipts, query)
	return View{
		Receipts:         matched,
		Category:         category,
		Query:            query,
		IsEmpty:          len(matched) == 0,
		HasActiveFilters: query != "" || category != AllCategories,
	}
}

// Searching reports whether a text query is active
func (v View) Searching() bool {
	return v.Query != ""
}

// EmptyMessage describes why the view is empty. It returns "" for a
// non-empty view.
func (v View) EmptyMessage() string {
	switch {
	case !v.IsEmpty:
		return ""
	case v.Searching():
		return "No receipts found"
	case v.Category != AllCategories:
		return fmt.Sprintf("No %s receipts yet", v.Category)
	default:
		return "No receipts yet"
	}
}

// EmptyHint is the secondary line shown with EmptyMessage
func (v View) EmptyHint() string {
	switch {
	case !v.IsEmpty:
		return ""
	case v.Searching():
		return "Try a different search term"
	default:
		return "Upload your first receipt to get started!"
	}
}
