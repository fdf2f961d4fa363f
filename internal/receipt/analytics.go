package receipt

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Summarize aggregates receipts into a Summary. Amounts are accumulated
// exactly; rounding is left to presentation. Receipts with an unknown or
// missing category are counted under Other.
func Summarize(receipts []Receipt) Summary {
	s := Summary{
		TotalSpent: decimal.Zero,
		ByCategory: make(map[string]decimal.Decimal),
		ByMonth:    make(map[string]decimal.Decimal),
	}
	if len(receipts) == 0 {
		return s
	}

	s.TotalReceipts = len(receipts)
	for _, r := range receipts {
		s.TotalSpent = s.TotalSpent.Add(r.Total)

		category := string(r.Category.Normalize())
		s.ByCategory[category] = s.ByCategory[category].Add(r.Total)

		month := r.Month()
		s.ByMonth[month] = s.ByMonth[month].Add(r.Total)
	}
	return s
}

// AveragePerReceipt is TotalSpent divided by TotalReceipts, or zero for
// an empty summary.
func (s Summary) AveragePerReceipt() decimal.Decimal {
	if s.TotalReceipts <= 0 {
		return decimal.Zero
	}
	return s.TotalSpent.Div(decimal.NewFromInt(int64(s.TotalReceipts)))
}

// Percent returns part as a percentage of TotalSpent, or zero when
// nothing has been spent.
func (s Summary) Percent(part decimal.Decimal) decimal.Decimal {
	if s.TotalSpent.IsZero() {
		return decimal.Zero
	}
	return part.Div(s.TotalSpent).Mul(hundred)
}

// Share is one row of a breakdown
type Share struct {
	Key     string          `json:"key"`
	Label   string          `json:"label"`
	Amount  decimal.Decimal `json:"amount"`
	Percent decimal.Decimal `json:"percent"`
	Color   Color           `json:"color,omitempty"`
}

// CategoryBreakdown lists ByCategory in registry order; keys the registry
// does not know follow alphabetically.
func (s Summary) CategoryBreakdown() []Share {
	shares := make([]Share, 0, len(s.ByCategory))
	seen := make(map[string]bool, len(s.ByCategory))
	for _, c := range Categories() {
		amount, ok := s.ByCategory[string(c)]
		if !ok {
			continue
		}
		seen[string(c)] = true
		shares = append(shares, Share{
			Key:     string(c),
			Label:   c.Title(),
			Amount:  amount,
			Percent: s.Percent(amount),
			Color:   ColorFor(c),
		})
	}

	var extra []string
	for key := range s.ByCategory {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		c := Category(key)
		shares = append(shares, Share{
			Key:     key,
			Label:   c.Title(),
			Amount:  s.ByCategory[key],
			Percent: s.Percent(s.ByCategory[key]),
			Color:   ColorFor(c),
		})
	}
	return shares
}

// MonthBreakdown lists ByMonth chronologically
func (s Summary) MonthBreakdown() []Share {
	keys := make([]string, 0, len(s.ByMonth))
	for key := range s.ByMonth {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	shares := make([]Share, 0, len(keys))
	for _, key := range keys {
		shares = append(shares, Share{
			Key:     key,
			Label:   MonthLabel(key),
			Amount:  s.ByMonth[key],
			Percent: s.Percent(s.ByMonth[key]),
		})
	}
	return shares
}

// MonthLabel renders a YYYY-MM key as "March 2024". Keys that do not
// parse are returned unchanged.
func MonthLabel(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return key
	}
	return t.Format("January 2006")
}
