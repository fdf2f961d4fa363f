package receipt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ID is the opaque receipt identifier assigned by the backend.
// It decodes from either a JSON number or a JSON string.
type ID string

// UnmarshalJSON accepts numeric and string identifiers
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding receipt id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding receipt id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Item is a single purchased line on a receipt
type Item struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// UnmarshalJSON decodes an item, defaulting a missing quantity to 1
func (i *Item) UnmarshalJSON(data []byte) error {
	type plain Item
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Quantity == 0 {
		p.Quantity = 1
	}
	*i = Item(p)
	return nil
}

// Validate checks the item invariants
func (i Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("item name is required")
	}
	if i.Quantity < 1 {
		return fmt.Errorf("item %q: quantity must be at least 1, got %d", i.Name, i.Quantity)
	}
	if i.Price.IsNegative() {
		return fmt.Errorf("item %q: price must not be negative", i.Name)
	}
	return nil
}

// Receipt is a parsed receipt as returned by the backend.
// The client never mutates a Receipt; changes arrive through a re-fetch.
type Receipt struct {
	ID            ID              `json:"id"`
	MerchantName  string          `json:"merchant_name"`
	Date          string          `json:"date"` // ISO 8601 date, YYYY-MM-DD
	Time          string          `json:"time,omitempty"`
	Category      Category        `json:"category"`
	Items         []Item          `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Filename      string          `json:"filename"`
	AIModel       string          `json:"ai_model,omitempty"`
	CreatedAt     *time.Time      `json:"created_at,omitempty"`
}

// Validate checks the required fields and amount invariants
func (r Receipt) Validate() error {
	if strings.TrimSpace(r.MerchantName) == "" {
		return fmt.Errorf("receipt %s: merchant name is required", r.ID)
	}
	if _, err := time.Parse("2006-01-02", r.Date); err != nil {
		return fmt.Errorf("receipt %s: invalid date %q: %w", r.ID, r.Date, err)
	}
	amounts := []struct {
		name   string
		amount decimal.Decimal
	}{
		{"subtotal", r.Subtotal},
		{"tax", r.Tax},
		{"total", r.Total},
	}
	for _, a := range amounts {
		if a.amount.IsNegative() {
			return fmt.Errorf("receipt %s: %s must not be negative", r.ID, a.name)
		}
	}
	for _, item := range r.Items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("receipt %s: %w", r.ID, err)
		}
	}
	return nil
}

// Balanced reports whether total equals subtotal plus tax.
// Only used for display; mismatches are never rejected.
func (r Receipt) Balanced() bool {
	return r.Subtotal.Add(r.Tax).Equal(r.Total)
}

// Month returns the YYYY-MM key of the receipt date
func (r Receipt) Month() string {
	if len(r.Date) < 7 {
		return r.Date
	}
	return r.Date[:7]
}

// Summary is the aggregate spending view over a set of receipts
type Summary struct {
	TotalReceipts int                        `json:"total_receipts"`
	TotalSpent    decimal.Decimal            `json:"total_spent"`
	ByCategory    map[string]decimal.Decimal `json:"by_category"`
	ByMonth       map[string]decimal.Decimal `json:"by_month"`
}

// Empty reports the no-receipts state, which consumers render specially
func (s Summary) Empty() bool {
	return s.TotalReceipts == 0
}
