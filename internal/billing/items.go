package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LineItem is a single billable item on a table's order. Items are stored
// as a JSON array on the order row, in the shape POS integrations send them.
type LineItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       FlexPrice `json:"price"`
	Description string    `json:"description,omitempty"`
}

// FlexPrice is a decimal that decodes leniently. POS systems send prices as
// JSON numbers or numeric strings, and occasionally send garbage. A malformed
// price decodes to zero with Coerced set instead of failing the whole order,
// keeping the status view available; callers are expected to log coercions.
type FlexPrice struct {
	decimal.Decimal

	// Coerced reports that the original value could not be parsed and was
	// replaced with zero. Never persisted or serialized.
	Coerced bool `json:"-"`
}

// NewFlexPrice wraps a decimal in a FlexPrice.
func NewFlexPrice(d decimal.Decimal) FlexPrice {
	return FlexPrice{Decimal: d}
}

// UnmarshalJSON accepts a JSON number or a numeric string. It never returns
// an error: unparseable or negative input becomes zero with Coerced set, so a
// bad price cannot shrink the order total.
func (p *FlexPrice) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		p.Decimal = decimal.Zero
		p.Coerced = true
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		p.Decimal = decimal.Zero
		p.Coerced = true
		return nil
	}
	p.Decimal = d
	return nil
}

// MarshalJSON emits the price as a plain JSON number.
func (p FlexPrice) MarshalJSON() ([]byte, error) {
	return []byte(p.Decimal.String()), nil
}

// CountCoercedPrices returns how many item prices were coerced during decoding.
func CountCoercedPrices(items []LineItem) int {
	n := 0
	for _, it := range items {
		if it.Price.Coerced {
			n++
		}
	}
	return n
}
