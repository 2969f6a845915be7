package enums

import "fmt"

// DiscountKind maps to the discount_kind column on price_campaigns.
type DiscountKind string

const (
	// DiscountPercent values are whole-number percentages of the list price.
	DiscountPercent DiscountKind = "percent"
	// DiscountFixedAmount values are minor currency units.
	DiscountFixedAmount DiscountKind = "fixed_amount"
)

var validDiscountKinds = []DiscountKind{
	DiscountPercent,
	DiscountFixedAmount,
}

// String implements fmt.Stringer.
func (k DiscountKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known DiscountKind.
func (k DiscountKind) IsValid() bool {
	for _, candidate := range validDiscountKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseDiscountKind converts raw input into a DiscountKind. The camelCase
// spelling "fixedAmount" is accepted for clients that send it.
func ParseDiscountKind(value string) (DiscountKind, error) {
	if value == "fixedAmount" {
		return DiscountFixedAmount, nil
	}
	for _, candidate := range validDiscountKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount kind %q", value)
}
