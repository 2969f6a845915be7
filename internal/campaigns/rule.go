package campaigns

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/clinicvax-backend/pkg/enums"
)

// DiscountRule computes the discount a campaign grants on a list price. The
// result is always within [0, listPrice].
type DiscountRule interface {
	Kind() enums.DiscountKind
	Discount(listPrice int64) int64
}

// PercentOff takes a whole-number percentage off the list price, rounding
// half away from zero to the nearest minor unit.
type PercentOff struct {
	Percent int64
}

func (PercentOff) Kind() enums.DiscountKind { return enums.DiscountPercent }

func (p PercentOff) Discount(listPrice int64) int64 {
	amount := decimal.NewFromInt(listPrice).
		Mul(decimal.NewFromInt(p.Percent)).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return clamp(amount.IntPart(), listPrice)
}

// FixedAmountOff takes a fixed number of minor units off, never more than the
// list price.
type FixedAmountOff struct {
	Amount int64
}

func (FixedAmountOff) Kind() enums.DiscountKind { return enums.DiscountFixedAmount }

func (f FixedAmountOff) Discount(listPrice int64) int64 {
	return clamp(f.Amount, listPrice)
}

// RuleFor maps a stored discount kind to its rule.
func RuleFor(kind enums.DiscountKind, value int64) (DiscountRule, error) {
	switch kind {
	case enums.DiscountPercent:
		return PercentOff{Percent: value}, nil
	case enums.DiscountFixedAmount:
		return FixedAmountOff{Amount: value}, nil
	default:
		return nil, fmt.Errorf("unsupported discount kind %q", kind)
	}
}

func clamp(discount, listPrice int64) int64 {
	if listPrice <= 0 || discount <= 0 {
		return 0
	}
	if discount > listPrice {
		return listPrice
	}
	return discount
}
