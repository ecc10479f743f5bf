package decimal

import (
	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

// FromInt creates decimal from int (common for VND)
func FromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// FromString parses decimal from string
func FromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// FromStringOrZero parses decimal from string, returning zero on malformed
// input. Provider payloads routinely omit or blank numeric fields.
func FromStringOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero
	}
	return d
}

// CalculatePercentage computes: amount * (percentage/100)
// Rounds to 0 decimals (VND has no cents)
func CalculatePercentage(amount decimal.Decimal, percentage decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	return amount.Mul(percentage).Div(hundred).Round(0)
}

// CalculateLineTotal computes: amount - discount + vat
func CalculateLineTotal(amount, discount, vat decimal.Decimal) decimal.Decimal {
	return amount.Sub(discount).Add(vat).Round(0)
}

// Sum sums a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// RoundVND rounds to whole number (VND has no decimals)
func RoundVND(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}
