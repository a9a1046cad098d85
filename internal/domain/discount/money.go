package discount

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.New(5, -1)
)

// Round rounds x to two fractional digits with halves rounded up:
// floor(x*100 + 0.5) / 100. Only values that leave the engine are rounded.
func Round(x decimal.Decimal) decimal.Decimal {
	return x.Mul(hundred).Add(half).Floor().Div(hundred)
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// clamp caps amount at maxDiscount when set, then at base.
func clamp(amount decimal.Decimal, maxDiscount decimal.NullDecimal, base decimal.Decimal) decimal.Decimal {
	if maxDiscount.Valid {
		amount = decimal.Min(amount, maxDiscount.Decimal)
	}
	return floorAtZero(decimal.Min(amount, base))
}
