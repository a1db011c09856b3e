package normalizer

import "github.com/shopspring/decimal"

// DefaultTickSize is the price increment used when the caller passes none.
var DefaultTickSize = decimal.RequireFromString("0.1")

// RoundToTick rounds value to the nearest multiple of tick, halves away
// from zero. Rounding an already rounded value returns it unchanged.
func RoundToTick(value, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		tick = DefaultTickSize
	}
	return value.Div(tick).Round(0).Mul(tick)
}

// RoundNullToTick rounds a present value and leaves an absent one absent.
func RoundNullToTick(value decimal.NullDecimal, tick decimal.Decimal) decimal.NullDecimal {
	if !value.Valid {
		return value
	}
	return decimal.NewNullDecimal(RoundToTick(value.Decimal, tick))
}
