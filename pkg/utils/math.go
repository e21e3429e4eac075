package utils

import "github.com/shopspring/decimal"

// RoundToTick rounds value down to the nearest multiple of tickSize (toward
// negative infinity, which is toward zero for positive prices). A non-positive tickSize is a
// no-op, matching exchanges that report no tick constraint.
func RoundToTick(value, tickSize decimal.Decimal) decimal.Decimal {
	if tickSize.Sign() <= 0 {
		return value
	}
	ticks := value.Div(tickSize).Floor()
	return ticks.Mul(tickSize)
}

// CalculateSpreadBPS returns the distance between two prices in basis points
// of priceLow. Used by the Aggregator to flag a cross-check tick that has
// drifted too far from the last accepted price.
func CalculateSpreadBPS(priceHigh, priceLow decimal.Decimal) decimal.Decimal {
	if priceLow.Sign() <= 0 {
		return decimal.Zero
	}
	return priceHigh.Sub(priceLow).Div(priceLow).Mul(decimal.NewFromInt(10000))
}

// CalculatePnL returns the absolute profit/loss for a directional position.
// side must be "LONG" or "SHORT" (case-insensitive); any other value yields zero.
func CalculatePnL(side string, entryPrice, currentPrice, quantity decimal.Decimal) decimal.Decimal {
	diff := currentPrice.Sub(entryPrice)
	switch normalizeSide(side) {
	case "LONG":
		return diff.Mul(quantity)
	case "SHORT":
		return diff.Neg().Mul(quantity)
	default:
		return decimal.Zero
	}
}

// CalculatePnLPercent returns PnL as a percentage of the entry price,
// independent of position size.
func CalculatePnLPercent(side string, entryPrice, currentPrice decimal.Decimal) decimal.Decimal {
	if entryPrice.Sign() == 0 {
		return decimal.Zero
	}
	diff := currentPrice.Sub(entryPrice)
	switch normalizeSide(side) {
	case "LONG":
		return diff.Div(entryPrice).Mul(decimal.NewFromInt(100))
	case "SHORT":
		return diff.Neg().Div(entryPrice).Mul(decimal.NewFromInt(100))
	default:
		return decimal.Zero
	}
}

// ApplyBreakEvenBuffer computes the stop-loss price that locks in entry plus
// a small buffer in the trade's favor, expressed in basis points of entry.
// Used by the "move SL to break-even" Lifecycle operation.
func ApplyBreakEvenBuffer(entryPrice decimal.Decimal, side string, bufferBPS decimal.Decimal) decimal.Decimal {
	buffer := entryPrice.Mul(bufferBPS).Div(decimal.NewFromInt(10000))
	switch normalizeSide(side) {
	case "LONG":
		return entryPrice.Add(buffer)
	case "SHORT":
		return entryPrice.Sub(buffer)
	default:
		return entryPrice
	}
}

// IsStopLossHit reports whether currentPrice has reached or passed the given
// stop-loss level for the given side.
func IsStopLossHit(side string, currentPrice, slPrice decimal.Decimal) bool {
	switch normalizeSide(side) {
	case "LONG":
		return currentPrice.LessThanOrEqual(slPrice)
	case "SHORT":
		return currentPrice.GreaterThanOrEqual(slPrice)
	default:
		return false
	}
}

// IsTakeProfitHit reports whether currentPrice has reached or passed the
// given target level for the given side.
func IsTakeProfitHit(side string, currentPrice, tpPrice decimal.Decimal) bool {
	switch normalizeSide(side) {
	case "LONG":
		return currentPrice.GreaterThanOrEqual(tpPrice)
	case "SHORT":
		return currentPrice.LessThanOrEqual(tpPrice)
	default:
		return false
	}
}

// ClampDecimal constrains v to the closed interval [min, max].
func ClampDecimal(v, min, max decimal.Decimal) decimal.Decimal {
	if v.LessThan(min) {
		return min
	}
	if v.GreaterThan(max) {
		return max
	}
	return v
}

func normalizeSide(side string) string {
	switch side {
	case "long", "LONG", "Long":
		return "LONG"
	case "short", "SHORT", "Short":
		return "SHORT"
	default:
		return ""
	}
}
