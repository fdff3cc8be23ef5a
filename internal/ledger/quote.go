package ledger

import "github.com/shopspring/decimal"

// DefaultPrecision is the number of fractional digits minted amounts are rounded to.
const DefaultPrecision int32 = 4

// MaxAmount is the exclusive upper bound of a single quantity: NUMERIC(36,18)
// leaves 18 integer digits.
var MaxAmount = decimal.New(1, 36-MaxScale)

// ValidAmount reports whether amount is positive and representable in a
// NUMERIC(36,18) column.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() &&
		amount.LessThan(MaxAmount) &&
		amount.Equal(amount.Truncate(MaxScale))
}

// Quote converts a fiat amount into token units at price, rounded half away
// from zero to precision places. Zero precision issues whole units; a
// negative precision selects DefaultPrecision. It returns zero whenever price or fiat is not
// positive so callers can treat a zero quote as "nothing to issue".
func Quote(fiat, price decimal.Decimal, precision int32) decimal.Decimal {
	if !price.IsPositive() || !fiat.IsPositive() {
		return decimal.Zero
	}
	return fiat.DivRound(price, clampPrecision(precision))
}

// ProjectedReward is the display-only simple interest of a stake held for its
// full lock: principal × rate/100 × days/365, rounded to 8 places.
func ProjectedReward(principal, annualRatePercent decimal.Decimal, lockDays int) decimal.Decimal {
	if lockDays <= 0 {
		return decimal.Zero
	}
	return principal.
		Mul(annualRatePercent).
		Mul(decimal.NewFromInt(int64(lockDays))).
		DivRound(decimal.NewFromInt(36500), 8)
}

func clampPrecision(p int32) int32 {
	switch {
	case p < 0:
		return DefaultPrecision
	case p > MaxScale:
		return MaxScale
	default:
		return p
	}
}
