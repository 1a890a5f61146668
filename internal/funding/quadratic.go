package funding

import (
	"math"

	"plura/internal/domain" // Importing domain models

	"github.com/shopspring/decimal" // Decimal credit amounts
)

// scoreEpsilon absorbs float64 sqrt rounding: with a single fractional
// contributor (sqrt(a))^2 can land marginally below the raw amount, and the
// bonus must never be reported negative or as a phantom positive.
const scoreEpsilon = 1e-9

// SquareRoots returns the per-user square root of each cumulative allocation.
// Zero or negative stored amounts clamp to zero, never NaN.
func SquareRoots(credits []domain.ProposalCredit) map[string]float64 {
	roots := make(map[string]float64, len(credits))
	for _, c := range credits {
		amount := c.Amount.InexactFloat64()
		if amount < 0 {
			amount = 0
		}
		roots[c.UserID] = math.Sqrt(amount)
	}
	return roots
}

// Score computes the quadratic funding score (sqrt(a) + sqrt(b) + ...)^2.
// Broad small-donor support beats a single large donor for equal totals:
// nine users giving 1 each score 81, one user giving 9 scores 9.
func Score(credits []domain.ProposalCredit) float64 {
	if len(credits) == 0 {
		return 0
	}
	var sum float64
	for _, root := range SquareRoots(credits) {
		sum += root
	}
	return sum * sum
}

// Bonus is the matching-fund bonus: the excess of the quadratic score over
// the raw sum of contributions, clamped at zero.
func Bonus(score float64, raw decimal.Decimal) float64 {
	bonus := score - raw.InexactFloat64()
	if bonus <= scoreEpsilon {
		return 0
	}
	return bonus
}

// RawTotal sums the stored allocation amounts
func RawTotal(credits []domain.ProposalCredit) decimal.Decimal {
	total := decimal.Zero
	for _, c := range credits {
		total = total.Add(c.Amount)
	}
	return total
}
