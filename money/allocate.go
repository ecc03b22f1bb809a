package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNoParts        = errors.New("money: nothing to split between")
	ErrInvalidWeights = errors.New("money: weights must be non-negative and sum above zero")
)

// Split divides total into n equal parts. Cents lost to integer division
// go one each to the leading parts, so the parts always add up to total.
func Split(total Money, n int) ([]Money, error) {
	if n <= 0 {
		return nil, ErrNoParts
	}
	count := Money(n)
	base := total / count
	rem := total % count

	parts := make([]Money, n)
	for i := range parts {
		parts[i] = base
	}
	distribute(parts, rem, nil)
	return parts, nil
}

// Allocate divides total in proportion to weights (percentages, share
// counts). Each part is truncated toward zero and the leftover cents go
// one each to the leading parts with a non-zero weight.
func Allocate(total Money, weights []decimal.Decimal) ([]Money, error) {
	if len(weights) == 0 {
		return nil, ErrNoParts
	}
	sum := decimal.Zero
	for _, w := range weights {
		if w.IsNegative() {
			return nil, ErrInvalidWeights
		}
		sum = sum.Add(w)
	}
	if !sum.IsPositive() {
		return nil, ErrInvalidWeights
	}

	cents := decimal.NewFromInt(int64(total))
	parts := make([]Money, len(weights))
	var allocated Money
	for i, w := range weights {
		parts[i] = Money(cents.Mul(w).Div(sum).Truncate(0).IntPart())
		allocated += parts[i]
	}
	distribute(parts, total-allocated, weights)
	return parts, nil
}

func distribute(parts []Money, rem Money, weights []decimal.Decimal) {
	step := Cent
	if rem < 0 {
		step = -Cent
	}
	for i := 0; rem != 0; i = (i + 1) % len(parts) {
		if weights != nil && weights[i].IsZero() {
			continue
		}
		parts[i] += step
		rem -= step
	}
}
