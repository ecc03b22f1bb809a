// Package money holds the fixed-point currency type used by every balance
// calculation. Amounts are stored as a signed count of minor units (cents),
// so sums and differences are exact. Rounding happens only where a decimal
// or float enters the system, and always rounds half away from zero to two
// places.
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units (1 == 0.01).
type Money int64

const (
	// Cent is the smallest representable amount.
	Cent Money = 1

	// Tolerance is the threshold below which a balance counts as settled.
	Tolerance = Cent

	// MaxAmount bounds a single stored amount; it is the largest value a
	// decimal(12,2) column holds (9,999,999,999.99).
	MaxAmount Money = 999_999_999_999

	// Places is the number of fractional digits carried.
	Places = 2
)

var (
	ErrNonFinite  = errors.New("money: amount is not a finite number")
	ErrOutOfRange = errors.New("money: amount out of range")
	ErrOverflow   = errors.New("money: arithmetic overflow")
)

// Conversions accept anything an int64 count of cents can hold. Whether an
// amount is small enough to store is a separate InRange check.
var (
	maxDecimal = decimal.New(math.MaxInt64, -Places)
	minDecimal = decimal.New(math.MinInt64+1, -Places)
)

// Zero is the zero amount.
const Zero Money = 0

// FromCents wraps a minor-unit count.
func FromCents(cents int64) Money {
	return Money(cents)
}

// FromDecimal rounds d half away from zero to two places.
func FromDecimal(d decimal.Decimal) (Money, error) {
	rounded := d.Round(Places)
	if rounded.GreaterThan(maxDecimal) || rounded.LessThan(minDecimal) {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, d.String())
	}
	return Money(rounded.Shift(Places).IntPart()), nil
}

// FromFloat converts a float amount, rejecting NaN and infinities.
func FromFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrNonFinite
	}
	return FromDecimal(decimal.NewFromFloat(f))
}

// Parse reads a decimal string such as "12.345" or "-3".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return FromDecimal(d)
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Cents() int64 { return int64(m) }

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -Places)
}

// Float64 is for presentation only; never feed it back into arithmetic.
func (m Money) Float64() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

func (m Money) String() string {
	return m.Decimal().StringFixed(Places)
}

func (m Money) Add(o Money) Money { return m + o }
func (m Money) Sub(o Money) Money { return m - o }
func (m Money) Neg() Money        { return -m }

// CheckedAdd is m + o, failing with ErrOverflow instead of wrapping.
func (m Money) CheckedAdd(o Money) (Money, error) {
	s := m + o
	if (o > 0 && s < m) || (o < 0 && s > m) {
		return 0, ErrOverflow
	}
	return s, nil
}

// CheckedSub is m - o, failing with ErrOverflow instead of wrapping. A
// result of math.MinInt64 also fails, so the difference can always be
// negated.
func (m Money) CheckedSub(o Money) (Money, error) {
	d := m - o
	if (o > 0 && d > m) || (o < 0 && d < m) || d == math.MinInt64 {
		return 0, ErrOverflow
	}
	return d, nil
}

func (m Money) Abs() Money {
	if m < 0 {
		return -m
	}
	return m
}

func (m Money) IsZero() bool     { return m == 0 }
func (m Money) IsPositive() bool { return m > 0 }
func (m Money) IsNegative() bool { return m < 0 }

// InRange reports whether m lies within ±MaxAmount, i.e. fits one stored row.
func (m Money) InRange() bool {
	return m >= -MaxAmount && m <= MaxAmount
}

// Settled reports whether m is within Tolerance of zero.
func Settled(m Money) bool {
	return m.Abs() < Tolerance
}

// WithinTolerance reports whether a and b differ by less than Tolerance.
func WithinTolerance(a, b Money) bool {
	return Settled(a - b)
}

func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}

// Sum adds amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total += a
	}
	return total
}

// MarshalJSON writes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*m = 0
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value stores the amount in a decimal(12,2) column.
func (m Money) Value() (driver.Value, error) {
	return m.Decimal().StringFixed(Places), nil
}

// Scan reads decimal, integer or float column values.
func (m *Money) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = 0
		return nil
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*m = parsed
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*m = parsed
	case int64:
		parsed, err := FromDecimal(decimal.NewFromInt(v))
		if err != nil {
			return err
		}
		*m = parsed
	case float64:
		parsed, err := FromFloat(v)
		if err != nil {
			return err
		}
		*m = parsed
	default:
		return fmt.Errorf("money: cannot scan %T", src)
	}
	return nil
}
