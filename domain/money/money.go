// Package money provides an exact, integer-cents representation of prices.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when an amount cannot be represented as Money.
var ErrInvalidAmount = errors.New("invalid amount")

// MaxCents is the largest representable amount (999999.99).
const MaxCents int64 = 99_999_999

// decimalPattern accepts plain unsigned decimals: "123", "123.4", "123.45".
var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

var hundred = decimal.NewFromInt(100)

// Money is an immutable amount in minor units (cents).
type Money struct {
	cents int64
}

// Zero is the zero amount.
var Zero = Money{}

// FromDecimal parses a human-entered amount in major units.
// "123" and "123.00" both yield 12300 cents.
func FromDecimal(input string) (Money, error) {
	s := strings.TrimSpace(input)
	if !decimalPattern.MatchString(s) {
		return Zero, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidAmount, input)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	cents := d.Mul(hundred)
	if !cents.IsInteger() {
		return Zero, fmt.Errorf("%w: %q has more than 2 fractional digits", ErrInvalidAmount, input)
	}
	if cents.GreaterThan(decimal.NewFromInt(MaxCents)) {
		return Zero, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, input)
	}

	return Money{cents: cents.IntPart()}, nil
}

// MustFromDecimal is like FromDecimal but panics on error. Intended for tests and constants.
func MustFromDecimal(input string) Money {
	m, err := FromDecimal(input)
	if err != nil {
		panic(err)
	}
	return m
}

// FromCents builds Money from an amount already expressed in cents.
func FromCents(cents int64) (Money, error) {
	if cents < 0 || cents > MaxCents {
		return Zero, fmt.Errorf("%w: %d cents is out of range", ErrInvalidAmount, cents)
	}
	return Money{cents: cents}, nil
}

// Cents returns the amount in minor units.
func (m Money) Cents() int64 {
	return m.cents
}

// ToDecimalString formats the amount in major units with exactly two decimals.
func (m Money) ToDecimalString() string {
	return decimal.New(m.cents, -2).StringFixed(2)
}

// String implements fmt.Stringer.
func (m Money) String() string {
	return m.ToDecimalString()
}

// Equal reports whether both amounts hold the same number of cents.
func (m Money) Equal(other Money) bool {
	return m.cents == other.cents
}

// Compare returns -1, 0 or +1 depending on whether m is less than, equal to or greater than other.
func (m Money) Compare(other Money) int {
	switch {
	case m.cents < other.cents:
		return -1
	case m.cents > other.cents:
		return 1
	default:
		return 0
	}
}

// MarshalJSON encodes the amount as its two-decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToDecimalString())
}

// UnmarshalJSON accepts either a decimal string ("12.50") or a bare JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidAmount, data)
		}
		s = n.String()
	}
	parsed, err := FromDecimal(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// GormDataType stores money as an integer column.
func (Money) GormDataType() string {
	return "bigint"
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return m.cents, nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		m.cents = v
	case int:
		m.cents = int64(v)
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return fmt.Errorf("failed to scan money: %w", err)
		}
		m.cents = n
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to scan money: %w", err)
		}
		m.cents = n
	case nil:
		m.cents = 0
	default:
		return fmt.Errorf("failed to scan money: unsupported type %T", src)
	}
	return nil
}
