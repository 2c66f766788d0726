// Package amount implements the arbitrary-precision, non-negative integer
// money type used throughout the ledger, balances, contracts and sessions.
// No float64 ever represents a monetary value in this module; amounts cross
// process and wire boundaries as decimal strings.
package amount

import (
	"database/sql/driver"
	"fmt"
	"math/big"
)

// Amount is a non-negative integer quantity of the smallest unit of
// currency (e.g. cents). The zero value is zero.
type Amount struct {
	v *big.Int
}

// Zero is the additive identity.
func Zero() Amount {
	return Amount{v: big.NewInt(0)}
}

// FromInt64 builds an Amount from a non-negative int64.
func FromInt64(n int64) (Amount, error) {
	if n < 0 {
		return Amount{}, fmt.Errorf("amount: negative value %d", n)
	}
	return Amount{v: big.NewInt(n)}, nil
}

// MustFromInt64 panics if n is negative. Reserved for constants and tests.
func MustFromInt64(n int64) Amount {
	a, err := FromInt64(n)
	if err != nil {
		panic(err)
	}
	return a
}

// Parse reads a base-10 integer decimal string (no fractional part, no
// sign other than an optional leading '+') into an Amount.
func Parse(s string) (Amount, error) {
	if s == "" {
		return Amount{}, fmt.Errorf("amount: empty string")
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("amount: invalid decimal string %q", s)
	}
	if n.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount: negative value %q", s)
	}
	return Amount{v: n}, nil
}

func (a Amount) big() *big.Int {
	if a.v == nil {
		return big.NewInt(0)
	}
	return a.v
}

// String renders the amount as a base-10 decimal string.
func (a Amount) String() string {
	return a.big().String()
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool {
	return a.big().Sign() == 0
}

// Add returns a + b.
func Add(a, b Amount) Amount {
	return Amount{v: new(big.Int).Add(a.big(), b.big())}
}

// Sub returns a - b. It is the caller's responsibility to ensure the
// result is used only where negative intermediates are acceptable;
// callers that require a non-negative result should check Cmp first or
// use SubNonNegative.
func Sub(a, b Amount) Amount {
	return Amount{v: new(big.Int).Sub(a.big(), b.big())}
}

// SubNonNegative returns a - b and an error if the result would be negative.
func SubNonNegative(a, b Amount) (Amount, error) {
	r := new(big.Int).Sub(a.big(), b.big())
	if r.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount: %s - %s is negative", a, b)
	}
	return Amount{v: r}, nil
}

// MulInt returns a * n for a non-negative integer multiplier n.
func MulInt(a Amount, n int) Amount {
	return Amount{v: new(big.Int).Mul(a.big(), big.NewInt(int64(n)))}
}

// MulBps returns floor(a * bps / 10000), the standard basis-point fee
// computation used by the contract engine's platform fee (§4.3 of the
// design: deterministic, rounds down).
func MulBps(a Amount, bps int64) Amount {
	num := new(big.Int).Mul(a.big(), big.NewInt(bps))
	den := big.NewInt(10000)
	q := new(big.Int).Quo(num, den)
	return Amount{v: q}
}

// QuoRem returns floor(a/n) and a mod n for a positive integer divisor n.
// Used by the contract engine's even-split distribution (§4.3.2): n is
// always a small player count, so the remainder fits comfortably in an
// int64.
func QuoRem(a Amount, n int64) (quotient Amount, remainder int64) {
	if n <= 0 {
		return Zero(), 0
	}
	q, r := new(big.Int).QuoRem(a.big(), big.NewInt(n), new(big.Int))
	return Amount{v: q}, r.Int64()
}

// Cmp returns -1, 0, or 1 as a is less than, equal to, or greater than b.
func Cmp(a, b Amount) int {
	return a.big().Cmp(b.big())
}

// LessThan reports whether a < b.
func LessThan(a, b Amount) bool { return Cmp(a, b) < 0 }

// GreaterThan reports whether a > b.
func GreaterThan(a, b Amount) bool { return Cmp(a, b) > 0 }

// Sum totals a slice of amounts.
func Sum(amounts ...Amount) Amount {
	total := Zero()
	for _, a := range amounts {
		total = Add(total, a)
	}
	return total
}

// MarshalJSON encodes the amount as a quoted decimal string, so monetary
// fields never round-trip through a JSON number and lose precision.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON decodes a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer so an Amount can be stored as TEXT/NUMERIC.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case int64:
		parsed, err := FromInt64(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	default:
		return fmt.Errorf("amount: cannot scan %T", src)
	}
}
