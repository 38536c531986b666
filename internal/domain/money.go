// Package domain holds the ledger's core value types: money, identifiers,
// and the event record. None of it talks to a store or a transport.
package domain

import (
	"database/sql/driver"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Money is a signed, fixed-precision amount. It is always kept in
// normalized form: the underlying value carries no trailing zeros after
// the decimal point, so two amounts that are numerically equal also compare byte-identical
// once rendered canonically (required for content hashing, §4.2).
type Money struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Money{d: decimal.Zero}

// MoneyFromCents builds a Money from an integer number of minor units
// (e.g. cents), i.e. value/100.
func MoneyFromCents(cents int64) Money {
	return normalize(decimal.New(cents, -2))
}

// MoneyFromString parses a decimal literal such as "-30" or "12.50".
func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("domain: invalid money %q: %w", s, err)
	}
	return normalize(d), nil
}

func normalize(d decimal.Decimal) Money {
	coeff := d.Coefficient() // signed magnitude as stored
	exp := d.Exponent()
	ten := big.NewInt(10)

	c := new(big.Int).Set(coeff)
	for exp < 0 {
		q, r := new(big.Int).QuoRem(c, ten, new(big.Int))
		if r.Sign() != 0 {
			break
		}
		c = q
		exp++
	}
	if c.Sign() == 0 {
		return Money{d: decimal.Zero}
	}
	return Money{d: decimal.NewFromBigInt(c, exp)}
}

// Canonical renders the amount the way §4.2 requires for hashing: the
// normalized decimal literal, no trailing zeros, "0" for zero.
func (m Money) Canonical() string { return m.d.String() }

func (m Money) String() string { return m.d.String() }

// Sign reports -1, 0, or 1.
func (m Money) Sign() int { return m.d.Sign() }

func (m Money) IsZero() bool { return m.d.IsZero() }
func (m Money) IsNegative() bool { return m.d.Sign() < 0 }
func (m Money) IsPositive() bool { return m.d.Sign() > 0 }

func (m Money) Add(o Money) Money { return normalize(m.d.Add(o.d)) }
func (m Money) Sub(o Money) Money { return normalize(m.d.Sub(o.d)) }
func (m Money) Neg() Money        { return normalize(m.d.Neg()) }

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }
func (m Money) LessThan(o Money) bool    { return m.d.LessThan(o.d) }
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }

func (m Money) MarshalJSON() ([]byte, error) { return m.d.MarshalJSON() }

func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*m = normalize(d)
	return nil
}

// Value/Scan let Money round-trip through pgx as a numeric column.
func (m Money) Value() (driver.Value, error) { return m.d.Value() }

func (m *Money) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return err
	}
	*m = normalize(d)
	return nil
}
