package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units (cents). All arithmetic on prices and
// totals happens on this integer type; decimals only appear at the JSON
// boundary and when reading catalog prices.
type Money int64

// MoneyFromDecimal converts an exact decimal amount into cents. Amounts with
// more than two fractional digits are rejected rather than rounded.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if !d.Equal(d.Truncate(2)) {
		return 0, fmt.Errorf("amount %s has sub-cent precision", d.String())
	}
	return Money(d.Shift(2).IntPart()), nil
}

// ParseMoney parses a decimal string such as "10.00".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return MoneyFromDecimal(d)
}

func (m Money) Times(quantity int) Money {
	return m * Money(quantity)
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON writes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	v, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
