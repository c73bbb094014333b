// Package money converts between minor-unit amounts, decimal input and the
// display format used in order summaries.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var ErrInvalidAmount = errors.New("invalid amount")

// Formatter renders minor-unit amounts as "<symbol><grouped amount>", e.g. GY$1,234.00
type Formatter struct {
	unit    currency.Unit
	symbol  string
	printer *message.Printer
}

// NewFormatter creates a Formatter for an ISO 4217 currency code. An empty
// symbol falls back to the code followed by a space.
func NewFormatter(code, symbol string) (*Formatter, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("failed to parse currency code %q: %w", code, err)
	}

	if symbol == "" {
		symbol = unit.String() + " "
	}

	return &Formatter{
		unit:    unit,
		symbol:  symbol,
		printer: message.NewPrinter(language.English),
	}, nil
}

// Currency returns the ISO code of the formatter's currency
func (f *Formatter) Currency() string {
	return f.unit.String()
}

// Format renders cents with thousands grouping and two decimals
func (f *Formatter) Format(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	amount := FromCents(cents).InexactFloat64()
	return sign + f.symbol + f.printer.Sprint(number.Decimal(amount, number.Scale(2)))
}

// FromCents converts a minor-unit amount to a decimal in major units
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ToCents converts a major-unit decimal to minor units, rounding half away from zero
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// ParseAmount parses a decimal string such as "12.50" or "1,200" into minor units
func ParseAmount(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	return ToCents(d), nil
}
