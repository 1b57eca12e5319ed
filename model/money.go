package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for malformed or negative monetary input.
// Amounts are never coerced; a bad operand aborts the whole computation.
var ErrInvalidAmount = errors.New("invalid amount")

var hundred = decimal.NewFromInt(100)

// ParseAmount parses a non-negative base-10 fixed-point value. All money
// enters the system as strings so that binary floating point never touches
// an invoice.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative value %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// ParseQuantity parses a line-item quantity. Zero quantities are rejected;
// a line that bills nothing is a data entry error, not a discount.
func ParseQuantity(s string) (decimal.Decimal, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: zero quantity", ErrInvalidAmount)
	}
	return d, nil
}

// ValidVATRate reports whether rate is a whole-percent VAT rate.
func ValidVATRate(rate int) bool {
	return rate >= 0 && rate <= 100
}

// Round2 rounds half up to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ComputeLine derives the monetary breakdown of a single line item:
//
//	net   = round2(quantity × unitPriceNet)
//	vat   = round2(net × rate / 100)
//	gross = round2(net + vat)
//
// Each value is rounded independently before it feeds into the next one or
// into an invoice total. Summing already-rounded line values keeps totals
// reproducible to the cent across engines.
func ComputeLine(quantity, unitPriceNet decimal.Decimal, vatRate int) (net, vat, gross decimal.Decimal) {
	net = Round2(quantity.Mul(unitPriceNet))
	vat = Round2(net.Mul(decimal.NewFromInt(int64(vatRate))).Div(hundred))
	gross = Round2(net.Add(vat))
	return net, vat, gross
}
