// Package money converts between decimal major-unit amounts and integer minor units.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// zeroDecimalCurrencies have no minor unit; 1 major unit == 1 minor unit.
var zeroDecimalCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true,
	"KMF": true, "KRW": true, "MGA": true, "PYG": true, "RWF": true,
	"UGX": true, "VND": true, "VUV": true, "XAF": true, "XOF": true, "XPF": true,
}

// Exponent returns the number of minor-unit digits for currency.
func Exponent(currency string) int32 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// ToMinor converts a major-unit amount to minor units, rounding half away from zero.
func ToMinor(amount decimal.Decimal, currency string) (int64, error) {
	if amount.IsNegative() {
		return 0, ErrInvalidAmount
	}
	minor := amount.Shift(Exponent(currency)).Round(0)
	if !minor.IsInteger() {
		return 0, ErrInvalidAmount
	}
	return minor.IntPart(), nil
}

// FromMinor converts minor units back to a major-unit decimal.
func FromMinor(amountMinor int64, currency string) decimal.Decimal {
	return decimal.NewFromInt(amountMinor).Shift(-Exponent(currency))
}

// Split divides amountMinor into platform fee and provider earning.
// fee = round(amount * rate), earning = amount - fee, so fee + earning == amount.
func Split(amountMinor int64, rate decimal.Decimal) (feeMinor, earningMinor int64) {
	fee := decimal.NewFromInt(amountMinor).Mul(rate).Round(0).IntPart()
	if fee < 0 {
		fee = 0
	}
	if fee > amountMinor {
		fee = amountMinor
	}
	return fee, amountMinor - fee
}
