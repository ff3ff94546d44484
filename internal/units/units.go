package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrMalformedAmount is returned for input that is not a plain non-negative decimal.
var ErrMalformedAmount = errors.New("malformed amount")

// ToBaseUnits converts a human amount to integer base units,
// e.g. "10" with 6 decimals -> 10000000. Fraction digits beyond decimals are dropped.
func ToBaseUnits(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedAmount)
	}

	whole, frac, _ := strings.Cut(amount, ".")
	if whole == "" && frac == "" {
		return nil, fmt.Errorf("%w: %q", ErrMalformedAmount, amount)
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return nil, fmt.Errorf("%w: %q", ErrMalformedAmount, amount)
	}

	d := int(decimals)
	if len(frac) > d {
		frac = frac[:d]
	} else {
		frac += strings.Repeat("0", d-len(frac))
	}

	combined := strings.TrimLeft(whole+frac, "0")
	if combined == "" {
		return new(big.Int), nil
	}

	result, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMalformedAmount, amount)
	}
	return result, nil
}

// ToDecimalString converts base units back to a human amount without trailing zeros.
func ToDecimalString(amount *big.Int, decimals uint8) string {
	if amount == nil || amount.Sign() == 0 {
		return "0"
	}

	str := amount.String()
	negative := strings.HasPrefix(str, "-")
	str = strings.TrimPrefix(str, "-")

	d := int(decimals)
	if len(str) <= d {
		str = strings.Repeat("0", d-len(str)+1) + str
	}

	whole := str[:len(str)-d]
	frac := strings.TrimRight(str[len(str)-d:], "0")

	result := whole
	if frac != "" {
		result = whole + "." + frac
	}
	if negative {
		result = "-" + result
	}
	return result
}

// FormatFixed renders base units with exactly places fraction digits, truncating.
func FormatFixed(amount *big.Int, decimals uint8, places int) string {
	if places < 0 {
		places = 0
	}
	if amount == nil {
		amount = new(big.Int)
	}

	str := new(big.Int).Abs(amount).String()
	d := int(decimals)
	if len(str) <= d {
		str = strings.Repeat("0", d-len(str)+1) + str
	}
	whole := str[:len(str)-d]
	frac := str[len(str)-d:]
	if len(frac) > places {
		frac = frac[:places]
	} else {
		frac += strings.Repeat("0", places-len(frac))
	}

	result := whole
	if places > 0 {
		result += "." + frac
	}
	if amount.Sign() < 0 {
		result = "-" + result
	}
	return result
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
