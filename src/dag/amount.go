package dag

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// AmountDecimals is the number of decimal places carried by an Amount.
	AmountDecimals = 8
	// AmountScale is the number of base units in one whole unit.
	AmountScale = 100000000
)

// Amount is a fixed-point monetary value counted in base units
// (1 unit = AmountScale base units). Its JSON form is the base-unit integer.
type Amount int64

// NewAmount returns the Amount of whole units.
func NewAmount(units int64) Amount {
	return Amount(units * AmountScale)
}

// ParseAmount parses a decimal string such as "12", "-0.5" or "1.00000001".
// More than AmountDecimals fractional digits is an error, as is a value that
// does not fit in an int64 of base units.
func ParseAmount(s string) (Amount, error) {
	str := strings.TrimSpace(s)
	if str == "" {
		return 0, fmt.Errorf("empty amount")
	}

	neg := false
	switch str[0] {
	case '-':
		neg = true
		str = str[1:]
	case '+':
		str = str[1:]
	}

	whole, frac := str, ""
	if i := strings.IndexByte(str, '.'); i >= 0 {
		whole, frac = str[:i], str[i+1:]
	}

	if whole == "" && frac == "" {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if len(frac) > AmountDecimals {
		return 0, fmt.Errorf("amount %q has more than %d decimals", s, AmountDecimals)
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	var units uint64
	if whole != "" {
		w, err := strconv.ParseUint(whole, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %v", s, err)
		}
		if w > math.MaxInt64/AmountScale {
			return 0, fmt.Errorf("amount %q out of range", s)
		}
		units = w * AmountScale
	}

	if frac != "" {
		f, err := strconv.ParseUint(frac+strings.Repeat("0", AmountDecimals-len(frac)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %v", s, err)
		}
		units += f
	}

	if units > math.MaxInt64 {
		return 0, fmt.Errorf("amount %q out of range", s)
	}

	if neg {
		return Amount(-int64(units)), nil
	}
	return Amount(units), nil
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// IsPositive reports whether a is strictly greater than zero.
func (a Amount) IsPositive() bool {
	return a > 0
}

// String formats the amount in whole units, trimming trailing zeros.
func (a Amount) String() string {
	sign := ""
	u := uint64(a)
	if a < 0 {
		sign = "-"
		u = uint64(-(a + 1)) + 1
	}

	whole := u / AmountScale
	frac := u % AmountScale

	if frac == 0 {
		return fmt.Sprintf("%s%d", sign, whole)
	}

	fs := strings.TrimRight(fmt.Sprintf("%08d", frac), "0")
	return fmt.Sprintf("%s%d.%s", sign, whole, fs)
}
