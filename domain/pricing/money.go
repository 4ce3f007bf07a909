package pricing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in micro-units (1e-6) of the schedule currency.
// Sub-cent unit prices such as 0.005 are exact.
type Money int64

// MicrosPerUnit is the number of micro-units in one currency unit.
const MicrosPerUnit = 1_000_000

// ParseMoney parses a decimal string such as "0.005" or "24" exactly.
// At most six fractional digits are accepted and a leading '-' is the only
// sign allowed.
func ParseMoney(s string) (Money, error) {
	in := strings.TrimSpace(s)
	body, neg := strings.CutPrefix(in, "-")

	whole, frac, _ := strings.Cut(body, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("parse money %q: no digits", in)
	}
	if !digits(whole) || !digits(frac) {
		return 0, fmt.Errorf("parse money %q: not a decimal number", in)
	}
	if len(frac) > 6 {
		return 0, fmt.Errorf("parse money %q: more than 6 decimal places", in)
	}

	var w, f int64
	var err error
	if whole != "" {
		w, err = strconv.ParseInt(whole, 10, 64)
		if err != nil || w > math.MaxInt64/MicrosPerUnit-1 {
			return 0, fmt.Errorf("parse money %q: %w", in, ErrAmountTooLarge)
		}
	}
	if frac != "" {
		f, _ = strconv.ParseInt(frac+strings.Repeat("0", 6-len(frac)), 10, 64)
	}

	m := Money(w*MicrosPerUnit + f)
	if neg {
		m = -m
	}
	return m, nil
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MustParseMoney is ParseMoney that panics on error. For literals only.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String formats with at least two and at most six decimals, e.g. "24.00",
// "0.005".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	frac := fmt.Sprintf("%06d", v%MicrosPerUnit)
	frac = strings.TrimRight(frac, "0")
	for len(frac) < 2 {
		frac += "0"
	}
	return fmt.Sprintf("%s%d.%s", sign, v/MicrosPerUnit, frac)
}

// Float returns the amount in currency units, for display and percentages.
func (m Money) Float() float64 {
	return float64(m) / MicrosPerUnit
}

// Cents rounds the amount half-up to whole cents.
func (m Money) Cents() int64 {
	const perCent = MicrosPerUnit / 100
	v := int64(m)
	if v < 0 {
		return -((-v + perCent/2) / perCent)
	}
	return (v + perCent/2) / perCent
}
