// Package pricing provides pay-as-you-go band pricing and prepaid bundle
// arithmetic. All functions are pure.
package pricing

import (
	"errors"
	"fmt"
	"math"
)

// Unbounded marks a band without an upper bound.
const Unbounded int64 = -1

// Pricing errors.
var (
	ErrNegativeCount = errors.New("operation count must not be negative")
	ErrInvalidBands  = errors.New("invalid pricing bands")
	ErrUnknownBundle = errors.New("unknown prepaid bundle")
	// ErrCountTooLarge is returned when a cost would not fit in Money.
	ErrCountTooLarge = errors.New("operation count too large to price")
	// ErrAmountTooLarge is returned by ParseMoney for amounts that do not
	// fit in Money.
	ErrAmountTooLarge = errors.New("amount too large")
)

// Band prices a contiguous range of operation ordinals (value type).
// Operations are numbered from 1; a lower bound of 0 covers ordinal 1.
type Band struct {
	Lower     int64 // inclusive
	Upper     int64 // inclusive, or Unbounded
	UnitPrice Money
}

// IsUnbounded reports whether the band has no upper bound.
func (b Band) IsUnbounded() bool {
	return b.Upper == Unbounded
}

// Capacity returns how many operations the band covers, or Unbounded.
func (b Band) Capacity() int64 {
	if b.IsUnbounded() {
		return Unbounded
	}
	first := b.Lower
	if first < 1 {
		first = 1
	}
	return b.Upper - first + 1
}

// Label returns "lower-upper" or "lower+".
func (b Band) Label() string {
	if b.IsUnbounded() {
		return fmt.Sprintf("%d+", b.Lower)
	}
	return fmt.Sprintf("%d-%d", b.Lower, b.Upper)
}

// Bands is an ordered list of pricing bands.
type Bands []Band

// Validate checks that bands are sorted, contiguous, non-overlapping, start
// at ordinal 0 or 1, and that only the last band is unbounded.
func (bs Bands) Validate() error {
	if len(bs) == 0 {
		return fmt.Errorf("%w: no bands", ErrInvalidBands)
	}
	if bs[0].Lower < 0 || bs[0].Lower > 1 {
		return fmt.Errorf("%w: first band must start at 0 or 1, got %d", ErrInvalidBands, bs[0].Lower)
	}
	for i, b := range bs {
		if b.UnitPrice < 0 {
			return fmt.Errorf("%w: band %d has negative unit price", ErrInvalidBands, i)
		}
		last := i == len(bs)-1
		if b.IsUnbounded() != last {
			if last {
				return fmt.Errorf("%w: last band must be unbounded", ErrInvalidBands)
			}
			return fmt.Errorf("%w: band %d is unbounded but not last", ErrInvalidBands, i)
		}
		if !last && b.Capacity() <= 0 {
			return fmt.Errorf("%w: band %d (%s) is empty", ErrInvalidBands, i, b.Label())
		}
		if i > 0 && b.Lower != bs[i-1].Upper+1 {
			return fmt.Errorf("%w: band %d starts at %d, expected %d", ErrInvalidBands, i, b.Lower, bs[i-1].Upper+1)
		}
	}
	return nil
}

// BandCharge is the share of a cost attributed to one band.
type BandCharge struct {
	Band       Band
	Operations int64
	Subtotal   Money
}

// Cost is the result of pricing an operation count.
type Cost struct {
	Operations int64
	Total      Money
	Breakdown  []BandCharge // only bands actually touched
}

// ComputeCost walks bands in order, consuming min(remaining, capacity)
// operations from each at its unit price.
// This is a PURE function.
func ComputeCost(bands Bands, operations int64) (Cost, error) {
	if operations < 0 {
		return Cost{}, ErrNegativeCount
	}

	cost := Cost{Operations: operations}
	remaining := operations
	for _, b := range bands {
		if remaining == 0 {
			break
		}
		take := remaining
		if c := b.Capacity(); c != Unbounded && c < take {
			take = c
		}
		if take <= 0 {
			continue
		}
		if b.UnitPrice > 0 && take > math.MaxInt64/int64(b.UnitPrice) {
			return Cost{}, fmt.Errorf("%w: %d", ErrCountTooLarge, operations)
		}
		sub := Money(take) * b.UnitPrice
		if cost.Total > math.MaxInt64-sub {
			return Cost{}, fmt.Errorf("%w: %d", ErrCountTooLarge, operations)
		}
		cost.Breakdown = append(cost.Breakdown, BandCharge{Band: b, Operations: take, Subtotal: sub})
		cost.Total += sub
		remaining -= take
	}
	return cost, nil
}

// Bundle is a fixed-price prepaid block of operations.
type Bundle struct {
	ID         string
	Name       string
	Operations int64
	Price      Money
}

// Savings compares a bundle with its pay-as-you-go equivalent.
type Savings struct {
	Bundle               Bundle
	PayAsYouGoEquivalent Money
	Savings              Money   // negative when the bundle costs more
	SavingsPercent       float64 // 0 when the pay-as-you-go cost is 0
	PayAsYouGoBreakdown  []BandCharge
}

// PrepaidSavings prices the bundle's operations through the bands and
// compares against the bundle's flat price.
// This is a PURE function.
func PrepaidSavings(bands Bands, b Bundle) (Savings, error) {
	cost, err := ComputeCost(bands, b.Operations)
	if err != nil {
		return Savings{}, fmt.Errorf("bundle %s: %w", b.ID, err)
	}

	s := Savings{
		Bundle:               b,
		PayAsYouGoEquivalent: cost.Total,
		Savings:              cost.Total - b.Price,
		PayAsYouGoBreakdown:  cost.Breakdown,
	}
	if cost.Total > 0 {
		s.SavingsPercent = float64(s.Savings) / float64(cost.Total) * 100
	}
	return s, nil
}

// Schedule is a validated set of bands and bundles.
type Schedule struct {
	Currency string
	Bands    Bands
	Bundles  []Bundle
}

// NewSchedule validates bands and bundles.
func NewSchedule(currency string, bands Bands, bundles []Bundle) (Schedule, error) {
	if err := bands.Validate(); err != nil {
		return Schedule{}, err
	}
	seen := make(map[string]bool, len(bundles))
	for _, b := range bundles {
		if b.ID == "" {
			return Schedule{}, fmt.Errorf("bundle id is required")
		}
		if seen[b.ID] {
			return Schedule{}, fmt.Errorf("duplicate bundle id %q", b.ID)
		}
		if b.Operations < 0 || b.Price < 0 {
			return Schedule{}, fmt.Errorf("bundle %q: operations and price must not be negative", b.ID)
		}
		if _, err := ComputeCost(bands, b.Operations); err != nil {
			return Schedule{}, fmt.Errorf("bundle %q: %w", b.ID, err)
		}
		seen[b.ID] = true
	}
	if currency == "" {
		currency = "USD"
	}
	return Schedule{Currency: currency, Bands: bands, Bundles: bundles}, nil
}

// FindBundle returns the bundle with the given id.
func (s Schedule) FindBundle(id string) (Bundle, error) {
	for _, b := range s.Bundles {
		if b.ID == id {
			return b, nil
		}
	}
	return Bundle{}, fmt.Errorf("%w: %s", ErrUnknownBundle, id)
}

// DefaultSchedule returns the built-in pay-as-you-go bands and bundles.
func DefaultSchedule() Schedule {
	s, err := NewSchedule("USD", Bands{
		{Lower: 0, Upper: 500, UnitPrice: 0},
		{Lower: 501, Upper: 5000, UnitPrice: MustParseMoney("0.005")},
		{Lower: 5001, Upper: Unbounded, UnitPrice: MustParseMoney("0.003")},
	}, []Bundle{
		{ID: "bundle-10k", Name: "10,000 operations", Operations: 10_000, Price: MustParseMoney("29")},
		{ID: "bundle-50k", Name: "50,000 operations", Operations: 50_000, Price: MustParseMoney("119")},
		{ID: "bundle-100k", Name: "100,000 operations", Operations: 100_000, Price: MustParseMoney("229")},
	})
	if err != nil {
		panic(err)
	}
	return s
}
