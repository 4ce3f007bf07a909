// Package tier provides plan tier value types and the tier catalog.
// Tiers are immutable once built; catalog changes apply prospectively.
package tier

import (
	"github.com/applelectricals/microjpeg/domain/category"
)

// ID identifies a tier.
type ID string

const (
	Anonymous  ID = "anonymous"
	Free       ID = "free"
	Starter    ID = "starter"
	Pro        ID = "pro"
	Business   ID = "business"
	Enterprise ID = "enterprise"
)

// MeteringPolicy determines whether a tier consumes ledger quota.
type MeteringPolicy string

const (
	// Unmetered tiers have no volume limit, only per-file size ceilings.
	Unmetered MeteringPolicy = "unmetered"
	// MonthlyQuota tiers are limited to a monthly allowance per category.
	MonthlyQuota MeteringPolicy = "monthly_quota"
)

// Valid reports whether p is a known policy.
func (p MeteringPolicy) Valid() bool {
	return p == Unmetered || p == MonthlyQuota
}

// Capability is a feature a tier may enable.
type Capability string

const (
	CapCompress   Capability = "compress"
	CapConvert    Capability = "convert"
	CapEnhance    Capability = "enhance"
	CapAPI        Capability = "api_access"
	CapWordPress  Capability = "wordpress_plugin"
	CapBulkUpload Capability = "bulk_upload"
	CapPriority   Capability = "priority_processing"
)

// KnownCapabilities lists every capability a tier may reference.
func KnownCapabilities() []Capability {
	return []Capability{CapCompress, CapConvert, CapEnhance, CapAPI, CapWordPress, CapBulkUpload, CapPriority}
}

// PerCategory holds one value for each known operation category.
type PerCategory struct {
	Regular int64
	Raw     int64
}

// For returns the value for category c (0 for unknown).
func (p PerCategory) For(c category.Category) int64 {
	switch c {
	case category.Regular:
		return p.Regular
	case category.Raw:
		return p.Raw
	default:
		return 0
	}
}

// Tier is a plan's capability and limit definition (immutable value type).
type Tier struct {
	ID          ID
	DisplayName string
	// Rank orders tiers from most restrictive upwards; upgrade hints
	// point at the next rank.
	Rank                  int
	Policy                MeteringPolicy
	MonthlyFreeOperations PerCategory // ignored for Unmetered tiers
	FileSizeCeiling       PerCategory // bytes
	RateCeilingPerHour    int         // 0 = unlimited
	ConcurrencyCeiling    int         // 0 = unlimited
	Capabilities          map[Capability]bool
}

// IsMetered reports whether operations on this tier consume ledger quota.
func (t Tier) IsMetered() bool {
	return t.Policy == MonthlyQuota
}

// Has reports whether the tier enables capability c.
func (t Tier) Has(c Capability) bool {
	return t.Capabilities[c]
}

// CeilingFor returns the per-file size ceiling in bytes for a category.
func (t Tier) CeilingFor(c category.Category) int64 {
	return t.FileSizeCeiling.For(c)
}

// AllowanceFor returns the monthly free operations for a category.
func (t Tier) AllowanceFor(c category.Category) int64 {
	return t.MonthlyFreeOperations.For(c)
}

// CapabilityList returns enabled capabilities in canonical order.
func (t Tier) CapabilityList() []Capability {
	var out []Capability
	for _, c := range KnownCapabilities() {
		if t.Capabilities[c] {
			out = append(out, c)
		}
	}
	return out
}

// CapabilitySet builds a capability set from a list.
func CapabilitySet(caps ...Capability) map[Capability]bool {
	m := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		m[c] = true
	}
	return m
}

// MB is one megabyte in bytes, the unit tier ceilings are configured in.
const MB int64 = 1024 * 1024

// DefaultTiers returns the built-in tier table used when the configuration
// does not define one.
func DefaultTiers() []Tier {
	return []Tier{
		{
			ID:                    Anonymous,
			DisplayName:           "Guest",
			Rank:                  0,
			Policy:                MonthlyQuota,
			MonthlyFreeOperations: PerCategory{Regular: 50, Raw: 5},
			FileSizeCeiling:       PerCategory{Regular: 7 * MB, Raw: 15 * MB},
			RateCeilingPerHour:    30,
			ConcurrencyCeiling:    1,
			Capabilities:          CapabilitySet(CapCompress, CapConvert),
		},
		{
			ID:                    Free,
			DisplayName:           "Free",
			Rank:                  1,
			Policy:                MonthlyQuota,
			MonthlyFreeOperations: PerCategory{Regular: 100, Raw: 10},
			FileSizeCeiling:       PerCategory{Regular: 7 * MB, Raw: 15 * MB},
			RateCeilingPerHour:    60,
			ConcurrencyCeiling:    2,
			Capabilities:          CapabilitySet(CapCompress, CapConvert, CapWordPress),
		},
		{
			ID:                 Starter,
			DisplayName:        "Starter",
			Rank:               2,
			Policy:             Unmetered,
			FileSizeCeiling:    PerCategory{Regular: 75 * MB, Raw: 100 * MB},
			RateCeilingPerHour: 300,
			ConcurrencyCeiling: 5,
			Capabilities:       CapabilitySet(CapCompress, CapConvert, CapAPI, CapWordPress, CapBulkUpload),
		},
		{
			ID:                 Pro,
			DisplayName:        "Pro",
			Rank:               3,
			Policy:             Unmetered,
			FileSizeCeiling:    PerCategory{Regular: 150 * MB, Raw: 150 * MB},
			RateCeilingPerHour: 1000,
			ConcurrencyCeiling: 10,
			Capabilities:       CapabilitySet(CapCompress, CapConvert, CapEnhance, CapAPI, CapWordPress, CapBulkUpload),
		},
		{
			ID:                 Business,
			DisplayName:        "Business",
			Rank:               4,
			Policy:             Unmetered,
			FileSizeCeiling:    PerCategory{Regular: 200 * MB, Raw: 200 * MB},
			RateCeilingPerHour: 3000,
			ConcurrencyCeiling: 25,
			Capabilities:       CapabilitySet(KnownCapabilities()...),
		},
		{
			ID:                 Enterprise,
			DisplayName:        "Enterprise",
			Rank:               5,
			Policy:             Unmetered,
			FileSizeCeiling:    PerCategory{Regular: 500 * MB, Raw: 500 * MB},
			ConcurrencyCeiling: 0,
			Capabilities:       CapabilitySet(KnownCapabilities()...),
		},
	}
}
