// Package quota provides pure functions for monthly allowance enforcement.
// All functions are deterministic with no side effects.
package quota

import (
	"time"

	"github.com/applelectricals/microjpeg/domain/category"
	"github.com/applelectricals/microjpeg/domain/ledger"
	"github.com/applelectricals/microjpeg/domain/tier"
)

// WarningLevel indicates how close to the allowance the caller is.
type WarningLevel int

const (
	WarningNone        WarningLevel = iota // < 80%
	WarningApproaching                     // >= 80%
	WarningCritical                        // >= 95%
	WarningExhausted                       // >= 100%
)

// ReasonExhausted is set on a CheckResult that does not allow another operation.
const ReasonExhausted = "monthly_quota_exhausted"

// CheckResult represents the outcome of an allowance check (value type).
type CheckResult struct {
	Allowed      bool
	Used         int64
	Limit        int64
	Remaining    int64
	PercentUsed  float64
	WarningLevel WarningLevel
	Reason       string
}

// Check reports whether one more operation fits in the allowance.
// Usage at or above limit is denied.
// This is a PURE function - no side effects.
func Check(used, limit int64) CheckResult {
	if used < 0 {
		used = 0
	}
	if limit < 0 {
		limit = 0
	}

	result := CheckResult{
		Used:    used,
		Limit:   limit,
		Allowed: used < limit,
	}
	if remaining := limit - used; remaining > 0 {
		result.Remaining = remaining
	}
	if limit > 0 {
		result.PercentUsed = float64(used) / float64(limit) * 100
	}

	switch {
	case used >= limit:
		result.WarningLevel = WarningExhausted
	case used*100 >= limit*95:
		result.WarningLevel = WarningCritical
	case used*100 >= limit*80:
		result.WarningLevel = WarningApproaching
	default:
		result.WarningLevel = WarningNone
	}

	if !result.Allowed {
		result.Reason = ReasonExhausted
	}
	return result
}

// Snapshot is the usage view attached to allowed decisions for display.
type Snapshot struct {
	Category        category.Category
	Used            int64
	Limit           int64
	Remaining       int64
	PercentUsed     float64
	WarningLevel    WarningLevel
	BandwidthBytes  int64
	WindowStartedAt time.Time
	ResetsAt        time.Time
}

// SnapshotOf builds the display snapshot for an entry and tier.
// This is a PURE function.
func SnapshotOf(e ledger.Entry, t tier.Tier, c category.Category) Snapshot {
	r := Check(e.Count(c), t.AllowanceFor(c))
	return Snapshot{
		Category:        c,
		Used:            r.Used,
		Limit:           r.Limit,
		Remaining:       r.Remaining,
		PercentUsed:     r.PercentUsed,
		WarningLevel:    r.WarningLevel,
		BandwidthBytes:  e.MonthlyBandwidthBytes,
		WindowStartedAt: e.MonthlyWindowStartedAt,
		ResetsAt:        e.WindowEndsAt(),
	}
}

// String returns the string representation of a warning level.
func (w WarningLevel) String() string {
	switch w {
	case WarningNone:
		return "none"
	case WarningApproaching:
		return "approaching"
	case WarningCritical:
		return "critical"
	case WarningExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}
