// Package admission decides whether an operation may proceed.
//
// The decision is split in two pure steps so callers only touch the ledger
// when they must: Precheck runs every stateless rule (format, bypasses,
// capability, size ceilings) and CheckQuota runs the monthly allowance rule
// against a ledger entry the caller has already rolled over.
package admission

import (
	"errors"

	"github.com/applelectricals/microjpeg/domain/category"
	"github.com/applelectricals/microjpeg/domain/ledger"
	"github.com/applelectricals/microjpeg/domain/quota"
	"github.com/applelectricals/microjpeg/domain/tier"
)

// ErrStorageUnavailable wraps ledger failures surfaced by admission.
var ErrStorageUnavailable = errors.New("usage ledger unavailable")

// Operation is the kind of image work requested.
type Operation string

const (
	OpCompress Operation = "compress"
	OpConvert  Operation = "convert"
	OpEnhance  Operation = "enhance"
)

// Normalize returns OpCompress for an empty operation.
func (o Operation) Normalize() Operation {
	if o == "" {
		return OpCompress
	}
	return o
}

// Capability returns the tier capability the operation requires.
func (o Operation) Capability() tier.Capability {
	switch o.Normalize() {
	case OpConvert:
		return tier.CapConvert
	case OpEnhance:
		return tier.CapEnhance
	default:
		return tier.CapCompress
	}
}

// Valid reports whether o is a known operation (empty counts as compress).
func (o Operation) Valid() bool {
	switch o.Normalize() {
	case OpCompress, OpConvert, OpEnhance:
		return true
	}
	return false
}

// Reason explains a decision.
type Reason string

const (
	ReasonAllowed             Reason = "allowed"
	ReasonSuperBypass         Reason = "admin_super_bypass"
	ReasonEnforcementDisabled Reason = "enforcement_disabled"
	ReasonUnsupportedFormat   Reason = "unsupported_format"
	ReasonCapabilityDisabled  Reason = "capability_not_enabled"
	ReasonFileTooLarge        Reason = "file_size_limit_exceeded"
	ReasonQuotaExhausted      Reason = Reason(quota.ReasonExhausted)
	ReasonServiceUnavailable  Reason = "service_unavailable"
)

// Message returns a user-facing explanation.
func (r Reason) Message() string {
	switch r {
	case ReasonAllowed:
		return "Operation allowed."
	case ReasonSuperBypass:
		return "Operation allowed by administrator override."
	case ReasonEnforcementDisabled:
		return "Operation allowed; usage limits are temporarily disabled."
	case ReasonUnsupportedFormat:
		return "This file format is not supported."
	case ReasonCapabilityDisabled:
		return "This operation is not included in your plan."
	case ReasonFileTooLarge:
		return "This file exceeds the maximum size for your plan."
	case ReasonQuotaExhausted:
		return "You have used all free operations for this month."
	case ReasonServiceUnavailable:
		return "Usage service is temporarily unavailable, please retry."
	default:
		return string(r)
	}
}

// Override is an administrative override attached to a request.
type Override struct {
	SuperBypass   bool
	Reason        string
	Administrator string
}

// Snapshot is the global settings view a decision is made against.
// It is passed explicitly so decisions never read process-wide state.
type Snapshot struct {
	EnforcementEnabled bool
	// SizeCeilingsWhenDisabled keeps per-file size ceilings while
	// enforcement is disabled.
	SizeCeilingsWhenDisabled bool
}

// Request describes one inbound operation.
type Request struct {
	Identity      ledger.Identity
	SessionID     string
	Tier          tier.Tier
	Operation     Operation
	Filename      string
	FileSizeBytes int64
	Override      *Override
}

// Key returns the ledger key for the request.
func (r Request) Key() ledger.Key {
	return ledger.Key{Identity: r.Identity, SessionID: r.SessionID}
}

// Size returns the file size with negative values clamped to 0.
func (r Request) Size() int64 {
	if r.FileSizeBytes < 0 {
		return 0
	}
	return r.FileSizeBytes
}

// Decision is the verdict for one request (value type, never persisted).
type Decision struct {
	Allowed          bool
	Reason           Reason
	WasBypassed      bool
	UpgradeSuggested tier.ID // empty when no upgrade applies
	TierID           tier.ID
	Category         category.Category
	CeilingBytes     int64           // set on size denials
	Usage            *quota.Snapshot // set on metered decisions
	Retryable        bool            // set on service_unavailable
}

// Upgrader finds upgrade targets. *tier.Catalog implements it.
type Upgrader interface {
	Next(id tier.ID) (tier.Tier, bool)
	CheapestWith(id tier.ID, c tier.Capability) (tier.Tier, bool)
	CheapestFitting(id tier.ID, c category.Category, size int64) (tier.Tier, bool)
}

// Precheck evaluates every rule that needs no ledger state, in order:
// unsupported format, super bypass, enforcement disabled, capability, size
// ceiling, and for unmetered tiers the final allow. done is false only when
// the request is metered and within its size ceiling; the caller must then
// read the ledger and call CheckQuota.
// Unknown formats are rejected ahead of any bypass, so an override never
// admits a file the service cannot process.
// This is a PURE function.
func Precheck(req Request, s Snapshot, up Upgrader) (d Decision, done bool) {
	cat := category.Classify(req.Filename)
	base := Decision{TierID: req.Tier.ID, Category: cat}

	if !cat.IsKnown() {
		return deny(base, ReasonUnsupportedFormat), true
	}

	if req.Override != nil && req.Override.SuperBypass {
		return bypass(base, ReasonSuperBypass), true
	}

	if !s.EnforcementEnabled {
		if s.SizeCeilingsWhenDisabled && req.Size() > req.Tier.CeilingFor(cat) {
			return tooLarge(base, req, cat, up), true
		}
		return bypass(base, ReasonEnforcementDisabled), true
	}

	if cp := req.Operation.Capability(); !req.Tier.Has(cp) {
		d := deny(base, ReasonCapabilityDisabled)
		if up != nil {
			if t, ok := up.CheapestWith(req.Tier.ID, cp); ok {
				d.UpgradeSuggested = t.ID
			}
		}
		return d, true
	}

	if req.Size() > req.Tier.CeilingFor(cat) {
		return tooLarge(base, req, cat, up), true
	}

	if !req.Tier.IsMetered() {
		base.Allowed = true
		base.Reason = ReasonAllowed
		return base, true
	}

	return base, false
}

// CheckQuota applies the monthly allowance rule to an already rolled-over
// ledger entry.
// This is a PURE function.
func CheckQuota(req Request, e ledger.Entry, up Upgrader) Decision {
	cat := category.Classify(req.Filename)
	snap := quota.SnapshotOf(e, req.Tier, cat)
	d := Decision{
		TierID:   req.Tier.ID,
		Category: cat,
		Usage:    &snap,
	}

	if r := quota.Check(e.Count(cat), req.Tier.AllowanceFor(cat)); !r.Allowed {
		d = deny(d, ReasonQuotaExhausted)
		if up != nil {
			if t, ok := up.Next(req.Tier.ID); ok {
				d.UpgradeSuggested = t.ID
			}
		}
		return d
	}

	d.Allowed = true
	d.Reason = ReasonAllowed
	return d
}

// Decide runs Precheck and, when needed, CheckQuota against entry. The entry
// must already be rolled over for the current time.
// This is a PURE function.
func Decide(req Request, s Snapshot, e ledger.Entry, up Upgrader) Decision {
	if d, done := Precheck(req, s, up); done {
		return d
	}
	return CheckQuota(req, e, up)
}

// Unavailable returns the denial used when the ledger cannot be read.
func Unavailable(req Request) Decision {
	return Decision{
		Allowed:   false,
		Reason:    ReasonServiceUnavailable,
		TierID:    req.Tier.ID,
		Category:  category.Classify(req.Filename),
		Retryable: true,
	}
}

// BypassReason returns the audit bypass reason for a request, or "" when
// no bypass applies.
func BypassReason(req Request, s Snapshot) string {
	if req.Override != nil && req.Override.SuperBypass {
		if req.Override.Reason != "" {
			return req.Override.Reason
		}
		return string(ReasonSuperBypass)
	}
	if !s.EnforcementEnabled {
		return string(ReasonEnforcementDisabled)
	}
	return ""
}

func deny(d Decision, r Reason) Decision {
	d.Allowed = false
	d.Reason = r
	return d
}

func bypass(d Decision, r Reason) Decision {
	d.Allowed = true
	d.WasBypassed = true
	d.Reason = r
	return d
}

func tooLarge(d Decision, req Request, cat category.Category, up Upgrader) Decision {
	d = deny(d, ReasonFileTooLarge)
	d.CeilingBytes = req.Tier.CeilingFor(cat)
	if up == nil {
		return d
	}
	if t, ok := up.CheapestFitting(req.Tier.ID, cat, req.Size()); ok {
		d.UpgradeSuggested = t.ID
	} else if !req.Tier.IsMetered() {
		return d
	} else if t, ok := up.Next(req.Tier.ID); ok {
		d.UpgradeSuggested = t.ID
	}
	return d
}
