// Package audit provides the append-only audit record value type.
package audit

import (
	"time"

	"github.com/applelectricals/microjpeg/domain/category"
	"github.com/applelectricals/microjpeg/domain/ledger"
	"github.com/applelectricals/microjpeg/domain/tier"
)

// Outcome distinguishes processed operations from admission decisions.
// OutcomeBypassed marks an admission granted by an override or by disabled
// enforcement, written when the decision is made.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDenied    Outcome = "denied"
	OutcomeBypassed  Outcome = "bypassed"
)

// Valid reports whether o is a known outcome. The empty outcome is not.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeProcessed, OutcomeDenied, OutcomeBypassed:
		return true
	}
	return false
}

// Record is an immutable audit entry.
type Record struct {
	ID                  string
	Identity            ledger.Identity
	SessionID           string
	TierID              tier.ID
	Operation           string
	OperationCategory   category.Category
	FileFormat          string
	FileSizeBytes       int64
	FileSizeMB          float64
	PageContext         string
	Outcome             Outcome
	Reason              string
	WasBypassed         bool
	BypassReason        string
	ActingAdministrator string
	Timestamp           time.Time
}

// Input carries everything needed to build a Record.
type Input struct {
	Identity            ledger.Identity
	SessionID           string
	TierID              tier.ID
	Operation           string
	Filename            string
	FileSizeBytes       int64
	PageContext         string
	Outcome             Outcome
	Reason              string
	WasBypassed         bool
	BypassReason        string
	ActingAdministrator string
}

// NewRecord builds a record. Zero or negative sizes are normalized to 0.
// This is a PURE function.
func NewRecord(id string, in Input, now time.Time) Record {
	size := NormalizeSize(in.FileSizeBytes)
	return Record{
		ID:                  id,
		Identity:            in.Identity,
		SessionID:           in.SessionID,
		TierID:              in.TierID,
		Operation:           in.Operation,
		OperationCategory:   category.Classify(in.Filename),
		FileFormat:          category.Format(in.Filename),
		FileSizeBytes:       size,
		FileSizeMB:          BytesToMB(size),
		PageContext:         in.PageContext,
		Outcome:             in.Outcome,
		Reason:              in.Reason,
		WasBypassed:         in.WasBypassed,
		BypassReason:        in.BypassReason,
		ActingAdministrator: in.ActingAdministrator,
		Timestamp:           now,
	}
}

// NormalizeSize clamps non-positive sizes to 0.
func NormalizeSize(bytes int64) int64 {
	if bytes < 0 {
		return 0
	}
	return bytes
}

// BytesToMB converts bytes to megabytes rounded to two decimals.
func BytesToMB(bytes int64) float64 {
	if bytes <= 0 {
		return 0
	}
	mb := float64(bytes) / float64(tier.MB)
	return float64(int64(mb*100+0.5)) / 100
}

// Filter selects records when listing.
type Filter struct {
	Identity     *ledger.Identity
	SessionID    string
	BypassedOnly bool
	Outcome      Outcome
	Since        time.Time
	Limit        int
}

// DefaultListLimit caps list results when Filter.Limit is unset.
const DefaultListLimit = 100

// Matches reports whether r passes the filter (ignoring Limit).
func (f Filter) Matches(r Record) bool {
	if f.Identity != nil && r.Identity != *f.Identity {
		return false
	}
	if f.SessionID != "" && r.SessionID != f.SessionID {
		return false
	}
	if f.BypassedOnly && !r.WasBypassed {
		return false
	}
	if f.Outcome != "" && r.Outcome != f.Outcome {
		return false
	}
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// EffectiveLimit returns the limit to apply.
func (f Filter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}
