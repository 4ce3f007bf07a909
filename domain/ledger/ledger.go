// Package ledger provides usage ledger value types and pure window functions.
package ledger

import (
	"errors"
	"net/url"
	"time"

	"github.com/applelectricals/microjpeg/domain/category"
)

// WindowLength is the fixed length of the rolling monthly window.
const WindowLength = 30 * 24 * time.Hour

// ErrNotFound is returned by stores when no entry exists for a key.
var ErrNotFound = errors.New("ledger entry not found")

// IdentityKind distinguishes authenticated users from anonymous sessions.
type IdentityKind string

const (
	KindUser      IdentityKind = "user"
	KindAnonymous IdentityKind = "anonymous"
)

// Identity is the caller an operation is attributed to.
type Identity struct {
	Kind IdentityKind
	ID   string
}

// IsAnonymous reports whether the identity is an anonymous session.
func (i Identity) IsAnonymous() bool {
	return i.Kind != KindUser
}

// String returns "kind:id".
func (i Identity) String() string {
	return string(i.Kind) + ":" + i.ID
}

// User returns an authenticated user identity.
func User(id string) Identity {
	return Identity{Kind: KindUser, ID: id}
}

// AnonymousSession returns an anonymous identity keyed by a session token.
func AnonymousSession(token string) Identity {
	return Identity{Kind: KindAnonymous, ID: token}
}

// Key addresses exactly one ledger entry.
type Key struct {
	Identity  Identity
	SessionID string
}

// String returns a stable storage key of the form "kind:id|session".
// Each component is query-escaped so distinct keys never share a string.
func (k Key) String() string {
	return url.QueryEscape(string(k.Identity.Kind)) + ":" +
		url.QueryEscape(k.Identity.ID) + "|" + url.QueryEscape(k.SessionID)
}

// Entry holds the per-identity counters for the current window (value type).
type Entry struct {
	Key                    Key
	RegularMonthlyCount    int64
	RawMonthlyCount        int64
	MonthlyBandwidthBytes  int64
	MonthlyWindowStartedAt time.Time
	UpdatedAt              time.Time
}

// Count returns the counter for category c.
func (e Entry) Count(c category.Category) int64 {
	switch c {
	case category.Regular:
		return e.RegularMonthlyCount
	case category.Raw:
		return e.RawMonthlyCount
	default:
		return 0
	}
}

// WindowEndsAt returns when the current window expires.
func (e Entry) WindowEndsAt() time.Time {
	return e.MonthlyWindowStartedAt.Add(WindowLength)
}

// New returns a zeroed entry whose window starts at now.
func New(key Key, now time.Time) Entry {
	return Entry{
		Key:                    key,
		MonthlyWindowStartedAt: now,
		UpdatedAt:              now,
	}
}

// Expired reports whether the entry's window has elapsed at now.
// This is a PURE function.
func Expired(e Entry, now time.Time) bool {
	return now.Sub(e.MonthlyWindowStartedAt) > WindowLength
}

// Rollover returns the entry with counters zeroed and the window restarted
// at now when expired, or the entry unchanged otherwise.
// This is a PURE function.
func Rollover(e Entry, now time.Time) (Entry, bool) {
	if !Expired(e, now) {
		return e, false
	}
	return New(e.Key, now), true
}

// Apply returns the entry with amount added to category c and bytes added
// to bandwidth. Unknown categories and negative values are ignored.
// This is a PURE function.
func Apply(e Entry, c category.Category, amount, bytes int64, now time.Time) Entry {
	if amount > 0 {
		switch c {
		case category.Regular:
			e.RegularMonthlyCount += amount
		case category.Raw:
			e.RawMonthlyCount += amount
		}
	}
	if bytes > 0 {
		e.MonthlyBandwidthBytes += bytes
	}
	e.UpdatedAt = now
	return e
}
