package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/applelectricals/microjpeg/domain/category"
	"github.com/applelectricals/microjpeg/domain/ledger"
	"github.com/applelectricals/microjpeg/ports"
)

// LedgerStore implements ports.LedgerStore using SQLite.
// Increments are single UPSERT statements so concurrent callers never lose
// an update.
type LedgerStore struct {
	db *DB
}

// NewLedgerStore creates a new SQLite ledger store.
func NewLedgerStore(db *DB) *LedgerStore {
	return &LedgerStore{db: db}
}

const ledgerColumns = `identity_kind, identity_id, session_id,
	regular_monthly_count, raw_monthly_count, monthly_bandwidth_bytes,
	window_started_at, updated_at`

// Get returns the entry for key.
func (s *LedgerStore) Get(ctx context.Context, key ledger.Key) (ledger.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM usage_ledger
		WHERE identity_kind = ? AND identity_id = ? AND session_id = ?
	`, string(key.Identity.Kind), key.Identity.ID, key.SessionID)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	return e, err
}

// GetOrCreate returns the entry for key, inserting a zeroed one if absent.
func (s *LedgerStore) GetOrCreate(ctx context.Context, key ledger.Key, now time.Time) (ledger.Entry, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_ledger (identity_kind, identity_id, session_id, window_started_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(identity_kind, identity_id, session_id) DO NOTHING
	`, string(key.Identity.Kind), key.Identity.ID, key.SessionID, toNanos(now), toNanos(now))
	if err != nil {
		return ledger.Entry{}, err
	}
	return s.Get(ctx, key)
}

// Increment atomically adds to the counters and returns the new entry.
func (s *LedgerStore) Increment(ctx context.Context, key ledger.Key, cat category.Category, amount, bytes int64, now time.Time) (ledger.Entry, error) {
	if amount < 0 {
		amount = 0
	}
	if bytes < 0 {
		bytes = 0
	}
	var regular, raw int64
	switch cat {
	case category.Regular:
		regular = amount
	case category.Raw:
		raw = amount
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO usage_ledger (`+ledgerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity_kind, identity_id, session_id) DO UPDATE SET
			regular_monthly_count = regular_monthly_count + excluded.regular_monthly_count,
			raw_monthly_count = raw_monthly_count + excluded.raw_monthly_count,
			monthly_bandwidth_bytes = monthly_bandwidth_bytes + excluded.monthly_bandwidth_bytes,
			updated_at = excluded.updated_at
		RETURNING `+ledgerColumns,
		string(key.Identity.Kind), key.Identity.ID, key.SessionID,
		regular, raw, bytes, toNanos(now), toNanos(now))

	return scanEntry(row)
}

// ResetWindow zeroes the entry if its window start still equals expectedStart.
func (s *LedgerStore) ResetWindow(ctx context.Context, key ledger.Key, expectedStart, newStart time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE usage_ledger SET
			regular_monthly_count = 0,
			raw_monthly_count = 0,
			monthly_bandwidth_bytes = 0,
			window_started_at = ?,
			updated_at = ?
		WHERE identity_kind = ? AND identity_id = ? AND session_id = ?
			AND window_started_at = ?
	`, toNanos(newStart), toNanos(newStart),
		string(key.Identity.Kind), key.Identity.ID, key.SessionID, toNanos(expectedStart))
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	if _, err := s.Get(ctx, key); err != nil {
		return false, err
	}
	return false, nil
}

// CleanupStale removes entries whose window started before cutoff.
func (s *LedgerStore) CleanupStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM usage_ledger WHERE window_started_at < ?`, toNanos(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanEntry(row *sql.Row) (ledger.Entry, error) {
	var (
		e            ledger.Entry
		kind         string
		started, upd int64
	)
	err := row.Scan(
		&kind,
		&e.Key.Identity.ID,
		&e.Key.SessionID,
		&e.RegularMonthlyCount,
		&e.RawMonthlyCount,
		&e.MonthlyBandwidthBytes,
		&started,
		&upd,
	)
	if err != nil {
		return ledger.Entry{}, err
	}
	e.Key.Identity.Kind = ledger.IdentityKind(kind)
	e.MonthlyWindowStartedAt = fromNanos(started)
	e.UpdatedAt = fromNanos(upd)
	return e, nil
}

// Ensure interface compliance.
var _ ports.LedgerStore = (*LedgerStore)(nil)
