package sqlite

import (
	"context"
	"strings"

	"github.com/applelectricals/microjpeg/domain/audit"
	"github.com/applelectricals/microjpeg/domain/category"
	"github.com/applelectricals/microjpeg/domain/ledger"
	"github.com/applelectricals/microjpeg/domain/tier"
	"github.com/applelectricals/microjpeg/ports"
)

// AuditStore implements ports.AuditSink using SQLite. Rows are only ever
// inserted.
type AuditStore struct {
	db *DB
}

// NewAuditStore creates a new SQLite audit store.
func NewAuditStore(db *DB) *AuditStore {
	return &AuditStore{db: db}
}

// Append stores a record.
func (s *AuditStore) Append(ctx context.Context, r audit.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (
			id, identity_kind, identity_id, session_id, tier_id, operation,
			operation_category, file_format, file_size_bytes, file_size_mb,
			page_context, outcome, reason, was_bypassed, bypass_reason,
			acting_administrator, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, string(r.Identity.Kind), r.Identity.ID, r.SessionID, string(r.TierID), r.Operation,
		string(r.OperationCategory), r.FileFormat, r.FileSizeBytes, r.FileSizeMB,
		r.PageContext, string(r.Outcome), r.Reason, r.WasBypassed, r.BypassReason,
		r.ActingAdministrator, toNanos(r.Timestamp),
	)
	return err
}

// List returns matching records, newest first.
func (s *AuditStore) List(ctx context.Context, f audit.Filter) ([]audit.Record, error) {
	var (
		where []string
		args  []any
	)
	if f.Identity != nil {
		where = append(where, "identity_kind = ? AND identity_id = ?")
		args = append(args, string(f.Identity.Kind), f.Identity.ID)
	}
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.BypassedOnly {
		where = append(where, "was_bypassed = 1")
	}
	if f.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, string(f.Outcome))
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, toNanos(f.Since))
	}

	query := `
		SELECT id, identity_kind, identity_id, session_id, tier_id, operation,
			operation_category, file_format, file_size_bytes, file_size_mb,
			page_context, outcome, reason, was_bypassed, bypass_reason,
			acting_administrator, created_at
		FROM audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, f.EffectiveLimit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]audit.Record, 0)
	for rows.Next() {
		var (
			r                          audit.Record
			kind, tierID, cat, outcome string
			created                    int64
		)
		if err := rows.Scan(
			&r.ID, &kind, &r.Identity.ID, &r.SessionID, &tierID, &r.Operation,
			&cat, &r.FileFormat, &r.FileSizeBytes, &r.FileSizeMB,
			&r.PageContext, &outcome, &r.Reason, &r.WasBypassed, &r.BypassReason,
			&r.ActingAdministrator, &created,
		); err != nil {
			return nil, err
		}
		r.Identity.Kind = ledger.IdentityKind(kind)
		r.TierID = tier.ID(tierID)
		r.OperationCategory = category.Category(cat)
		r.Outcome = audit.Outcome(outcome)
		r.Timestamp = fromNanos(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ensure interface compliance.
var _ ports.AuditSink = (*AuditStore)(nil)
