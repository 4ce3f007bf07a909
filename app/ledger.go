package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/applelectricals/microjpeg/domain/category"
	"github.com/applelectricals/microjpeg/domain/ledger"
	"github.com/applelectricals/microjpeg/domain/quota"
	"github.com/applelectricals/microjpeg/domain/tier"
	"github.com/applelectricals/microjpeg/ports"
)

// Ledger wraps a LedgerStore with the rolling-window rules. Callers never
// observe an expired window through it.
type Ledger struct {
	store   ports.LedgerStore
	metrics ports.Metrics
	logger  zerolog.Logger
}

// NewLedger creates a ledger service.
func NewLedger(store ports.LedgerStore, metrics ports.Metrics, logger zerolog.Logger) *Ledger {
	return &Ledger{store: store, metrics: metrics, logger: logger}
}

// GetOrCreate returns the entry for key, creating a zeroed one at now.
func (l *Ledger) GetOrCreate(ctx context.Context, key ledger.Key, now time.Time) (ledger.Entry, error) {
	e, err := l.store.GetOrCreate(ctx, key, now)
	if err != nil {
		l.metrics.LedgerError("get_or_create")
		return ledger.Entry{}, fmt.Errorf("get ledger entry %s: %w", key, err)
	}
	return e, nil
}

// RolloverIfExpired resets the entry when its window has elapsed. The reset
// is a compare-and-set on the window start: when a concurrent caller wins,
// the entry is re-read instead of being reset twice.
func (l *Ledger) RolloverIfExpired(ctx context.Context, e ledger.Entry, now time.Time) (ledger.Entry, error) {
	if !ledger.Expired(e, now) {
		return e, nil
	}

	ok, err := l.store.ResetWindow(ctx, e.Key, e.MonthlyWindowStartedAt, now)
	if err != nil {
		l.metrics.LedgerError("rollover")
		return ledger.Entry{}, fmt.Errorf("roll over ledger entry %s: %w", e.Key, err)
	}
	if ok {
		l.metrics.WindowRolledOver()
		l.logger.Debug().
			Str("key", e.Key.String()).
			Time("previous_start", e.MonthlyWindowStartedAt).
			Msg("usage window rolled over")
		return ledger.New(e.Key, now), nil
	}

	cur, err := l.store.Get(ctx, e.Key)
	if err != nil {
		l.metrics.LedgerError("get")
		return ledger.Entry{}, fmt.Errorf("re-read ledger entry %s: %w", e.Key, err)
	}
	return cur, nil
}

// Current returns the entry for key with any expired window rolled over.
func (l *Ledger) Current(ctx context.Context, key ledger.Key, now time.Time) (ledger.Entry, error) {
	e, err := l.GetOrCreate(ctx, key, now)
	if err != nil {
		return ledger.Entry{}, err
	}
	return l.RolloverIfExpired(ctx, e, now)
}

// Increment rolls the window over if needed and then atomically adds
// amount to the category counter and bytes to bandwidth.
func (l *Ledger) Increment(ctx context.Context, key ledger.Key, cat category.Category, amount, bytes int64, now time.Time) (ledger.Entry, error) {
	if _, err := l.Current(ctx, key, now); err != nil {
		return ledger.Entry{}, err
	}
	e, err := l.store.Increment(ctx, key, cat, amount, bytes, now)
	if err != nil {
		l.metrics.LedgerError("increment")
		return ledger.Entry{}, fmt.Errorf("increment ledger entry %s: %w", key, err)
	}
	return e, nil
}

// Usage is the per-category usage view for one identity.
type Usage struct {
	Key     ledger.Key
	TierID  tier.ID
	Metered bool
	Regular quota.Snapshot
	Raw     quota.Snapshot
}

// View returns the usage for key without writing. A missing entry reads as
// an empty window starting now; an expired one reads as already rolled over.
func (l *Ledger) View(ctx context.Context, key ledger.Key, t tier.Tier, now time.Time) (Usage, error) {
	e, err := l.store.Get(ctx, key)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		e = ledger.New(key, now)
	case err != nil:
		l.metrics.LedgerError("get")
		return Usage{}, fmt.Errorf("read ledger entry %s: %w", key, err)
	}
	e, _ = ledger.Rollover(e, now)

	return Usage{
		Key:     key,
		TierID:  t.ID,
		Metered: t.IsMetered(),
		Regular: quota.SnapshotOf(e, t, category.Regular),
		Raw:     quota.SnapshotOf(e, t, category.Raw),
	}, nil
}
