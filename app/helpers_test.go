package app_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/applelectricals/microjpeg/domain/audit"
	"github.com/applelectricals/microjpeg/domain/category"
	"github.com/applelectricals/microjpeg/domain/ledger"
	"github.com/applelectricals/microjpeg/domain/ratelimit"
)

var (
	t0           = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	errStoreDown = errors.New("store down")
)

// failingLedger implements ports.LedgerStore and fails every call.
type failingLedger struct{}

func (failingLedger) Get(context.Context, ledger.Key) (ledger.Entry, error) {
	return ledger.Entry{}, errStoreDown
}

func (failingLedger) GetOrCreate(context.Context, ledger.Key, time.Time) (ledger.Entry, error) {
	return ledger.Entry{}, errStoreDown
}

func (failingLedger) Increment(context.Context, ledger.Key, category.Category, int64, int64, time.Time) (ledger.Entry, error) {
	return ledger.Entry{}, errStoreDown
}

func (failingLedger) ResetWindow(context.Context, ledger.Key, time.Time, time.Time) (bool, error) {
	return false, errStoreDown
}

// failingAudit implements ports.AuditSink and rejects every write.
type failingAudit struct {
	mu       sync.Mutex
	attempts int
}

func (f *failingAudit) Append(context.Context, audit.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	return errStoreDown
}

func (f *failingAudit) List(context.Context, audit.Filter) ([]audit.Record, error) {
	return nil, errStoreDown
}

// countingMetrics implements ports.Metrics and counts calls.
type countingMetrics struct {
	mu          sync.Mutex
	decisions   int
	recorded    int
	rollovers   int
	ledgerErrs  int
	auditErrs   int
	rateLimited int
	previews    int
}

func (m *countingMetrics) AdmissionDecided(string, string, bool, bool, time.Duration) {
	m.mu.Lock()
	m.decisions++
	m.mu.Unlock()
}

func (m *countingMetrics) OperationRecorded(string, string, int64) {
	m.mu.Lock()
	m.recorded++
	m.mu.Unlock()
}

func (m *countingMetrics) WindowRolledOver() {
	m.mu.Lock()
	m.rollovers++
	m.mu.Unlock()
}

func (m *countingMetrics) CostPreviewed(string) {
	m.mu.Lock()
	m.previews++
	m.mu.Unlock()
}

func (m *countingMetrics) LedgerError(string) {
	m.mu.Lock()
	m.ledgerErrs++
	m.mu.Unlock()
}

func (m *countingMetrics) AuditError() {
	m.mu.Lock()
	m.auditErrs++
	m.mu.Unlock()
}

func (m *countingMetrics) RateLimited(string) {
	m.mu.Lock()
	m.rateLimited++
	m.mu.Unlock()
}

// brokenRateStore implements ports.RateLimitStore and fails every call.
type brokenRateStore struct{}

func (brokenRateStore) Get(context.Context, string) (ratelimit.WindowState, error) {
	return ratelimit.WindowState{}, errStoreDown
}

func (brokenRateStore) Set(context.Context, string, ratelimit.WindowState) error {
	return errStoreDown
}

// plainRateStore implements only ports.RateLimitStore, without GetAndCheck.
type plainRateStore struct {
	mu    sync.Mutex
	state map[string]ratelimit.WindowState
}

func (s *plainRateStore) Get(_ context.Context, key string) (ratelimit.WindowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[key], nil
}

func (s *plainRateStore) Set(_ context.Context, key string, st ratelimit.WindowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		s.state = make(map[string]ratelimit.WindowState)
	}
	s.state[key] = st
	return nil
}
