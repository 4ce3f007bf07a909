package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/applelectricals/microjpeg/domain/admission"
	"github.com/applelectricals/microjpeg/domain/audit"
	"github.com/applelectricals/microjpeg/domain/category"
	"github.com/applelectricals/microjpeg/domain/ledger"
	"github.com/applelectricals/microjpeg/domain/settings"
	"github.com/applelectricals/microjpeg/domain/tier"
	"github.com/applelectricals/microjpeg/ports"
)

// AdmissionService is the entry point the HTTP layer calls before and
// after every image operation.
type AdmissionService struct {
	ledger   *Ledger
	settings *SettingsService
	audit    ports.AuditSink
	clock    ports.Clock
	idGen    ports.IDGenerator
	metrics  ports.Metrics
	logger   zerolog.Logger

	// Hot-reloadable; definitions apply prospectively.
	catalog atomic.Pointer[tier.Catalog]
}

// AdmissionDeps contains dependencies for AdmissionService.
type AdmissionDeps struct {
	Ledger   *Ledger
	Settings *SettingsService
	Audit    ports.AuditSink
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Metrics  ports.Metrics
	Logger   zerolog.Logger
}

// NewAdmissionService creates an admission service over catalog.
func NewAdmissionService(deps AdmissionDeps, catalog *tier.Catalog) *AdmissionService {
	s := &AdmissionService{
		ledger:   deps.Ledger,
		settings: deps.Settings,
		audit:    deps.Audit,
		clock:    deps.Clock,
		idGen:    deps.IDGen,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
	s.UpdateCatalog(catalog)
	return s
}

// UpdateCatalog swaps the tier catalog. Safe for concurrent use.
func (s *AdmissionService) UpdateCatalog(c *tier.Catalog) {
	s.catalog.Store(c)
}

// Catalog returns the active tier catalog.
func (s *AdmissionService) Catalog() *tier.Catalog {
	return s.catalog.Load()
}

// ResolveTier maps a plan label to a tier for identity.
func (s *AdmissionService) ResolveTier(id ledger.Identity, planLabel string) tier.Tier {
	return s.Catalog().ResolveFor(planLabel, id.IsAnonymous())
}

// OperationInput describes one operation as seen by the HTTP layer.
type OperationInput struct {
	Identity      ledger.Identity
	SessionID     string
	PlanLabel     string
	Operation     admission.Operation
	Filename      string
	FileSizeBytes int64
	PageContext   string
	Override      *admission.Override
}

func (in OperationInput) validate() error {
	if in.Identity.ID == "" {
		return ErrIdentityMissing
	}
	if in.Identity.Kind != ledger.KindUser && in.Identity.Kind != ledger.KindAnonymous {
		return fmt.Errorf("%w: identity kind %q", ErrInvalidRequest, in.Identity.Kind)
	}
	if !in.Operation.Valid() {
		return fmt.Errorf("%w: operation %q", ErrInvalidRequest, in.Operation)
	}
	return nil
}

func (s *AdmissionService) request(in OperationInput) admission.Request {
	return admission.Request{
		Identity:      in.Identity,
		SessionID:     in.SessionID,
		Tier:          s.ResolveTier(in.Identity, in.PlanLabel),
		Operation:     in.Operation.Normalize(),
		Filename:      in.Filename,
		FileSizeBytes: in.FileSizeBytes,
		Override:      in.Override,
	}
}

// CheckAdmission decides whether the operation may proceed. Denials are
// returned as decisions with a nil error. A ledger failure yields a
// service_unavailable decision together with an error wrapping
// admission.ErrStorageUnavailable.
func (s *AdmissionService) CheckAdmission(ctx context.Context, in OperationInput) (admission.Decision, error) {
	if err := in.validate(); err != nil {
		return admission.Decision{}, err
	}

	start := time.Now()
	req := s.request(in)
	cur := s.settings.Get(ctx)
	snap := snapshotOf(cur)
	cat := s.Catalog()

	d, done := admission.Precheck(req, snap, cat)
	var storeErr error
	if !done {
		entry, err := s.ledger.Current(ctx, req.Key(), s.clock.Now())
		if err != nil {
			d = admission.Unavailable(req)
			storeErr = fmt.Errorf("%w: %w", admission.ErrStorageUnavailable, err)
		} else {
			d = admission.CheckQuota(req, entry, cat)
		}
	}

	s.metrics.AdmissionDecided(string(d.TierID), string(d.Reason), d.Allowed, d.WasBypassed, time.Since(start))

	log := s.logger.Debug()
	if storeErr != nil {
		log = s.logger.Error().Err(storeErr)
	}
	log.Str("identity", req.Identity.String()).
		Str("tier", string(d.TierID)).
		Str("category", string(d.Category)).
		Str("reason", string(d.Reason)).
		Bool("allowed", d.Allowed).
		Bool("bypassed", d.WasBypassed).
		Msg("admission decided")

	switch {
	case d.WasBypassed:
		s.appendAudit(ctx, in, req, snap, audit.OutcomeBypassed, string(d.Reason))
	case !d.Allowed && cur.GetBool(settings.KeyAuditRecordDenials):
		s.appendAudit(ctx, in, req, snap, audit.OutcomeDenied, string(d.Reason))
	}

	return d, storeErr
}

// RecordResult reports what RecordOperation committed.
type RecordResult struct {
	TierID      tier.ID
	Category    category.Category
	Metered     bool
	Entry       *ledger.Entry // nil for unmetered tiers
	WasBypassed bool
	AuditID     string // empty when the audit write failed
}

// RecordOperation commits usage after the image operation succeeded.
// Metered tiers have their category counter and bandwidth incremented;
// unmetered tiers skip the ledger. An audit record is always attempted and
// its failure is logged, never returned.
func (s *AdmissionService) RecordOperation(ctx context.Context, in OperationInput) (RecordResult, error) {
	if err := in.validate(); err != nil {
		return RecordResult{}, err
	}

	req := s.request(in)
	snap := s.settings.Snapshot(ctx)
	cat := category.Classify(req.Filename)
	size := audit.NormalizeSize(req.FileSizeBytes)

	res := RecordResult{
		TierID:      req.Tier.ID,
		Category:    cat,
		Metered:     req.Tier.IsMetered(),
		WasBypassed: admission.BypassReason(req, snap) != "",
	}

	if res.Metered && cat.IsKnown() {
		e, err := s.ledger.Increment(ctx, req.Key(), cat, 1, size, s.clock.Now())
		if err != nil {
			return res, fmt.Errorf("%w: %w", admission.ErrStorageUnavailable, err)
		}
		res.Entry = &e
	}

	s.metrics.OperationRecorded(string(req.Tier.ID), string(cat), size)
	res.AuditID = s.appendAudit(ctx, in, req, snap, audit.OutcomeProcessed, "")
	return res, nil
}

// appendAudit writes one record and returns its ID, or "" on failure.
func (s *AdmissionService) appendAudit(ctx context.Context, in OperationInput, req admission.Request, snap admission.Snapshot, outcome audit.Outcome, reason string) string {
	bypass := admission.BypassReason(req, snap)
	var admin string
	if in.Override != nil && in.Override.SuperBypass {
		admin = in.Override.Administrator
	}

	rec := audit.NewRecord(s.idGen.New(), audit.Input{
		Identity:            req.Identity,
		SessionID:           req.SessionID,
		TierID:              req.Tier.ID,
		Operation:           string(req.Operation),
		Filename:            req.Filename,
		FileSizeBytes:       req.FileSizeBytes,
		PageContext:         in.PageContext,
		Outcome:             outcome,
		Reason:              reason,
		WasBypassed:         bypass != "",
		BypassReason:        bypass,
		ActingAdministrator: admin,
	}, s.clock.Now())

	if err := s.audit.Append(ctx, rec); err != nil {
		s.metrics.AuditError()
		s.logger.Error().Err(err).
			Str("identity", req.Identity.String()).
			Str("outcome", string(outcome)).
			Msg("audit write failed")
		return ""
	}
	return rec.ID
}

// Usage returns the current usage view for an identity.
func (s *AdmissionService) Usage(ctx context.Context, id ledger.Identity, sessionID, planLabel string) (Usage, error) {
	if id.ID == "" {
		return Usage{}, ErrIdentityMissing
	}
	t := s.ResolveTier(id, planLabel)
	return s.ledger.View(ctx, ledger.Key{Identity: id, SessionID: sessionID}, t, s.clock.Now())
}

// AuditLog lists audit records.
func (s *AdmissionService) AuditLog(ctx context.Context, f audit.Filter) ([]audit.Record, error) {
	recs, err := s.audit.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	return recs, nil
}
