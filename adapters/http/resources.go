package http

import (
	"strconv"

	"github.com/applelectricals/microjpeg/app"
	"github.com/applelectricals/microjpeg/domain/admission"
	"github.com/applelectricals/microjpeg/domain/audit"
	"github.com/applelectricals/microjpeg/domain/ledger"
	"github.com/applelectricals/microjpeg/domain/pricing"
	"github.com/applelectricals/microjpeg/domain/quota"
	"github.com/applelectricals/microjpeg/domain/tier"
	"github.com/applelectricals/microjpeg/pkg/jsonapi"
)

func decisionResource(id string, d admission.Decision) jsonapi.Resource {
	b := jsonapi.NewResource("admission-decisions", id).
		Attr("allowed", d.Allowed).
		Attr("reason", string(d.Reason)).
		Attr("message", d.Reason.Message()).
		Attr("was_bypassed", d.WasBypassed).
		Attr("tier", string(d.TierID)).
		Attr("category", string(d.Category)).
		AttrIf(d.UpgradeSuggested != "", "upgrade_suggested", string(d.UpgradeSuggested)).
		AttrIf(d.CeilingBytes > 0, "file_size_ceiling_bytes", d.CeilingBytes).
		AttrIf(d.Retryable, "retryable", true)
	if d.Usage != nil {
		b.Attr("usage", snapshotAttrs(*d.Usage))
	}
	return b.Build()
}

func snapshotAttrs(s quota.Snapshot) map[string]any {
	return map[string]any{
		"category":          string(s.Category),
		"used":              s.Used,
		"limit":             s.Limit,
		"remaining":         s.Remaining,
		"percent_used":      s.PercentUsed,
		"warning_level":     s.WarningLevel.String(),
		"bandwidth_bytes":   s.BandwidthBytes,
		"window_started_at": s.WindowStartedAt,
		"resets_at":         s.ResetsAt,
	}
}

func entryAttrs(e ledger.Entry) map[string]any {
	return map[string]any{
		"regular_monthly_count":     e.RegularMonthlyCount,
		"raw_monthly_count":         e.RawMonthlyCount,
		"monthly_bandwidth_bytes":   e.MonthlyBandwidthBytes,
		"monthly_window_started_at": e.MonthlyWindowStartedAt,
		"resets_at":                 e.WindowEndsAt(),
	}
}

func recordResource(id string, res app.RecordResult) jsonapi.Resource {
	b := jsonapi.NewResource("operations", id).
		Attr("tier", string(res.TierID)).
		Attr("category", string(res.Category)).
		Attr("metered", res.Metered).
		Attr("was_bypassed", res.WasBypassed).
		AttrIf(res.AuditID != "", "audit_id", res.AuditID)
	if res.Entry != nil {
		b.Attr("ledger", entryAttrs(*res.Entry))
	}
	return b.Build()
}

func usageResource(u app.Usage) jsonapi.Resource {
	return jsonapi.NewResource("usage", u.Key.String()).
		Attr("tier", string(u.TierID)).
		Attr("metered", u.Metered).
		Attr("regular", snapshotAttrs(u.Regular)).
		Attr("raw", snapshotAttrs(u.Raw)).
		Build()
}

func perCategory(p tier.PerCategory) map[string]int64 {
	return map[string]int64{"regular": p.Regular, "raw": p.Raw}
}

func tierResource(t tier.Tier) jsonapi.Resource {
	return jsonapi.NewResource("tiers", string(t.ID)).
		Attr("name", t.DisplayName).
		Attr("rank", t.Rank).
		Attr("policy", string(t.Policy)).
		AttrIf(t.IsMetered(), "monthly_free_operations", perCategory(t.MonthlyFreeOperations)).
		Attr("file_size_ceiling_bytes", perCategory(t.FileSizeCeiling)).
		Attr("rate_ceiling_per_hour", t.RateCeilingPerHour).
		Attr("concurrency_ceiling", t.ConcurrencyCeiling).
		Attr("capabilities", t.CapabilityList()).
		Build()
}

func bandAttrs(b pricing.Band) map[string]any {
	m := map[string]any{
		"range":      b.Label(),
		"lower":      b.Lower,
		"upper":      nil,
		"unit_price": b.UnitPrice.String(),
	}
	if !b.IsUnbounded() {
		m["upper"] = b.Upper
	}
	return m
}

func breakdownAttrs(charges []pricing.BandCharge) []map[string]any {
	out := make([]map[string]any, 0, len(charges))
	for _, c := range charges {
		m := bandAttrs(c.Band)
		m["operations"] = c.Operations
		m["subtotal"] = c.Subtotal.String()
		out = append(out, m)
	}
	return out
}

func costResource(currency string, c pricing.Cost) jsonapi.Resource {
	return jsonapi.NewResource("cost-previews", strconv.FormatInt(c.Operations, 10)).
		Attr("operations", c.Operations).
		Attr("currency", currency).
		Attr("total", c.Total.String()).
		Attr("total_cents", c.Total.Cents()).
		Attr("breakdown", breakdownAttrs(c.Breakdown)).
		Build()
}

func bundleResource(currency string, b pricing.Bundle) jsonapi.Resource {
	return jsonapi.NewResource("bundles", b.ID).
		Attr("name", b.Name).
		Attr("operations", b.Operations).
		Attr("currency", currency).
		Attr("price", b.Price.String()).
		Link("/v1/pricing/bundles/" + b.ID + "/savings").
		Build()
}

func savingsResource(currency string, s pricing.Savings) jsonapi.Resource {
	return jsonapi.NewResource("bundle-savings", s.Bundle.ID).
		Attr("bundle", s.Bundle.Name).
		Attr("operations", s.Bundle.Operations).
		Attr("currency", currency).
		Attr("price", s.Bundle.Price.String()).
		Attr("pay_as_you_go_equivalent", s.PayAsYouGoEquivalent.String()).
		Attr("savings", s.Savings.String()).
		Attr("savings_percent", s.SavingsPercent).
		Attr("breakdown", breakdownAttrs(s.PayAsYouGoBreakdown)).
		Build()
}

func auditResource(r audit.Record) jsonapi.Resource {
	return jsonapi.NewResource("audit-records", r.ID).
		Attr("identity", r.Identity.String()).
		Attr("session_id", r.SessionID).
		Attr("tier", string(r.TierID)).
		Attr("operation", r.Operation).
		Attr("operation_category", string(r.OperationCategory)).
		Attr("file_format", r.FileFormat).
		Attr("file_size_bytes", r.FileSizeBytes).
		Attr("file_size_mb", r.FileSizeMB).
		AttrIf(r.PageContext != "", "page_context", r.PageContext).
		Attr("outcome", string(r.Outcome)).
		AttrIf(r.Reason != "", "reason", r.Reason).
		Attr("was_bypassed", r.WasBypassed).
		AttrIf(r.BypassReason != "", "bypass_reason", r.BypassReason).
		AttrIf(r.ActingAdministrator != "", "acting_administrator", r.ActingAdministrator).
		Attr("timestamp", r.Timestamp).
		Build()
}
