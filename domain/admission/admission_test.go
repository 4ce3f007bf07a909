package admission

import (
	"testing"
	"time"

	"github.com/applelectricals/microjpeg/domain/category"
	"github.com/applelectricals/microjpeg/domain/ledger"
	"github.com/applelectricals/microjpeg/domain/tier"
)

var (
	now     = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	catalog = tier.DefaultCatalog()
	enabled = Snapshot{EnforcementEnabled: true}
)

func mustTier(t *testing.T, id tier.ID) tier.Tier {
	t.Helper()
	tr, ok := catalog.Get(id)
	if !ok {
		t.Fatalf("tier %s missing", id)
	}
	return tr
}

func entryWith(regular, raw int64) ledger.Entry {
	e := ledger.New(ledger.Key{Identity: ledger.User("u1")}, now.Add(-24*time.Hour))
	e.RegularMonthlyCount = regular
	e.RawMonthlyCount = raw
	return e
}

func TestDecide_FreeWithinAllowance(t *testing.T) {
	req := Request{
		Identity:      ledger.User("u1"),
		Tier:          mustTier(t, tier.Free),
		Filename:      "photo.jpg",
		FileSizeBytes: 3 * tier.MB,
	}

	d := Decide(req, enabled, entryWith(42, 0), catalog)

	if !d.Allowed || d.Reason != ReasonAllowed || d.WasBypassed {
		t.Fatalf("decision = %+v, want allowed", d)
	}
	if d.Category != category.Regular {
		t.Errorf("category = %s", d.Category)
	}
	if d.Usage == nil || d.Usage.Used != 42 || d.Usage.Remaining != 58 {
		t.Errorf("usage = %+v", d.Usage)
	}
}

func TestDecide_FreeQuotaExhausted(t *testing.T) {
	req := Request{
		Identity:      ledger.User("u1"),
		Tier:          mustTier(t, tier.Free),
		Filename:      "shot.CR2",
		FileSizeBytes: 12 * tier.MB,
	}

	d := Decide(req, enabled, entryWith(0, 10), catalog)

	if d.Allowed || d.Reason != ReasonQuotaExhausted {
		t.Fatalf("decision = %+v, want quota exhausted", d)
	}
	if d.Category != category.Raw {
		t.Errorf("category = %s, want raw", d.Category)
	}
	if d.UpgradeSuggested != tier.Starter {
		t.Errorf("upgrade = %s, want starter", d.UpgradeSuggested)
	}
}

func TestDecide_FileTooLarge(t *testing.T) {
	req := Request{
		Identity:      ledger.User("u1"),
		Tier:          mustTier(t, tier.Free),
		Filename:      "big.png",
		FileSizeBytes: 8 * tier.MB,
	}

	d := Decide(req, enabled, entryWith(0, 0), catalog)

	if d.Allowed || d.Reason != ReasonFileTooLarge {
		t.Fatalf("decision = %+v, want file too large", d)
	}
	if d.CeilingBytes != 7*tier.MB {
		t.Errorf("ceiling = %d", d.CeilingBytes)
	}
	if d.UpgradeSuggested != tier.Starter {
		t.Errorf("upgrade = %s, want starter", d.UpgradeSuggested)
	}
}

func TestDecide_SizeCeilingAtBoundaryAllowed(t *testing.T) {
	req := Request{Tier: mustTier(t, tier.Free), Filename: "a.png", FileSizeBytes: 7 * tier.MB}
	if d := Decide(req, enabled, entryWith(0, 0), catalog); !d.Allowed {
		t.Fatalf("file exactly at the ceiling must be allowed: %+v", d)
	}
}

func TestDecide_SuperBypass(t *testing.T) {
	req := Request{
		Identity:      ledger.User("u1"),
		Tier:          mustTier(t, tier.Free),
		Filename:      "huge.tiff",
		FileSizeBytes: 900 * tier.MB,
		Override:      &Override{SuperBypass: true, Reason: "support ticket", Administrator: "ops@example.com"},
	}

	d := Decide(req, enabled, entryWith(1000, 1000), catalog)

	if !d.Allowed || !d.WasBypassed || d.Reason != ReasonSuperBypass {
		t.Fatalf("decision = %+v, want bypassed allow", d)
	}
	if got := BypassReason(req, enabled); got != "support ticket" {
		t.Errorf("bypass reason = %q", got)
	}
}

func TestDecide_EnforcementDisabled(t *testing.T) {
	off := Snapshot{EnforcementEnabled: false}
	req := Request{Tier: mustTier(t, tier.Anonymous), Filename: "a.webp", FileSizeBytes: 50 * tier.MB}

	d := Decide(req, off, entryWith(500, 0), catalog)
	if !d.Allowed || !d.WasBypassed || d.Reason != ReasonEnforcementDisabled {
		t.Fatalf("decision = %+v, want enforcement bypass", d)
	}
	if got := BypassReason(req, off); got != string(ReasonEnforcementDisabled) {
		t.Errorf("bypass reason = %q", got)
	}
}

func TestDecide_EnforcementDisabledKeepsSizeCeilings(t *testing.T) {
	s := Snapshot{EnforcementEnabled: false, SizeCeilingsWhenDisabled: true}
	req := Request{Tier: mustTier(t, tier.Free), Filename: "a.webp", FileSizeBytes: 50 * tier.MB}

	if d := Decide(req, s, entryWith(0, 0), catalog); d.Allowed || d.Reason != ReasonFileTooLarge {
		t.Fatalf("decision = %+v, want size denial", d)
	}

	req.FileSizeBytes = tier.MB
	d := Decide(req, s, entryWith(1000, 0), catalog)
	if !d.Allowed || !d.WasBypassed {
		t.Fatalf("decision = %+v, quota must stay bypassed", d)
	}
}

func TestDecide_UnknownFormatAlwaysDenied(t *testing.T) {
	snapshots := []Snapshot{enabled, {EnforcementEnabled: false}}
	overrides := []*Override{nil, {SuperBypass: true}}
	tiers := []tier.ID{tier.Anonymous, tier.Free, tier.Pro, tier.Enterprise}

	for _, s := range snapshots {
		for _, o := range overrides {
			for _, id := range tiers {
				for _, name := range []string{"notes.txt", "README", "archive.zip", ".hidden"} {
					req := Request{Tier: mustTier(t, id), Filename: name, Override: o}
					d := Decide(req, s, entryWith(0, 0), catalog)
					if d.Allowed || d.Reason != ReasonUnsupportedFormat {
						t.Errorf("%s on %s (snapshot %+v, override %v) = %+v", name, id, s, o != nil, d)
					}
				}
			}
		}
	}
}

func TestDecide_PaidTiersIgnoreVolume(t *testing.T) {
	for _, id := range []tier.ID{tier.Starter, tier.Pro, tier.Business, tier.Enterprise} {
		tr := mustTier(t, id)
		req := Request{Tier: tr, Filename: "a.jpg", FileSizeBytes: tier.MB}

		d, done := Precheck(req, enabled, catalog)
		if !done || !d.Allowed || d.Reason != ReasonAllowed {
			t.Errorf("%s: precheck = %+v done=%v, want allow without ledger", id, d, done)
		}
		if d.Usage != nil {
			t.Errorf("%s: unmetered decision must not carry usage", id)
		}

		req.FileSizeBytes = tr.CeilingFor(category.Regular) + 1
		d = Decide(req, enabled, entryWith(0, 0), catalog)
		if d.Allowed || d.Reason != ReasonFileTooLarge {
			t.Errorf("%s: oversize = %+v, want size denial", id, d)
		}
	}
}

func TestPrecheck_MeteredNeedsLedger(t *testing.T) {
	req := Request{Tier: mustTier(t, tier.Free), Filename: "a.jpg", FileSizeBytes: tier.MB}
	if _, done := Precheck(req, enabled, catalog); done {
		t.Fatal("metered request within ceiling must defer to quota check")
	}
}

func TestDecide_CapabilityNotEnabled(t *testing.T) {
	req := Request{Tier: mustTier(t, tier.Free), Operation: OpEnhance, Filename: "a.jpg"}

	d := Decide(req, enabled, entryWith(0, 0), catalog)
	if d.Allowed || d.Reason != ReasonCapabilityDisabled {
		t.Fatalf("decision = %+v, want capability denial", d)
	}
	if d.UpgradeSuggested != tier.Pro {
		t.Errorf("upgrade = %s, want pro", d.UpgradeSuggested)
	}

	req.Override = &Override{SuperBypass: true}
	if d := Decide(req, enabled, entryWith(0, 0), catalog); !d.Allowed {
		t.Errorf("super bypass must skip capability check: %+v", d)
	}
}

func TestDecide_NilUpgrader(t *testing.T) {
	req := Request{Tier: mustTier(t, tier.Free), Filename: "a.jpg", FileSizeBytes: 100 * tier.MB}
	d := Decide(req, enabled, entryWith(0, 0), nil)
	if d.Allowed || d.UpgradeSuggested != "" {
		t.Errorf("decision = %+v", d)
	}
}

func TestUnavailable(t *testing.T) {
	d := Unavailable(Request{Tier: mustTier(t, tier.Free), Filename: "a.raf"})
	if d.Allowed || !d.Retryable || d.Reason != ReasonServiceUnavailable || d.Category != category.Raw {
		t.Errorf("decision = %+v", d)
	}
}

func TestOperation(t *testing.T) {
	if Operation("").Capability() != tier.CapCompress || !Operation("").Valid() {
		t.Error("empty operation means compress")
	}
	if OpEnhance.Capability() != tier.CapEnhance || OpConvert.Capability() != tier.CapConvert {
		t.Error("capability mapping")
	}
	if Operation("resize").Valid() {
		t.Error("resize is not an operation")
	}
}

func TestReason_Message(t *testing.T) {
	for _, r := range []Reason{ReasonAllowed, ReasonSuperBypass, ReasonEnforcementDisabled, ReasonUnsupportedFormat,
		ReasonCapabilityDisabled, ReasonFileTooLarge, ReasonQuotaExhausted, ReasonServiceUnavailable} {
		if r.Message() == string(r) {
			t.Errorf("%s has no message", r)
		}
	}
}
