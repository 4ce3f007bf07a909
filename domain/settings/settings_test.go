package settings_test

import (
	"errors"
	"testing"

	"github.com/applelectricals/microjpeg/domain/settings"
)

func TestParseBool(t *testing.T) {
	for v, want := range map[string]bool{
		"true": true, "1": true, "yes": true, "on": true, " ON ": true, "True": true,
		"false": false, "0": false, "": false, "maybe": false,
	} {
		if got := settings.ParseBool(v); got != want {
			t.Errorf("ParseBool(%q) = %v, want %v", v, got, want)
		}
	}
}

func TestSettings_GetInt(t *testing.T) {
	s := settings.Settings{"burst": "42", "neg": "-10", "junk": "x"}

	if s.GetInt("burst", 0) != 42 {
		t.Error("valid int")
	}
	if s.GetInt("neg", 0) != -10 {
		t.Error("negative int")
	}
	if s.GetInt("junk", 7) != 7 || s.GetInt("missing", 3) != 3 {
		t.Error("fallback not used")
	}
}

func TestDefaults(t *testing.T) {
	d := settings.Defaults()
	if !d.GetBool(settings.KeyEnforcementEnabled) {
		t.Error("enforcement must default to enabled")
	}
	if d.GetBool(settings.KeySizeCeilingsWhenDisabled) {
		t.Error("size ceilings when disabled must default to off")
	}
	if !d.GetBool(settings.KeyAuditRecordDenials) {
		t.Error("denials are audited by default")
	}
	if len(d) != len(settings.Keys()) {
		t.Errorf("defaults cover %d of %d keys", len(d), len(settings.Keys()))
	}
}

func TestMerge_PrefersLoaded(t *testing.T) {
	m := settings.Merge(settings.Settings{settings.KeyEnforcementEnabled: "false"})
	if m.GetBool(settings.KeyEnforcementEnabled) {
		t.Error("loaded value must win")
	}
	if !m.GetBool(settings.KeyRateLimitEnabled) {
		t.Error("defaults must fill gaps")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		key, value string
		want       error
	}{
		{settings.KeyEnforcementEnabled, "off", nil},
		{settings.KeyEnforcementEnabled, "FALSE", nil},
		{settings.KeyEnforcementEnabled, "sometimes", settings.ErrInvalidValue},
		{settings.KeyRateLimitBurstTokens, "20", nil},
		{settings.KeyRateLimitBurstTokens, "-1", settings.ErrInvalidValue},
		{settings.KeyRateLimitBurstTokens, "lots", settings.ErrInvalidValue},
		{"portal.enabled", "true", settings.ErrUnknownKey},
	}
	for _, tt := range tests {
		err := settings.Validate(tt.key, tt.value)
		if tt.want == nil && err != nil {
			t.Errorf("Validate(%s, %q) = %v", tt.key, tt.value, err)
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("Validate(%s, %q) = %v, want %v", tt.key, tt.value, err, tt.want)
		}
	}
}

func TestKeys_Sorted(t *testing.T) {
	keys := settings.Keys()
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("keys not sorted: %v", keys)
		}
	}
	if !settings.Known(settings.KeyAuditRecordDenials) || settings.Known("portal.enabled") {
		t.Error("Known")
	}
	if settings.FormatBool(true) != "true" || settings.FormatBool(false) != "false" {
		t.Error("FormatBool")
	}
}
