// Package settings holds the runtime switches an operator can flip without
// a restart. Values are stored as strings; typed access goes through the
// helpers below.
package settings

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Keys. KeySizeCeilingsWhenDisabled keeps per-file size ceilings while
// enforcement is switched off.
const (
	KeyEnforcementEnabled       = "enforcement.enabled"
	KeySizeCeilingsWhenDisabled = "enforcement.size_ceilings_when_disabled"
	KeyAuditRecordDenials       = "audit.record_denials"
	KeyRateLimitEnabled         = "ratelimit.enabled"
	KeyRateLimitBurstTokens     = "ratelimit.burst_tokens"
)

var (
	ErrUnknownKey   = errors.New("unknown setting")
	ErrInvalidValue = errors.New("invalid setting value")
)

type kind int

const (
	kindBool kind = iota
	kindCount
)

type definition struct {
	kind kind
	def  string
}

var registry = map[string]definition{
	KeyEnforcementEnabled:       {kindBool, "true"},
	KeySizeCeilingsWhenDisabled: {kindBool, "false"},
	KeyAuditRecordDenials:       {kindBool, "true"},
	KeyRateLimitEnabled:         {kindBool, "true"},
	KeyRateLimitBurstTokens:     {kindCount, "0"},
}

// Settings maps keys to stored values.
type Settings map[string]string

// Get returns the raw value, or "" when unset.
func (s Settings) Get(key string) string {
	return s[key]
}

// GetBool reports whether the value spells true.
func (s Settings) GetBool(key string) bool {
	return ParseBool(s[key])
}

// GetInt returns the value as an int, or fallback when unset or malformed.
func (s Settings) GetInt(key string, fallback int) int {
	i, err := strconv.Atoi(strings.TrimSpace(s[key]))
	if err != nil {
		return fallback
	}
	return i
}

// ParseBool accepts true, 1, yes and on in any case.
func ParseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// FormatBool is the stored form of a bool.
func FormatBool(b bool) string {
	return strconv.FormatBool(b)
}

// Known reports whether key is a recognised setting.
func Known(key string) bool {
	_, ok := registry[key]
	return ok
}

// Validate checks key and value before they are persisted.
func Validate(key, value string) error {
	d, ok := registry[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	v := strings.ToLower(strings.TrimSpace(value))
	switch d.kind {
	case kindBool:
		switch v {
		case "true", "false", "1", "0", "yes", "no", "on", "off":
			return nil
		}
		return fmt.Errorf("%w: %s expects a boolean, got %q", ErrInvalidValue, key, value)
	case kindCount:
		if n, err := strconv.Atoi(v); err != nil || n < 0 {
			return fmt.Errorf("%w: %s expects a non-negative integer, got %q", ErrInvalidValue, key, value)
		}
	}
	return nil
}

// Keys returns every recognised key, sorted.
func Keys() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Defaults returns the default value of every key. Enforcement starts on.
func Defaults() Settings {
	out := make(Settings, len(registry))
	for k, d := range registry {
		out[k] = d.def
	}
	return out
}

// Merge overlays loaded values on the defaults.
func Merge(loaded Settings) Settings {
	out := Defaults()
	for k, v := range loaded {
		out[k] = v
	}
	return out
}
