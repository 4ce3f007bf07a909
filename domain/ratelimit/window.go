// Package ratelimit provides the pure fixed-window algorithm behind hourly
// rate ceilings. All functions are deterministic.
package ratelimit

import (
	"time"

	"github.com/applelectricals/microjpeg/domain/tier"
)

// HourlyWindow is the window every tier rate ceiling is expressed in.
const HourlyWindow = time.Hour

// ReasonLimitExceeded is set when a request is over the ceiling.
const ReasonLimitExceeded = "rate_limit_exceeded"

// WindowState is the counter for one caller in one window (value type).
type WindowState struct {
	Count     int
	WindowEnd time.Time
	BurstUsed int
}

// CheckResult represents the outcome of a rate check (value type).
type CheckResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	Reason    string
}

// Config holds the ceiling for one caller (value type).
type Config struct {
	Limit       int // 0 means no ceiling
	Window      time.Duration
	BurstTokens int
}

// Unlimited reports whether the config imposes no ceiling.
func (c Config) Unlimited() bool {
	return c.Limit <= 0
}

// ForTier returns the hourly config for a tier.
func ForTier(t tier.Tier, burst int) Config {
	if burst < 0 {
		burst = 0
	}
	return Config{Limit: t.RateCeilingPerHour, Window: HourlyWindow, BurstTokens: burst}
}

// Check counts one request against state.
// This is a PURE function. The caller persists newState.
func Check(state WindowState, cfg Config, now time.Time) (CheckResult, WindowState) {
	if cfg.Unlimited() {
		return CheckResult{Allowed: true}, state
	}
	window := cfg.Window
	if window <= 0 {
		window = HourlyWindow
	}

	if state.WindowEnd.IsZero() || !now.Before(state.WindowEnd) {
		state = WindowState{WindowEnd: now.Truncate(window).Add(window)}
	}

	res := CheckResult{Limit: cfg.Limit, ResetAt: state.WindowEnd}

	switch {
	case state.Count < cfg.Limit:
		state.Count++
		res.Allowed = true
		res.Remaining = cfg.Limit - state.Count
	case state.BurstUsed < cfg.BurstTokens:
		state.Count++
		state.BurstUsed++
		res.Allowed = true
	default:
		res.Reason = ReasonLimitExceeded
	}
	return res, state
}

// RetryAfter returns how long a denied caller should wait.
// This is a PURE function.
func RetryAfter(result CheckResult, now time.Time) time.Duration {
	if result.Allowed {
		return 0
	}
	if d := result.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
