package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/applelectricals/microjpeg/domain/ledger"
	"github.com/applelectricals/microjpeg/domain/ratelimit"
	"github.com/applelectricals/microjpeg/domain/tier"
	"github.com/applelectricals/microjpeg/ports"
)

// atomicRateChecker is implemented by stores that can check and update a
// window under one lock or transaction.
type atomicRateChecker interface {
	GetAndCheck(ctx context.Context, key string, cfg ratelimit.Config, now time.Time) (ratelimit.CheckResult, error)
}

// RateGate enforces per-tier hourly request ceilings in front of
// admission. It fails open: a store error lets the request through.
type RateGate struct {
	store   ports.RateLimitStore
	clock   ports.Clock
	metrics ports.Metrics
	logger  zerolog.Logger
	burst   func() int
}

// NewRateGate creates a rate gate. burst reports the current burst
// allowance and may be nil.
func NewRateGate(store ports.RateLimitStore, clock ports.Clock, metrics ports.Metrics, logger zerolog.Logger, burst func() int) *RateGate {
	if burst == nil {
		burst = func() int { return 0 }
	}
	return &RateGate{store: store, clock: clock, metrics: metrics, logger: logger, burst: burst}
}

// Allow counts one request for id against t's hourly ceiling.
func (g *RateGate) Allow(ctx context.Context, id ledger.Identity, t tier.Tier) ratelimit.CheckResult {
	cfg := ratelimit.ForTier(t, g.burst())
	if cfg.Unlimited() {
		return ratelimit.CheckResult{Allowed: true}
	}

	now := g.clock.Now()
	key := id.String()

	var (
		res ratelimit.CheckResult
		err error
	)
	if ac, ok := g.store.(atomicRateChecker); ok {
		res, err = ac.GetAndCheck(ctx, key, cfg, now)
	} else {
		var state ratelimit.WindowState
		state, err = g.store.Get(ctx, key)
		if err == nil {
			var next ratelimit.WindowState
			res, next = ratelimit.Check(state, cfg, now)
			err = g.store.Set(ctx, key, next)
		}
	}
	if err != nil {
		g.logger.Warn().Err(err).Str("identity", key).Msg("rate limit store failed, allowing request")
		return ratelimit.CheckResult{Allowed: true, Limit: cfg.Limit}
	}

	if !res.Allowed {
		g.metrics.RateLimited(string(t.ID))
	}
	return res
}
