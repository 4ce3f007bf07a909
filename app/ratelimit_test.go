package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/applelectricals/microjpeg/adapters/clock"
	"github.com/applelectricals/microjpeg/adapters/memory"
	"github.com/applelectricals/microjpeg/app"
	"github.com/applelectricals/microjpeg/domain/ledger"
	"github.com/applelectricals/microjpeg/domain/ratelimit"
	"github.com/applelectricals/microjpeg/domain/tier"
	"github.com/applelectricals/microjpeg/ports"
)

func limitedTier(limit int) tier.Tier {
	return tier.Tier{ID: tier.Free, RateCeilingPerHour: limit}
}

func TestRateGate_EnforcesHourlyCeiling(t *testing.T) {
	mem := memory.NewRateLimitStore(memory.RateLimitConfig{})
	t.Cleanup(func() { mem.Close() })

	for name, store := range map[string]ports.RateLimitStore{
		"atomic": mem,
		"plain":  &plainRateStore{},
	} {
		t.Run(name, func(t *testing.T) {
			clk := clock.NewFake(t0)
			m := &countingMetrics{}
			g := app.NewRateGate(store, clk, m, zerolog.Nop(), nil)
			id := ledger.User("rate-" + name)

			for i := 0; i < 3; i++ {
				if res := g.Allow(context.Background(), id, limitedTier(3)); !res.Allowed {
					t.Fatalf("request %d denied", i+1)
				}
			}
			res := g.Allow(context.Background(), id, limitedTier(3))
			if res.Allowed || res.Reason != ratelimit.ReasonLimitExceeded {
				t.Fatalf("4th request = %+v, want denied", res)
			}
			if ratelimit.RetryAfter(res, clk.Now()) <= 0 {
				t.Error("denied result must carry a retry delay")
			}
			if m.rateLimited != 1 {
				t.Errorf("rate limited metric = %d, want 1", m.rateLimited)
			}

			clk.Advance(time.Hour)
			if res := g.Allow(context.Background(), id, limitedTier(3)); !res.Allowed {
				t.Error("next window must allow again")
			}
		})
	}
}

func TestRateGate_Burst(t *testing.T) {
	g := app.NewRateGate(&plainRateStore{}, clock.NewFake(t0), &countingMetrics{}, zerolog.Nop(), func() int { return 2 })
	id := ledger.User("u1")

	allowed := 0
	for i := 0; i < 10; i++ {
		if g.Allow(context.Background(), id, limitedTier(3)).Allowed {
			allowed++
		}
	}
	if allowed != 5 {
		t.Errorf("allowed = %d, want 5", allowed)
	}
}

func TestRateGate_UnlimitedTier(t *testing.T) {
	g := app.NewRateGate(brokenRateStore{}, clock.NewFake(t0), &countingMetrics{}, zerolog.Nop(), nil)

	if res := g.Allow(context.Background(), ledger.User("u1"), limitedTier(0)); !res.Allowed {
		t.Error("tier without ceiling must always be allowed")
	}
}

func TestRateGate_FailsOpen(t *testing.T) {
	m := &countingMetrics{}
	g := app.NewRateGate(brokenRateStore{}, clock.NewFake(t0), m, zerolog.Nop(), nil)

	res := g.Allow(context.Background(), ledger.User("u1"), limitedTier(1))
	if !res.Allowed || res.Limit != 1 {
		t.Errorf("result = %+v, want allowed", res)
	}
	if m.rateLimited != 0 {
		t.Error("store errors are not rate limit hits")
	}
}
