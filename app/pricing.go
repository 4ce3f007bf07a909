package app

import (
	"fmt"
	"sync/atomic"

	"github.com/applelectricals/microjpeg/domain/pricing"
	"github.com/applelectricals/microjpeg/ports"
)

// PricingService answers cost and bundle previews. It has no side effects
// beyond metrics; the schedule can be swapped on config reload.
type PricingService struct {
	schedule atomic.Pointer[pricing.Schedule]
	metrics  ports.Metrics
}

// NewPricingService creates a pricing service for schedule.
func NewPricingService(schedule pricing.Schedule, metrics ports.Metrics) *PricingService {
	s := &PricingService{metrics: metrics}
	s.UpdateSchedule(schedule)
	return s
}

// UpdateSchedule replaces the active schedule. Safe for concurrent use.
func (s *PricingService) UpdateSchedule(schedule pricing.Schedule) {
	s.schedule.Store(&schedule)
}

// Schedule returns the active schedule.
func (s *PricingService) Schedule() pricing.Schedule {
	return *s.schedule.Load()
}

// PreviewCost computes the pay-as-you-go cost of operations.
func (s *PricingService) PreviewCost(operations int64) (pricing.Cost, error) {
	s.metrics.CostPreviewed("cost")
	cost, err := pricing.ComputeCost(s.Schedule().Bands, operations)
	if err != nil {
		return pricing.Cost{}, fmt.Errorf("preview cost of %d operations: %w", operations, err)
	}
	return cost, nil
}

// PreviewPrepaidSavings compares bundleID against pay-as-you-go.
func (s *PricingService) PreviewPrepaidSavings(bundleID string) (pricing.Savings, error) {
	s.metrics.CostPreviewed("savings")
	sched := s.Schedule()
	b, err := sched.FindBundle(bundleID)
	if err != nil {
		return pricing.Savings{}, err
	}
	return pricing.PrepaidSavings(sched.Bands, b)
}

// Bundles lists the prepaid bundles on offer.
func (s *PricingService) Bundles() []pricing.Bundle {
	b := s.Schedule().Bundles
	out := make([]pricing.Bundle, len(b))
	copy(out, b)
	return out
}
