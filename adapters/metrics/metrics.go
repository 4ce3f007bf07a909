// Package metrics provides Prometheus metrics collection for microjpeg.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/applelectricals/microjpeg/ports"
)

const namespace = "microjpeg"

// Collector holds all Prometheus metrics for microjpeg.
type Collector struct {
	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Admission metrics
	AdmissionsTotal   *prometheus.CounterVec
	AdmissionDuration *prometheus.HistogramVec
	BypassesTotal     *prometheus.CounterVec

	// Usage metrics
	OperationsTotal *prometheus.CounterVec
	BandwidthBytes  *prometheus.CounterVec
	Rollovers       prometheus.Counter

	// Pricing metrics
	CostPreviews *prometheus.CounterVec

	// Failure metrics
	LedgerErrors  *prometheus.CounterVec
	AuditErrors   prometheus.Counter
	RateLimitHits *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),

		AdmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admissions_total",
				Help:      "Admission decisions by tier, reason and verdict",
			},
			[]string{"tier", "reason", "allowed"},
		),
		AdmissionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "admission_duration_seconds",
				Help:      "Time to reach an admission decision",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
			},
			[]string{"tier"},
		),
		BypassesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admission_bypasses_total",
				Help:      "Admissions allowed through an override or disabled enforcement",
			},
			[]string{"reason"},
		),

		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_recorded_total",
				Help:      "Processed operations by tier and category",
			},
			[]string{"tier", "category"},
		),
		BandwidthBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bandwidth_bytes_total",
				Help:      "Processed input bytes by tier",
			},
			[]string{"tier"},
		),

		Rollovers: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_rollovers_total",
				Help:      "Monthly windows reset by rollover",
			},
		),

		CostPreviews: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cost_previews_total",
				Help:      "Pricing previews by kind",
			},
			[]string{"kind"},
		),

		LedgerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_errors_total",
				Help:      "Usage ledger failures by operation",
			},
			[]string{"op"},
		),
		AuditErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_errors_total",
				Help:      "Audit records that could not be written",
			},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Requests rejected by the hourly rate ceiling",
			},
			[]string{"tier"},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

// AdmissionDecided records one admission decision.
func (c *Collector) AdmissionDecided(tierID, reason string, allowed, bypassed bool, latency time.Duration) {
	c.AdmissionsTotal.WithLabelValues(tierID, reason, strconv.FormatBool(allowed)).Inc()
	c.AdmissionDuration.WithLabelValues(tierID).Observe(latency.Seconds())
	if bypassed {
		c.BypassesTotal.WithLabelValues(reason).Inc()
	}
}

// OperationRecorded records one processed operation.
func (c *Collector) OperationRecorded(tierID, cat string, bytes int64) {
	c.OperationsTotal.WithLabelValues(tierID, cat).Inc()
	if bytes > 0 {
		c.BandwidthBytes.WithLabelValues(tierID).Add(float64(bytes))
	}
}

// WindowRolledOver records one ledger rollover.
func (c *Collector) WindowRolledOver() {
	c.Rollovers.Inc()
}

// CostPreviewed records a pricing preview ("cost" or "savings").
func (c *Collector) CostPreviewed(kind string) {
	c.CostPreviews.WithLabelValues(kind).Inc()
}

// LedgerError records a ledger failure.
func (c *Collector) LedgerError(op string) {
	c.LedgerErrors.WithLabelValues(op).Inc()
}

// AuditError records a failed audit write.
func (c *Collector) AuditError() {
	c.AuditErrors.Inc()
}

// RateLimited records a rate ceiling rejection.
func (c *Collector) RateLimited(tierID string) {
	c.RateLimitHits.WithLabelValues(tierID).Inc()
}

// ConfigReloaded records a config reload attempt.
func (c *Collector) ConfigReloaded(err error) {
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.SetToCurrentTime()
}

// StatusClass maps a status code to 2xx/3xx/4xx/5xx to bound cardinality.
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Nop discards all metrics.
type Nop struct{}

func (Nop) AdmissionDecided(string, string, bool, bool, time.Duration) {}
func (Nop) OperationRecorded(string, string, int64) {}
func (Nop) WindowRolledOver() {}
func (Nop) CostPreviewed(string) {}
func (Nop) LedgerError(string) {}
func (Nop) AuditError() {}
func (Nop) RateLimited(string) {}

// Ensure interface compliance.
var (
	_ ports.Metrics = (*Collector)(nil)
	_ ports.Metrics = Nop{}
)
