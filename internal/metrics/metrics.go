package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry         *prometheus.Registry
	cycleRuns        *prometheus.CounterVec // total cycles
	cycleDuration    prometheus.Histogram   // time to run a cycle
	classifications  *prometheus.CounterVec // per record verdicts
	actions          *prometheus.CounterVec // per record action results
	inventoryRecords prometheus.Gauge       // declared records
	providerRequests *prometheus.CounterVec // dns provider requests
	ipLookups        *prometheus.CounterVec // public ip lookups
	badgerRequests   *prometheus.CounterVec // badgerdb requests
}

// Public interface for metrics operations. A nil *Metrics records nothing.
func (m *Metrics) IncCycleRun(status string) {
	if m == nil || !isValidCycleStatus(status) {
		return
	}
	m.cycleRuns.WithLabelValues(status).Inc()
}

func (m *Metrics) SetCycleDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(duration.Seconds())
}

func (m *Metrics) IncClassification(verdict string) {
	if m == nil || !isValidVerdict(verdict) {
		return
	}
	m.classifications.WithLabelValues(verdict).Inc()
}

func (m *Metrics) IncAction(action string) {
	if m == nil || !isValidAction(action) {
		return
	}
	m.actions.WithLabelValues(action).Inc()
}

func (m *Metrics) SetInventoryRecords(count int) {
	if m == nil {
		return
	}
	m.inventoryRecords.Set(float64(count))
}

func (m *Metrics) IncProviderRequest(operation string, success bool) {
	if m == nil || !isValidOperation(operation) {
		return
	}
	status := boolToResult(success)
	m.providerRequests.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) IncIPLookup(family string, success bool) {
	if m == nil || (family != "ipv4" && family != "ipv6") {
		return
	}
	status := boolToResult(success)
	m.ipLookups.WithLabelValues(family, status).Inc()
}

func (m *Metrics) IncBadgerRequest(operation string, success bool) {
	if m == nil || !isValidOperation(operation) {
		return
	}
	status := boolToResult(success)
	m.badgerRequests.WithLabelValues(operation, status).Inc()
}

// Validation helpers
func boolToResult(b bool) string {
	if b {
		return "success"
	}
	return "failure"
}

func isValidOperation(op string) bool {
	switch op {
	case "read", "update", "delete", "verify":
		return true
	}
	return false
}

func isValidCycleStatus(status string) bool {
	switch status {
	case "success", "failure", "cancelled":
		return true
	}
	return false
}

func isValidVerdict(verdict string) bool {
	switch verdict {
	case "matched", "outdated", "invalid":
		return true
	}
	return false
}

func isValidAction(action string) bool {
	switch action {
	case "noop", "updated", "failed", "pruned", "skipped":
		return true
	}
	return false
}

func New(register bool) *Metrics {
	registry := prometheus.NewRegistry()
	namespace := "cddns"

	m := &Metrics{
		registry: registry,

		cycleRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_runs_total",
			Help:      "Total number of reconciliation cycles",
		}, []string{"status"}),

		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of reconciliation cycles in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_classifications_total",
			Help:      "Total record classifications by verdict",
		}, []string{"verdict"}),

		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_actions_total",
			Help:      "Total record actions by result",
		}, []string{"action"}),

		inventoryRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inventory_records_current",
			Help:      "Records declared in the inventory",
		}),

		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total DNS provider requests",
		}, []string{"operation", "status"}),

		ipLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ip_lookups_total",
			Help:      "Total public IP lookups",
		}, []string{"family", "status"}),

		badgerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "badgerdb_requests_total",
			Help:      "Total badgerdb requests",
		}, []string{"operation", "status"}),
	}

	if register {
		registry.MustRegister(
			m.cycleRuns,
			m.cycleDuration,
			m.classifications,
			m.actions,
			m.inventoryRecords,
			m.providerRequests,
			m.ipLookups,
			m.badgerRequests,
		)
	}
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
