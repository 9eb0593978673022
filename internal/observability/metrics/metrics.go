package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PortalMetrics exposes counters/histograms for the patient portal core.
type PortalMetrics struct {
	identityTotal      *prometheus.CounterVec
	transitionTotal    *prometheus.CounterVec
	completionTotal    *prometheus.CounterVec
	completionLatency  *prometheus.HistogramVec
	auditFailuresTotal *prometheus.CounterVec
	intentFailures     *prometheus.CounterVec
}

func NewPortalMetrics(reg prometheus.Registerer) *PortalMetrics {
	m := &PortalMetrics{
		identityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "identity",
			Name:      "resolutions_total",
			Help:      "Patient identity resolutions by outcome",
		}, []string{"outcome"}),
		transitionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Patient-initiated appointment lifecycle requests",
		}, []string{"action", "outcome"}),
		completionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "assistant",
			Name:      "completions_total",
			Help:      "Completion gateway calls by outcome",
		}, []string{"provider", "outcome"}),
		completionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "assistant",
			Name:      "completion_latency_seconds",
			Help:      "Latency of completion gateway calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		auditFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "audit",
			Name:      "write_failures_total",
			Help:      "Audit records that could not be written",
		}, []string{"direction"}),
		intentFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "appointments",
			Name:      "intent_delivery_failures_total",
			Help:      "Lifecycle intents that could not be handed to the clinic side",
		}, []string{"sink"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.identityTotal,
		m.transitionTotal,
		m.completionTotal,
		m.completionLatency,
		m.auditFailuresTotal,
		m.intentFailures,
	)
	return m
}

func (m *PortalMetrics) ObserveIdentity(outcome string) {
	if m == nil {
		return
	}
	m.identityTotal.WithLabelValues(outcome).Inc()
}

func (m *PortalMetrics) ObserveTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.transitionTotal.WithLabelValues(action, outcome).Inc()
}

func (m *PortalMetrics) ObserveCompletion(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.completionTotal.WithLabelValues(provider, outcome).Inc()
	m.completionLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (m *PortalMetrics) ObserveAuditFailure(direction string) {
	if m == nil {
		return
	}
	m.auditFailuresTotal.WithLabelValues(direction).Inc()
}

func (m *PortalMetrics) ObserveIntentFailure(sink string) {
	if m == nil {
		return
	}
	m.intentFailures.WithLabelValues(sink).Inc()
}
