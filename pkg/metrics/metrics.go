package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	AuditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audits_total",
			Help: "Total number of completed audits by outcome (count)",
		},
		[]string{"outcome"},
	)

	AuditDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_duration_ms",
			Help:    "End-to-end audit duration in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 90000},
		},
		[]string{"outcome"},
	)

	ReasoningCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reasoning_call_duration_ms",
			Help:    "Duration of external reasoning calls in milliseconds",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 90000},
		},
		[]string{"stage", "status"},
	)

	ReasoningFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reasoning_failures_total",
			Help: "Total number of failed compliance reasoning calls (count)",
		},
		[]string{"reason"},
	)

	InterpretationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interpretation_failures_total",
			Help: "Total number of failed rule interpretations (count)",
		},
		[]string{"reason"},
	)

	RuleCoverageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_coverage_total",
			Help: "Number of times each rule was included in an evaluation (count)",
		},
		[]string{"rule_id"},
	)

	ActiveRules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_rules",
			Help: "Number of active compliance rules (count)",
		},
	)

	DecisionEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decision_events_total",
			Help: "Total number of decision events published to the broker (count)",
		},
		[]string{"status"},
	)

	DecisionCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decision_cache_total",
			Help: "Latest-decision cache lookups (count)",
		},
		[]string{"result"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"operation", "status"},
	)
)

func RegisterAuditMetrics() {
	prometheus.MustRegister(
		AuditsTotal,
		AuditDuration,
		ReasoningCallDuration,
		ReasoningFailuresTotal,
		InterpretationFailuresTotal,
		RuleCoverageTotal,
		ActiveRules,
		DecisionEventsTotal,
		DecisionCacheTotal,
		DatabaseQueriesTotal,
	)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(
		CircuitBreakerState,
		CircuitBreakerRequests,
		CircuitBreakerFailures,
	)
}

func RegisterRateLimitMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func IncAudit(outcome string) {
	AuditsTotal.WithLabelValues(outcome).Inc()
}

func ObserveAuditDuration(outcome string, duration time.Duration) {
	AuditDuration.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

func ObserveReasoningCall(stage, status string, duration time.Duration) {
	ReasoningCallDuration.WithLabelValues(stage, status).Observe(float64(duration.Milliseconds()))
}

func IncReasoningFailure(reason string) {
	ReasoningFailuresTotal.WithLabelValues(reason).Inc()
}

func IncInterpretationFailure(reason string) {
	InterpretationFailuresTotal.WithLabelValues(reason).Inc()
}

func IncRuleCoverage(ruleID string) {
	RuleCoverageTotal.WithLabelValues(ruleID).Inc()
}

func IncDecisionEvent(status string) {
	DecisionEventsTotal.WithLabelValues(status).Inc()
}

func IncDecisionCache(result string) {
	DecisionCacheTotal.WithLabelValues(result).Inc()
}

func IncDatabaseQuery(operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(operation, status).Inc()
}
