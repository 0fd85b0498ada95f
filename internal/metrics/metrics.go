package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	routingDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "glasswallet",
		Subsystem: "routing",
		Name:      "decisions_total",
		Help:      "Leads routed to an agent, by urgency tier.",
	}, []string{"urgency"})

	routingFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "glasswallet",
		Subsystem: "routing",
		Name:      "failures_total",
		Help:      "Routing attempts that produced no decision, by reason.",
	}, []string{"reason"})

	routingConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "glasswallet",
		Subsystem: "routing",
		Name:      "confidence",
		Help:      "Score of the recommended agent.",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	})

	routingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "glasswallet",
		Subsystem: "routing",
		Name:      "latency_seconds",
		Help:      "Time spent filtering and scoring one lead.",
		Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
	})

	rulesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "glasswallet",
		Subsystem: "routing",
		Name:      "rules_applied_total",
		Help:      "Rules whose selector replaced the candidate set.",
	}, []string{"rule"})

	aiScoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "glasswallet",
		Subsystem: "ai",
		Name:      "score_errors_total",
		Help:      "Lead scoring calls that failed and were routed without an AI score.",
	})
)

func ObserveDecision(urgency string, confidence float64, elapsed time.Duration) {
	routingDecisions.WithLabelValues(urgency).Inc()
	routingConfidence.Observe(confidence)
	routingLatency.Observe(elapsed.Seconds())
}

func ObserveFailure(reason string) {
	routingFailures.WithLabelValues(reason).Inc()
}

func ObserveRuleApplied(rule string) {
	rulesApplied.WithLabelValues(rule).Inc()
}

func ObserveAIError() {
	aiScoreErrors.Inc()
}
