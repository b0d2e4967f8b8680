package configuration

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks lifecycle and evaluation activity.
//
// Metrics:
//   - <ns>_configuration_operations_total: Lifecycle operations by operation and outcome
//   - <ns>_configuration_selections_total: Selection calls by outcome (matched, no_match, error)
//   - <ns>_configuration_rule_evaluations_total: Rule evaluations by resulting action
//   - <ns>_configuration_rule_evaluation_errors_total: Rules that failed to evaluate
//   - <ns>_configuration_evaluation_duration_seconds: Duration of selection and rule evaluation
//
// A nil *Metrics records nothing.
type Metrics struct {
	operationsTotal      *prometheus.CounterVec
	selectionsTotal      *prometheus.CounterVec
	ruleEvaluationsTotal *prometheus.CounterVec
	ruleErrorsTotal      prometheus.Counter
	evaluationDuration   *prometheus.HistogramVec
}

// NewMetrics creates and registers the metrics with registry
func NewMetrics(namespace string, registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "configuration",
				Name:      "operations_total",
				Help:      "Total number of configuration lifecycle operations",
			},
			[]string{"operation", "outcome"},
		),

		selectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "configuration",
				Name:      "selections_total",
				Help:      "Total number of active configuration selections",
			},
			[]string{"outcome"},
		),

		ruleEvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "configuration",
				Name:      "rule_evaluations_total",
				Help:      "Total number of rule set evaluations by resulting action",
			},
			[]string{"action"},
		),

		ruleErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "configuration",
				Name:      "rule_evaluation_errors_total",
				Help:      "Total number of individual rules that failed to evaluate",
			},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "configuration",
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of configuration selection and rule evaluation in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 16), // 10µs to ~330ms
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.operationsTotal,
		m.selectionsTotal,
		m.ruleEvaluationsTotal,
		m.ruleErrorsTotal,
		m.evaluationDuration,
	)

	return m
}

// RecordOperation counts one lifecycle operation. outcome is "ok", "not_found", "invalid" or "error".
func (m *Metrics) RecordOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordSelection counts one selection and its duration
func (m *Metrics) RecordSelection(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.selectionsTotal.WithLabelValues(outcome).Inc()
	m.evaluationDuration.WithLabelValues("selection").Observe(duration.Seconds())
}

// RecordRuleEvaluation counts one rule set evaluation. An empty action is recorded as "none".
func (m *Metrics) RecordRuleEvaluation(action string, ruleErrors int, duration time.Duration) {
	if m == nil {
		return
	}
	if action == "" {
		action = "none"
	}
	m.ruleEvaluationsTotal.WithLabelValues(action).Inc()
	m.ruleErrorsTotal.Add(float64(ruleErrors))
	m.evaluationDuration.WithLabelValues("rules").Observe(duration.Seconds())
}
