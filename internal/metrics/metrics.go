package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels operators and branches that completed.
	OutcomeSuccess = "success"
	// OutcomeError labels operators and branches that failed.
	OutcomeError = "error"
	// OutcomeCanceled labels fork-join branches abandoned after a sibling
	// failure or the shared timeout.
	OutcomeCanceled = "canceled"
)

var (
	operatorExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "detectflow",
			Name:      "operator_executions_total",
			Help:      "Total number of plan node executions, partitioned by operator type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	operatorDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "detectflow",
			Name:      "operator_duration_seconds",
			Help:      "Plan node execution latency in seconds.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"type"},
	)

	forkJoinBranchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "detectflow",
			Name:      "forkjoin_branches_total",
			Help:      "Total number of fork-join branches, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register attaches detectflow collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		operatorExecutionsTotal,
		operatorDurationSeconds,
		forkJoinBranchesTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveOperator records one plan node execution.
func ObserveOperator(operatorType string, duration time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	operatorExecutionsTotal.WithLabelValues(operatorType, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	operatorDurationSeconds.WithLabelValues(operatorType).Observe(duration.Seconds())
}

// ObserveBranch records the outcome of one fork-join branch.
func ObserveBranch(outcome string) {
	switch outcome {
	case OutcomeSuccess, OutcomeError, OutcomeCanceled:
	default:
		outcome = OutcomeError
	}
	forkJoinBranchesTotal.WithLabelValues(outcome).Inc()
}
