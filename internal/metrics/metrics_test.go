package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterToleratesDoubleRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestObserveOperatorCountsOutcomes(t *testing.T) {
	t.Parallel()

	before := testutil.ToFloat64(operatorExecutionsTotal.WithLabelValues("MetricsTestOp", OutcomeError))
	ObserveOperator("MetricsTestOp", time.Millisecond, errors.New("boom"))
	ObserveOperator("MetricsTestOp", -time.Second, nil)

	require.Equal(t, before+1, testutil.ToFloat64(operatorExecutionsTotal.WithLabelValues("MetricsTestOp", OutcomeError)))
	require.Equal(t, 1.0, testutil.ToFloat64(operatorExecutionsTotal.WithLabelValues("MetricsTestOp", OutcomeSuccess)))
}

func TestObserveBranchNormalisesUnknownOutcome(t *testing.T) {
	t.Parallel()

	before := testutil.ToFloat64(forkJoinBranchesTotal.WithLabelValues(OutcomeError))
	ObserveBranch("exploded")
	require.Equal(t, before+1, testutil.ToFloat64(forkJoinBranchesTotal.WithLabelValues(OutcomeError)))
}
