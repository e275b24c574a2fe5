package validation

import (
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	sserr "github.com/StricklySoft/stricklysoft-security/pkg/errors"
)

// metricsTestCounters reads the outcome and code counters.
func metricsTestCounters(t *testing.T, outcome string, code sserr.Code) [2]float64 {
	t.Helper()
	return [2]float64{
		promtest.ToFloat64(resultsTotal.WithLabelValues(outcome)),
		promtest.ToFloat64(violationsTotal.WithLabelValues(string(code))),
	}
}
