package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordSubmissionIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(submissionsTotal.WithLabelValues("survey"))
	RecordSubmission("survey")
	after := testutil.ToFloat64(submissionsTotal.WithLabelValues("survey"))

	assert.Equal(t, before+1, after)
}

func TestRecordRewardSelectedIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(rewardsSelectedTotal)
	RecordRewardSelected()
	after := testutil.ToFloat64(rewardsSelectedTotal)

	assert.Equal(t, before+1, after)
}

func TestObserveRequestRecordsDurationAndCount(t *testing.T) {
	before := testutil.ToFloat64(requestsTotal.WithLabelValues("GET", "/api/health", "2xx"))
	ObserveRequest("GET", "/api/health", "2xx", 0.01)
	after := testutil.ToFloat64(requestsTotal.WithLabelValues("GET", "/api/health", "2xx"))

	assert.Equal(t, before+1, after)
}
