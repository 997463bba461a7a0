package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsHelpers(t *testing.T) {
	m := New()

	m.RecordJobCompletion("hunter", "completed", 2*time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsCompleted.WithLabelValues("hunter", "completed")))

	m.RecordRecord("hunter", "find_email", true)
	m.RecordRecord("hunter", "find_email", false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsProcessed.WithLabelValues("hunter", "find_email", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsProcessed.WithLabelValues("hunter", "find_email", "failure")))

	m.RecordProviderCall("hunter", "find_email", "ok", 250*time.Millisecond)
	m.RecordProviderCall("hunter", "find_email", "provider_error", time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("hunter", "find_email", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("hunter", "find_email", "provider_error")))

	m.JobsEnqueued.WithLabelValues("hunter", "find_email").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsEnqueued.WithLabelValues("hunter", "find_email")))

	m.CreditsUsed.WithLabelValues("hunter").Add(1.5)
	assert.Equal(t, 1.5, testutil.ToFloat64(m.CreditsUsed.WithLabelValues("hunter")))

	m.ActiveWorkers.Inc()
	m.QueueDepth.WithLabelValues("high").Set(7)
	m.SSEClients.Set(3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveWorkers))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.QueueDepth.WithLabelValues("high")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SSEClients))
}
