package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/tickets", "POST", 201, time.Millisecond)
	m.RecordRequest("/api/tickets", "POST", 201, time.Millisecond)
	m.RecordError("/staff/tickets/:id", "GET", "FORBIDDEN")
	m.RecordClassification("timed_out")
	m.RecordDelivery("sent")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/api/tickets|POST|201"])
	assert.Equal(t, int64(1), snap.Errors["/staff/tickets/:id|GET|FORBIDDEN"])
	assert.Equal(t, int64(1), snap.Classification["timed_out"])
	assert.Equal(t, int64(1), snap.Deliveries["sent"])

	// snapshot is detached from live counters
	m.RecordClassification("timed_out")
	assert.Equal(t, int64(1), snap.Classification["timed_out"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, 0)
		m.RecordClassification("failed")
		_ = m.Snapshot()
	})
}
