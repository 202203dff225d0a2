package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recording(t *testing.T) {
	m := New()

	m.InstanceCreated("people")
	m.InstanceCreated("people")
	m.InstanceCompleted("people")
	m.StepTransition("in_progress", "completed")
	m.TriggerOutcome("person.created", "triggered")
	m.ObserveInstantiate(5 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.InstancesCreated.WithLabelValues("people")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InstancesCompleted.WithLabelValues("people")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepTransitions.WithLabelValues("in_progress", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TriggerOutcomes.WithLabelValues("person.created", "triggered")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.InstantiateLatency))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.InstanceCreated("assets")
	m.ObserveHTTP("GET", "/health", "200", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `workflow_instances_created_total{module="assets"} 1`)
	assert.Contains(t, string(body), "workflow_http_requests_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.InstanceCreated("people")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.InstancesCreated.WithLabelValues("people")))
}
