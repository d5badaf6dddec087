package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commutewise/console/internal/metrics"
)

func TestCollector_Counters(t *testing.T) {
	c := metrics.NewCollector(func() int { return 2 })

	c.WorkflowTransition("idle", "editing_route")
	c.WorkflowTransition("idle", "editing_route")
	c.GeometryRequest("error")
	c.SessionLockout()
	c.OptimisticRollback()
	c.Deleted("stop")
	c.AuditFailure()
	c.AuditBroker(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Transitions.WithLabelValues("idle", "editing_route")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.GeometryRequests.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Lockouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Rollbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Deletions.WithLabelValues("stop")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.AuditFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.AuditBrokerUp))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.NoticeConnections))
}

func TestCollector_Handler(t *testing.T) {
	c := metrics.NewCollector(nil)
	c.SessionLockout()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "console_session_lockouts_total 1")
}
