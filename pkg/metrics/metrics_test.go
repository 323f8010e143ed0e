package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstancesDoNotCollide(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordSOSCreated("medical")
	a.RecordSOSCreated("medical")
	b.RecordSOSCreated("medical")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.sosCreated.WithLabelValues("medical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.sosCreated.WithLabelValues("medical")))
}

func TestDomainCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordLocation("high-risk")
	m.RecordHighRiskWarning()
	m.RecordSOSTransition("active", "acknowledged")
	m.RecordNotification("warning")
	m.RecordRealtime("new_sos_alert", 3)
	m.RecordRealtime("new_sos_alert", 0)
	m.SetRealtimeSessions(4)
	m.RecordSnapshot(time.Millisecond, assert.AnError)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.locationsRecorded.WithLabelValues("high-risk")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.highRiskWarnings))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sosTransitions.WithLabelValues("active", "acknowledged")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.realtimeDelivered.WithLabelValues("new_sos_alert")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.realtimeSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.snapshotFailures))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	r := gin.New()
	r.Use(Middleware(m))
	r.GET("/api/sos/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sos/abc", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/sos/:id", "200")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "safeyatra_http_requests_total")
}

func TestSystemMonitorCollect(t *testing.T) {
	m := NewMetrics()
	sm := NewSystemMonitor(2, "", m)
	sm.Gauge("sessions", func(ctx context.Context) float64 { return 7 })

	assert.NotNil(t, sm.GetSystemSummary())
	assert.Nil(t, sm.GetLatestStats())

	for i := 0; i < 3; i++ {
		sm.Collect(context.Background())
	}
	latest := sm.GetLatestStats()
	require.NotNil(t, latest)
	assert.Equal(t, 7.0, latest.Gauges["sessions"])
	assert.Greater(t, latest.Runtime.Goroutines, 0)
	assert.Len(t, sm.GetStatsHistory(0), 2)
	assert.Len(t, sm.GetStatsHistory(1), 1)
	assert.Greater(t, testutil.ToFloat64(m.systemGoroutines), 0.0)
}
