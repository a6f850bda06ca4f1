package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RequestCreated()
		m.StatusChanged("PENDING", "PROCESSING", false)
		m.MessagePosted(true)
		m.StoreError("create_request", "not_found")
		m.CatalogCache("hit")
	})
}

func TestCounters(t *testing.T) {
	m := New()
	m.RequestCreated()
	m.RequestCreated()
	m.StatusChanged("PENDING", "PROCESSING", false)
	m.MessagePosted(false)
	m.MessagePosted(true)
	m.MessagePosted(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statusTransitions.WithLabelValues("PENDING", "PROCESSING", "false")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.messagesPosted.WithLabelValues("staff")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/agencies", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/agencies", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `request_service_http_requests_total{method="GET",route="/api/agencies",status="200"} 1`))
}
