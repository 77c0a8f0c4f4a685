package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExposed(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Orders.Inc()
	m.Notifications.WithLabelValues("failed").Inc()
	m.Requests.WithLabelValues("orders", "200").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Orders))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("failed")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "telegram_shop_orders_submitted_total 1")
	assert.Contains(t, string(body), `telegram_shop_http_requests_total{handler="orders",status="200"} 1`)
}

func TestNewTwiceOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
