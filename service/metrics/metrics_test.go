package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRPCCall("eth_call", "success", "test", 0.1)
		m.RecordTransaction("payment", "success")
		m.RecordVaultRefresh(errors.New("boom"))
		m.RecordSplitLeg("error")
		m.RecordHTTPRequest("/health", "GET", 200, 0.01)
	})
}

func TestRecordTransaction(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordTransaction("payment", "success")
	m.RecordTransaction("payment", "success")
	m.RecordTransaction("deposit", "failed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transactionsSubmitted.WithLabelValues("payment", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transactionsSubmitted.WithLabelValues("deposit", "failed")))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	h := HTTPMetricsMiddleware(m, "/teapot")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teapot", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/teapot", "GET", "4xx")))
}
