package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("GET", 200, time.Millisecond)
	m.TokenRefresh(true)
	m.CacheLookup("hit")
	m.FetchRetry()
	m.Mutation("committed")
	assert.Nil(t, m.Registry())
}

func TestCountersIncrement(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", 200, 10*time.Millisecond)
	m.ObserveRequest("GET", 200, 10*time.Millisecond)
	m.ObserveRequest("PUT", 0, time.Millisecond)
	m.Mutation("rolled_back")
	m.TokenRefresh(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("PUT", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("rolled_back")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokenRefreshes.WithLabelValues("failed")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.CacheLookup("miss")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `toolroom_query_cache_lookups_total{result="miss"} 1`))
}
