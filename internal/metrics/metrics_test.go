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

func TestObserveOperation(t *testing.T) {
	m := New()

	m.ObserveOperation("filter", OutcomeOK, 5*time.Millisecond)
	m.ObserveOperation("filter", OutcomeOK, 7*time.Millisecond)
	m.ObserveOperation("filter", OutcomeRejected, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("filter", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("filter", OutcomeRejected)))
}

func TestParseGauge(t *testing.T) {
	m := New()

	m.ParseStarted()
	m.ParseStarted()
	m.ParseFinished()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.parsing))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveOperation("load", OutcomeOK, time.Second)
		m.ObserveRows("load", 10)
		m.SessionCleared("explicit")
		m.SessionsExpired(3)
		m.ParseStarted()
		m.ParseFinished()
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SessionCleared("load_failed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `datacleaner_sessions_cleared_total{reason="load_failed"} 1`))
}

func TestSessionsExpired(t *testing.T) {
	m := New()

	m.SessionsExpired(3)
	m.SessionsExpired(0)
	m.SessionCleared("expired")

	assert.Equal(t, 4.0, testutil.ToFloat64(m.cleared.WithLabelValues("expired")))
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.SessionCleared("explicit")

	n, err := testutil.GatherAndCount(a.Registry(), "datacleaner_sessions_cleared_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = testutil.GatherAndCount(b.Registry(), "datacleaner_sessions_cleared_total")
	require.NoError(t, err)
	assert.Zero(t, n)
}
