package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.EventReceived("order:created")
		m.EventRejected("order:created", "decode")
		m.UpdateDropped("order:status-changed")
		m.NotificationEnqueued("info")
		m.ConnectAttempt(true)
		m.SetConnected(true)
		m.PushRegistration(false)
		m.Refresh(true)
		m.SetOrders(3)
	})
}

func TestCounters(t *testing.T) {
	m := New()

	m.UpdateDropped("order:status-changed")
	m.UpdateDropped("order:status-changed")
	m.PushRegistration(true)
	m.SetConnected(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LedgerUpdatesDropped.WithLabelValues("order:status-changed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PushRegistrations.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connected))
}

func TestRouter(t *testing.T) {
	m := New()
	m.EventReceived("order:created")

	srv := httptest.NewServer(NewRouter(m))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `darkstore_realtime_events_total{event="order:created"} 1`)

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
