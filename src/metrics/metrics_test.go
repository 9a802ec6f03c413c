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

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveRun("ok")
	m.ObserveRun("ok")
	m.ObserveRun("halted")
	m.ObserveFetch("none", 120*time.Millisecond, true)
	m.ObserveFetch("transport", time.Second, false)
	m.ObserveTable(3, 2)
	m.SetSessions(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("halted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues("transport")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tlsFallbacks))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.tableRows))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tableColumns))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.sessions))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRun("ok")
	m.ObserveFetch("none", 0, false)
	m.ObserveTable(1, 1)
	m.SetSessions(1)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRun("ok")
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	res, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `apidash_pipeline_runs_total{outcome="ok"} 1`)
	assert.Contains(t, string(body), "apidash_fetch_duration_seconds")
}
