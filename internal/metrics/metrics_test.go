package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollectorMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCollectorMetrics("solar", reg)

	m.PollsTotal.WithLabelValues("success").Inc()
	m.RecordsWritten.Add(21)
	m.TopicsRegistered.Set(21)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollsTotal.WithLabelValues("success")))
	assert.Equal(t, 21.0, testutil.ToFloat64(m.RecordsWritten))

	n, err := testutil.GatherAndCount(reg, "solar_collector_records_written_total", "solar_collector_topics")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNewCollectorMetricsNilRegistry(t *testing.T) {
	m := NewCollectorMetrics("solar", nil)
	m.ReadRetries.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReadRetries))
}

func TestPerPanelLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewCollectorMetrics("solar", prometheus.WrapRegistererWith(prometheus.Labels{"panel": "alder"}, reg))
	b := NewCollectorMetrics("solar", prometheus.WrapRegistererWith(prometheus.Labels{"panel": "elm"}, reg))
	a.TopicsRegistered.Set(21)
	b.TopicsRegistered.Set(22)

	n, err := testutil.GatherAndCount(reg, "solar_collector_topics")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestHandler(t *testing.T) {
	reg := NewRegistry()
	NewCollectorMetrics("solar", reg).PollsTotal.WithLabelValues("error").Inc()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `solar_collector_polls_total{status="error"} 1`))
	assert.Contains(t, string(body), "go_goroutines")
}
