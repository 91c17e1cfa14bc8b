package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"airdash/internal/epoch"
)

func TestObserveClock(t *testing.T) {
	m := New()
	m.ObserveClock(epoch.State{CurrentEpoch: 4, ProgressPercent: 33, TimeLeft: 48 * time.Hour}, decimal.RequireFromString("15.6"))

	require.Equal(t, float64(4), testutil.ToFloat64(m.CurrentEpoch))
	require.Equal(t, float64(33), testutil.ToFloat64(m.ProgressPercent))
	require.Equal(t, float64(48*3600), testutil.ToFloat64(m.TimeLeftSeconds))
	require.InDelta(t, 15.6, testutil.ToFloat64(m.ActiveAPYPercent), 1e-9)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveClock(epoch.State{}, decimal.Zero)
}

func TestHandler(t *testing.T) {
	m := New()
	m.FetchFailures.WithLabelValues("market").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `airdash_source_fetch_failures_total{source="market"} 1`)
}
