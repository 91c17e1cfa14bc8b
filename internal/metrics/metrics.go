package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"airdash/internal/epoch"
)

const namespace = "airdash"

// Metrics holds the dashboard's gauges and counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	CurrentEpoch     prometheus.Gauge
	ProgressPercent  prometheus.Gauge
	TimeLeftSeconds  prometheus.Gauge
	ActiveAPYPercent prometheus.Gauge
	PriceUSD         prometheus.Gauge
	Holders          prometheus.Gauge
	Transitions      prometheus.Counter
	FetchFailures    *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CurrentEpoch: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "current_epoch",
			Help: "Epoch number active at the last tick.",
		}),
		ProgressPercent: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "epoch_progress_percent",
			Help: "Rounded progress through the current epoch.",
		}),
		TimeLeftSeconds: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "epoch_time_left_seconds",
			Help: "Time remaining in the current epoch.",
		}),
		ActiveAPYPercent: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_apy_percent",
			Help: "APY of the current epoch.",
		}),
		PriceUSD: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "price_usd",
			Help: "Last fetched token price in USD.",
		}),
		Holders: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "holders",
			Help: "Last fetched holder count.",
		}),
		Transitions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "epoch_transitions_total",
			Help: "Epoch changes observed by the ticker.",
		}),
		FetchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "source_fetch_failures_total",
			Help: "Failed polls of external data sources.",
		}, []string{"source"}),
	}
}

// ObserveClock records a clock state and the APY of its epoch.
func (m *Metrics) ObserveClock(st epoch.State, apy decimal.Decimal) {
	if m == nil {
		return
	}
	m.CurrentEpoch.Set(float64(st.CurrentEpoch))
	m.ProgressPercent.Set(float64(st.ProgressPercent))
	m.TimeLeftSeconds.Set(st.TimeLeft.Seconds())
	m.ActiveAPYPercent.Set(apy.InexactFloat64())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
