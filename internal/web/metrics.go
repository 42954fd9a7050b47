package web

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for trajectory runs. Exposed on
// GET /metrics via the default registry.
type Metrics struct {
	PreparesTotal   prometheus.Counter
	ExecutionsTotal *prometheus.CounterVec
	ScanPercent     prometheus.Gauge
}

// NewMetrics creates and registers the trajectory metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		PreparesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flyscan_prepares_total",
			Help: "Number of trajectory profiles prepared.",
		}),
		ExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flyscan_executions_total",
			Help: "Number of trajectory executions by result.",
		}, []string{"result"}),
		ScanPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flyscan_scan_percent",
			Help: "Controller-reported completion of the current scan (0-100).",
		}),
	}
	prometheus.MustRegister(m.PreparesTotal, m.ExecutionsTotal, m.ScanPercent)
	return m
}
