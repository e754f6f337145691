// Package metrics exposes the state of the incident mirror to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sync results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the collectors of one process on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	incidents *prometheus.GaugeVec
	syncedAt  prometheus.Gauge
	syncs     *prometheus.CounterVec
	runs      *prometheus.CounterVec
}

// New registers the collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{reg: prometheus.NewRegistry()}
	m.incidents = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "vigil",
		Name:      "incidents_total",
		Help:      "Number of incidents in the master set, by reporting year",
	}, []string{"year"})
	m.syncedAt = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vigil",
		Subsystem: "store",
		Name:      "synced_timestamp_seconds",
		Help:      "Unix timestamp of the last successful mirror sync",
	})
	m.syncs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vigil",
		Subsystem: "store",
		Name:      "syncs_total",
		Help:      "Mirror syncs by result",
	}, []string{"result"})
	m.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vigil",
		Name:      "runs_observed_total",
		Help:      "Update runs seen in the run history, by status",
	}, []string{"status"})

	m.reg.MustRegister(
		m.incidents, m.syncedAt, m.syncs, m.runs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveSync records one sync attempt. byYear replaces the incident gauge
// on success.
func (m *Metrics) ObserveSync(byYear map[string]int, at time.Time, err error) {
	if err != nil {
		m.syncs.WithLabelValues(ResultError).Inc()
		return
	}
	m.syncs.WithLabelValues(ResultOK).Inc()
	m.syncedAt.Set(float64(at.Unix()))
	m.incidents.Reset()
	for year, n := range byYear {
		m.incidents.WithLabelValues(year).Set(float64(n))
	}
}

// ObserveRun counts a run by status.
func (m *Metrics) ObserveRun(status string) {
	m.runs.WithLabelValues(status).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
