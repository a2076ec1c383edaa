// Package metrics exposes Prometheus collectors for event ingestion,
// delivery, and streaming.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors the server updates on each operation.
type Metrics struct {
	IngestTotal    *prometheus.CounterVec
	DeleteTotal    *prometheus.CounterVec
	StreamSessions *prometheus.GaugeVec
	StreamSent     *prometheus.CounterVec

	registry *prometheus.Registry
}

// New builds and registers the collectors on a dedicated registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.IngestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peek",
		Name:      "ingest_total",
		Help:      "Number of ingested events by source and outcome",
	}, []string{"source", "outcome"})
	m.DeleteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peek",
		Name:      "delete_total",
		Help:      "Number of deleted events by source",
	}, []string{"source"})
	m.StreamSessions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "peek",
		Name:      "stream_sessions",
		Help:      "Open streaming connections by source",
	}, []string{"source"})
	m.StreamSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peek",
		Name:      "stream_sent_total",
		Help:      "Number of deliveries written to streaming connections by source",
	}, []string{"source"})

	m.registry.MustRegister(
		m.IngestTotal, m.DeleteTotal,
		m.StreamSessions, m.StreamSent,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
