// Package metrics defines the Prometheus metric collectors used by index
// nodes and exposes an HTTP handler for scraping. Every helper is safe to call
// on a nil *Metrics so components can run without instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for an index node.
type Metrics struct {
	MessagesDecodedTotal *prometheus.CounterVec
	OperationsTotal      *prometheus.CounterVec
	DispatchesTotal      *prometheus.CounterVec
	DispatchDuration     *prometheus.HistogramVec
	HandleOpensTotal     *prometheus.CounterVec
	MergesTotal          prometheus.Counter
	NewerMinorTotal      prometheus.Counter
	JournalWritesTotal   *prometheus.CounterVec
	TransportSendsTotal  *prometheus.CounterVec
	ShardDocCount        *prometheus.GaugeVec
	ActiveShards         prometheus.Gauge
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesDecodedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexrelay_messages_decoded_total",
				Help: "Messages decoded by result (ok, version_mismatch, unknown_kind, malformed, truncated).",
			},
			[]string{"result"},
		),
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexrelay_operations_total",
				Help: "Operations received by kind.",
			},
			[]string{"kind"},
		),
		DispatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexrelay_dispatches_total",
				Help: "Dispatch cycles by queue plan and status.",
			},
			[]string{"plan", "status"},
		),
		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "indexrelay_dispatch_duration_seconds",
				Help:    "Dispatch cycle latency in seconds, lock wait included.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"plan"},
		),
		HandleOpensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexrelay_handle_opens_total",
				Help: "Index handles opened by type (reader, writer).",
			},
			[]string{"handle"},
		),
		MergesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "indexrelay_segment_merges_total",
				Help: "Segment merges run by optimize work or post-write maintenance.",
			},
		),
		NewerMinorTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "indexrelay_newer_minor_messages_total",
				Help: "Messages accepted from a newer minor protocol version.",
			},
		),
		JournalWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexrelay_journal_writes_total",
				Help: "Apply journal inserts by status.",
			},
			[]string{"status"},
		),
		TransportSendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexrelay_transport_sends_total",
				Help: "Encoded messages sent by transport and status.",
			},
			[]string{"transport", "status"},
		),
		ShardDocCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "indexrelay_shard_document_count",
				Help: "Number of live documents per shard.",
			},
			[]string{"shard_id"},
		),
		ActiveShards: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexrelay_active_shards",
				Help: "Number of active index shards.",
			},
		),
	}

	reg.MustRegister(
		m.MessagesDecodedTotal,
		m.OperationsTotal,
		m.DispatchesTotal,
		m.DispatchDuration,
		m.HandleOpensTotal,
		m.MergesTotal,
		m.NewerMinorTotal,
		m.JournalWritesTotal,
		m.TransportSendsTotal,
		m.ShardDocCount,
		m.ActiveShards,
	)

	return m
}

func (m *Metrics) MessageDecoded(result string) {
	if m == nil {
		return
	}
	m.MessagesDecodedTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Operation(kind string) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) Dispatch(plan, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.DispatchesTotal.WithLabelValues(plan, status).Inc()
	m.DispatchDuration.WithLabelValues(plan).Observe(elapsed.Seconds())
}

func (m *Metrics) HandleOpened(handle string) {
	if m == nil {
		return
	}
	m.HandleOpensTotal.WithLabelValues(handle).Inc()
}

func (m *Metrics) Merged() {
	if m == nil {
		return
	}
	m.MergesTotal.Inc()
}

func (m *Metrics) NewerMinor() {
	if m == nil {
		return
	}
	m.NewerMinorTotal.Inc()
}

func (m *Metrics) JournalWrite(status string) {
	if m == nil {
		return
	}
	m.JournalWritesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) TransportSend(transport, status string) {
	if m == nil {
		return
	}
	m.TransportSendsTotal.WithLabelValues(transport, status).Inc()
}

func (m *Metrics) ShardDocs(shardID, docs int) {
	if m == nil {
		return
	}
	m.ShardDocCount.WithLabelValues(strconv.Itoa(shardID)).Set(float64(docs))
}

func (m *Metrics) SetActiveShards(n int) {
	if m == nil {
		return
	}
	m.ActiveShards.Set(float64(n))
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
