// Package metrics exports scheduler and notifier counters for Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shednotify/internal/esp"
	"shednotify/internal/eventbus"
)

const namespace = "shednotify"

// Metrics owns a private registry so tests and multiple instances don't
// collide on the global one. It satisfies engine.Observer.
type Metrics struct {
	reg *prometheus.Registry

	fetchTotal    *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	fetchInflight prometheus.Gauge
	fetchSkipped  prometheus.Counter
	alertsTotal   *prometheus.CounterVec
	notifyTotal   *prometheus.CounterVec
	busDropped    prometheus.GaugeFunc
}

// New builds the collectors. bus may be nil.
func New(bus eventbus.Bus) *Metrics {
	m := &Metrics{reg: prometheus.NewRegistry()}

	m.fetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_total",
		Help:      "Status fetches by result (ok or error kind).",
	}, []string{"result"})
	m.fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Duration of status fetches.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	m.fetchInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "fetch_inflight",
		Help:      "1 while a status fetch is outstanding.",
	})
	m.fetchSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_skipped_total",
		Help:      "Due fetches skipped because one was already in flight.",
	})
	m.alertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_total",
		Help:      "Approaching-shedding alerts fired by offset in minutes.",
	}, []string{"offset"})
	m.notifyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notify_total",
		Help:      "Notifier pipeline events by channel and outcome.",
	}, []string{"channel", "event"})

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.fetchTotal, m.fetchDuration, m.fetchInflight, m.fetchSkipped,
		m.alertsTotal, m.notifyTotal,
	)

	if bus != nil {
		m.busDropped = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bus_dropped_events",
			Help:      "Events dropped because a bus subscriber was full.",
		}, func() float64 { return float64(bus.Dropped()) })
		m.reg.MustRegister(m.busDropped)
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) FetchStarted() { m.fetchInflight.Set(1) }

func (m *Metrics) FetchFinished(kind esp.ErrorKind, took time.Duration) {
	m.fetchInflight.Set(0)
	result := string(kind)
	if result == "" {
		result = "ok"
	}
	m.fetchTotal.WithLabelValues(result).Inc()
	m.fetchDuration.Observe(took.Seconds())
}

func (m *Metrics) FetchSkipped() { m.fetchSkipped.Inc() }

func (m *Metrics) AlertFired(offset int) {
	m.alertsTotal.WithLabelValues(strconv.Itoa(offset)).Inc()
}

// NotifyEvent counts one notifier bus event, e.g. "notifier.sent".
func (m *Metrics) NotifyEvent(channel, event string) {
	m.notifyTotal.WithLabelValues(channel, event).Inc()
}
