// Package metrics holds the Prometheus collectors shared by the bus, the
// socket endpoint and the status aggregator. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "statusd"

type Metrics struct {
	BusPublished      *prometheus.CounterVec
	BusHandlerPanics  *prometheus.CounterVec
	DecodeErrors      *prometheus.CounterVec
	SocketConnections prometheus.Counter
	SocketRejected    *prometheus.CounterVec
	ActiveMessages    prometheus.Gauge
	Evictions         prometheus.Counter
}

// New creates the collectors and registers them with reg. Collectors that are
// already registered (e.g. by an earlier New against the default registry)
// are reused.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BusPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "published_total",
			Help:      "Payloads published on the in-process bus",
		}, []string{"topic"}),
		BusHandlerPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "handler_panics_total",
			Help:      "Subscriber handlers that panicked and were recovered",
		}, []string{"topic"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Event payloads dropped because they failed to decode",
		}, []string{"topic"}),
		SocketConnections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "socket",
			Name:      "connections_total",
			Help:      "Connections accepted on the ingestion socket",
		}),
		SocketRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "socket",
			Name:      "rejected_total",
			Help:      "Socket messages dropped, by reason",
		}, []string{"reason"}),
		ActiveMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "active_messages",
			Help:      "Entries in the active status set, excluding the placeholder",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "evictions_total",
			Help:      "Status entries removed by the TTL sweep",
		}),
	}
	if reg == nil {
		return m
	}

	m.BusPublished = register(reg, m.BusPublished)
	m.BusHandlerPanics = register(reg, m.BusHandlerPanics)
	m.DecodeErrors = register(reg, m.DecodeErrors)
	m.SocketConnections = register(reg, m.SocketConnections)
	m.SocketRejected = register(reg, m.SocketRejected)
	m.ActiveMessages = register(reg, m.ActiveMessages)
	m.Evictions = register(reg, m.Evictions)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) Published(topic string) {
	if m != nil {
		m.BusPublished.WithLabelValues(topic).Inc()
	}
}

func (m *Metrics) HandlerPanic(topic string) {
	if m != nil {
		m.BusHandlerPanics.WithLabelValues(topic).Inc()
	}
}

func (m *Metrics) DecodeError(topic string) {
	if m != nil {
		m.DecodeErrors.WithLabelValues(topic).Inc()
	}
}

func (m *Metrics) SocketAccepted() {
	if m != nil {
		m.SocketConnections.Inc()
	}
}

func (m *Metrics) SocketReject(reason string) {
	if m != nil {
		m.SocketRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) SetActive(n int) {
	if m != nil {
		m.ActiveMessages.Set(float64(n))
	}
}

func (m *Metrics) Evicted(n int) {
	if m != nil && n > 0 {
		m.Evictions.Add(float64(n))
	}
}
