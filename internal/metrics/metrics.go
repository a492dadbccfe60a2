// Package metrics exposes Prometheus counters for the sync path.
//
// All methods are safe on a nil *Metrics so components can run without
// instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics owns a registry and the sync counters registered on it.
type Metrics struct {
	Registry *prometheus.Registry

	EventsReceived       *prometheus.CounterVec
	EventsRejected       *prometheus.CounterVec
	LedgerUpdatesDropped *prometheus.CounterVec
	Notifications        *prometheus.CounterVec
	Connects             *prometheus.CounterVec
	PushRegistrations    *prometheus.CounterVec
	Refreshes            *prometheus.CounterVec
	Connected            prometheus.Gauge
	Orders               prometheus.Gauge
}

// New creates and registers the sync metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		EventsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "darkstore_realtime_events_total",
				Help: "Realtime events received, by event name",
			},
			[]string{"event"},
		),
		EventsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "darkstore_realtime_events_rejected_total",
				Help: "Realtime events skipped because they could not be decoded or validated",
			},
			[]string{"event", "reason"},
		),
		LedgerUpdatesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "darkstore_ledger_updates_dropped_total",
				Help: "Order updates dropped because the order is not in the ledger",
			},
			[]string{"event"},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "darkstore_notifications_total",
				Help: "Notifications enqueued, by type",
			},
			[]string{"type"},
		),
		Connects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "darkstore_realtime_connects_total",
				Help: "Realtime dial attempts, by result",
			},
			[]string{"result"},
		),
		PushRegistrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "darkstore_push_registrations_total",
				Help: "Push token backend registrations, by result",
			},
			[]string{"result"},
		),
		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "darkstore_order_refreshes_total",
				Help: "Full order refreshes, by result",
			},
			[]string{"result"},
		),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "darkstore_realtime_connected",
			Help: "1 while the realtime connection is up",
		}),
		Orders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "darkstore_ledger_orders",
			Help: "Orders currently held in the ledger",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.EventsReceived,
		m.EventsRejected,
		m.LedgerUpdatesDropped,
		m.Notifications,
		m.Connects,
		m.PushRegistrations,
		m.Refreshes,
		m.Connected,
		m.Orders,
	)
	return m
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (m *Metrics) EventReceived(event string) {
	if m == nil {
		return
	}
	m.EventsReceived.WithLabelValues(event).Inc()
}

func (m *Metrics) EventRejected(event, reason string) {
	if m == nil {
		return
	}
	m.EventsRejected.WithLabelValues(event, reason).Inc()
}

func (m *Metrics) UpdateDropped(event string) {
	if m == nil {
		return
	}
	m.LedgerUpdatesDropped.WithLabelValues(event).Inc()
}

func (m *Metrics) NotificationEnqueued(typ string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(typ).Inc()
}

func (m *Metrics) ConnectAttempt(ok bool) {
	if m == nil {
		return
	}
	m.Connects.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.Connected.Set(1)
		return
	}
	m.Connected.Set(0)
}

func (m *Metrics) PushRegistration(ok bool) {
	if m == nil {
		return
	}
	m.PushRegistrations.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) Refresh(ok bool) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) SetOrders(n int) {
	if m == nil {
		return
	}
	m.Orders.Set(float64(n))
}
