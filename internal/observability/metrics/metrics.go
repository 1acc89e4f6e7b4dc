package metrics

import "github.com/prometheus/client_golang/prometheus"

// AppointmentMetrics exposes counters/gauges for the appointment store and live feeds.
type AppointmentMetrics struct {
	operationsTotal   *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	liveSubscriptions *prometheus.GaugeVec
	messagesTotal     *prometheus.CounterVec
}

func NewAppointmentMetrics(reg prometheus.Registerer) *AppointmentMetrics {
	m := &AppointmentMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "appointments",
			Name:      "operations_total",
			Help:      "Storage access operations by outcome",
		}, []string{"operation", "result"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Lifecycle status transitions",
		}, []string{"from", "to"}),
		liveSubscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dental",
			Subsystem: "appointments",
			Name:      "live_subscriptions",
			Help:      "Open live subscriptions",
		}, []string{"scope"}),
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Chat messages appended by sender",
		}, []string{"sender"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.transitionsTotal, m.liveSubscriptions, m.messagesTotal)
	return m
}

// ObserveOperation counts one store-facing call. result is "ok" or an error class.
func (m *AppointmentMetrics) ObserveOperation(operation, result string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, result).Inc()
}

func (m *AppointmentMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *AppointmentMetrics) ObserveMessage(sender string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(sender).Inc()
}

func (m *AppointmentMetrics) SubscriptionOpened(scope string) {
	if m == nil {
		return
	}
	m.liveSubscriptions.WithLabelValues(scope).Inc()
}

func (m *AppointmentMetrics) SubscriptionClosed(scope string) {
	if m == nil {
		return
	}
	m.liveSubscriptions.WithLabelValues(scope).Dec()
}
