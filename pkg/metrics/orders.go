package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics tracks order lifecycle activity.
type OrderMetrics struct {
	transitions *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	created     prometheus.Counter
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Applied order status transitions.",
	}, []string{"from", "to"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_rejected_total",
		Help: "Order transitions rejected before persistence.",
	}, []string{"action", "reason"})
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders created at checkout.",
	})
	reg.MustRegister(transitions, rejected, created)
	return &OrderMetrics{transitions: transitions, rejected: rejected, created: created}
}

func (m *OrderMetrics) ObserveTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *OrderMetrics) ObserveRejected(action, reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(action), normalizeLabel(reason)).Inc()
}

func (m *OrderMetrics) AddCreated(n int) {
	if m == nil || m.created == nil || n <= 0 {
		return
	}
	m.created.Add(float64(n))
}
