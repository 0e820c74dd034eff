package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the booking lifecycle.
type BookingMetrics struct {
	createdTotal       *prometheus.CounterVec
	conflictsTotal     prometheus.Counter
	transitionsTotal   *prometheus.CounterVec
	notifyFailureTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		createdTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spa",
			Subsystem: "bookings",
			Name:      "created_total",
			Help:      "Bookings created, by whether a staff member was assigned",
		}, []string{"staff_assigned"}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spa",
			Subsystem: "bookings",
			Name:      "slot_conflicts_total",
			Help:      "Booking or assignment requests rejected for overlapping an active slot",
		}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spa",
			Subsystem: "bookings",
			Name:      "transitions_total",
			Help:      "Lifecycle transitions applied",
		}, []string{"from", "to"}),
		notifyFailureTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spa",
			Subsystem: "bookings",
			Name:      "notification_failures_total",
			Help:      "Best-effort notifications that failed",
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.createdTotal, m.conflictsTotal, m.transitionsTotal, m.notifyFailureTotal)
	return m
}

func (m *BookingMetrics) ObserveCreated(staffAssigned bool) {
	if m == nil {
		return
	}
	m.createdTotal.WithLabelValues(boolLabel(staffAssigned)).Inc()
}

func (m *BookingMetrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflictsTotal.Inc()
}

func (m *BookingMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *BookingMetrics) ObserveNotifyFailure(kind string) {
	if m == nil {
		return
	}
	m.notifyFailureTotal.WithLabelValues(kind).Inc()
}

// PaymentMetrics exposes counters/histograms for checkout and webhook reconciliation.
type PaymentMetrics struct {
	checkoutTotal   *prometheus.CounterVec
	webhookTotal    *prometheus.CounterVec
	reconciledTotal prometheus.Counter
	unsettledTotal  prometheus.Counter
	webhookLatency  prometheus.Histogram
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	m := &PaymentMetrics{
		checkoutTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spa",
			Subsystem: "payments",
			Name:      "checkout_total",
			Help:      "Checkout initiations by outcome",
		}, []string{"outcome"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spa",
			Subsystem: "payments",
			Name:      "webhook_total",
			Help:      "Gateway webhooks by outcome",
		}, []string{"outcome"}),
		reconciledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spa",
			Subsystem: "payments",
			Name:      "bookings_reconciled_total",
			Help:      "Bookings moved to checked-out by a confirmed payment",
		}),
		unsettledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spa",
			Subsystem: "payments",
			Name:      "bookings_unsettled_total",
			Help:      "Bookings tied to a confirmed payment that were not yet completed",
		}),
		webhookLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spa",
			Subsystem: "payments",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of gateway webhook processing",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.checkoutTotal, m.webhookTotal, m.reconciledTotal, m.unsettledTotal, m.webhookLatency)
	return m
}

func (m *PaymentMetrics) ObserveCheckout(outcome string) {
	if m == nil {
		return
	}
	m.checkoutTotal.WithLabelValues(outcome).Inc()
}

func (m *PaymentMetrics) ObserveWebhook(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(outcome).Inc()
	m.webhookLatency.Observe(seconds)
}

func (m *PaymentMetrics) ObserveReconciled(updated, unsettled int) {
	if m == nil {
		return
	}
	m.reconciledTotal.Add(float64(updated))
	m.unsettledTotal.Add(float64(unsettled))
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
