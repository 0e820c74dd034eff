package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestBookingMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveCreated(true)
	m.ObserveCreated(true)
	m.ObserveCreated(false)
	m.ObserveConflict()
	m.ObserveTransition("pending", "checked-in")
	m.ObserveNotifyFailure("email")

	if got := counterValue(t, reg, "spa_bookings_created_total", map[string]string{"staff_assigned": "true"}); got != 2 {
		t.Fatalf("expected 2 staffed creations, got %v", got)
	}
	if got := counterValue(t, reg, "spa_bookings_slot_conflicts_total", nil); got != 1 {
		t.Fatalf("expected 1 conflict, got %v", got)
	}
	if got := counterValue(t, reg, "spa_bookings_transitions_total", map[string]string{"from": "pending", "to": "checked-in"}); got != 1 {
		t.Fatalf("expected 1 transition, got %v", got)
	}
}

func TestPaymentMetricsReconciled(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)

	m.ObserveCheckout("created")
	m.ObserveWebhook("reconciled", 0.02)
	m.ObserveReconciled(2, 1)
	m.ObserveReconciled(0, 0)

	if got := counterValue(t, reg, "spa_payments_bookings_reconciled_total", nil); got != 2 {
		t.Fatalf("expected 2 reconciled, got %v", got)
	}
	if got := counterValue(t, reg, "spa_payments_bookings_unsettled_total", nil); got != 1 {
		t.Fatalf("expected 1 unsettled, got %v", got)
	}
	if got := counterValue(t, reg, "spa_payments_webhook_total", map[string]string{"outcome": "reconciled"}); got != 1 {
		t.Fatalf("expected 1 webhook, got %v", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var b *BookingMetrics
	b.ObserveCreated(true)
	b.ObserveConflict()
	b.ObserveTransition("a", "b")
	b.ObserveNotifyFailure("email")

	var p *PaymentMetrics
	p.ObserveCheckout("failed")
	p.ObserveWebhook("malformed", 0.1)
	p.ObserveReconciled(1, 1)
}
