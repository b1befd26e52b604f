package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"jobescrow/native/custody"
)

func TestSettlementCounterTracksTerminalEvents(t *testing.T) {
	counter := NewSettlementCounter()
	metrics := Metrics()

	paidBefore := testutil.ToFloat64(metrics.settlements.WithLabelValues("paid"))
	refundedBefore := testutil.ToFloat64(metrics.settlements.WithLabelValues("refunded"))

	counter.Emit(custody.PaidEvent{ID: [32]byte{1}})
	counter.Emit(custody.RefundedEvent{ID: [32]byte{2}})
	counter.Emit(custody.DisputeTimeoutRefundEvent{ID: [32]byte{3}})
	// Non-terminal events must not count.
	counter.Emit(custody.FundedEvent{ID: [32]byte{4}})
	counter.Emit(custody.DisputeOpenedEvent{ID: [32]byte{5}})

	paid := testutil.ToFloat64(metrics.settlements.WithLabelValues("paid")) - paidBefore
	refunded := testutil.ToFloat64(metrics.settlements.WithLabelValues("refunded")) - refundedBefore
	if paid != 1 {
		t.Fatalf("paid settlements = %v, want 1", paid)
	}
	if refunded != 2 {
		t.Fatalf("refunded settlements = %v, want 2", refunded)
	}
}

func TestObserveOperationOutcomeLabels(t *testing.T) {
	metrics := Metrics()
	okBefore := testutil.ToFloat64(metrics.operations.WithLabelValues("fund", "ok"))

	metrics.ObserveOperation("fund", nil)
	metrics.ObserveOperation("fund", nil)

	ok := testutil.ToFloat64(metrics.operations.WithLabelValues("fund", "ok")) - okBefore
	if ok != 2 {
		t.Fatalf("ok operations = %v, want 2", ok)
	}
}
