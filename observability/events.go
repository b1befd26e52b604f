package observability

import (
	"jobescrow/core/events"
	"jobescrow/native/custody"
)

// SettlementCounter observes the custody event stream and feeds the
// settlement metrics. It can be fanned out alongside any other emitter.
type SettlementCounter struct {
	metrics *CustodyMetrics
}

// NewSettlementCounter returns a counter bound to the process metrics.
func NewSettlementCounter() *SettlementCounter {
	return &SettlementCounter{metrics: Metrics()}
}

// Emit implements the events.Emitter interface.
func (c *SettlementCounter) Emit(evt events.Event) {
	if c == nil || evt == nil {
		return
	}
	switch evt.EventType() {
	case custody.EventTypePaid:
		c.metrics.ObserveSettlement("paid")
	case custody.EventTypeRefunded:
		c.metrics.ObserveSettlement("refunded")
	case custody.EventTypeDisputeTimeoutRefund:
		c.metrics.ObserveSettlement("refunded")
	}
}
