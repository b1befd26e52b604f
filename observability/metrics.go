package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// CustodyMetrics records custody operation activity for the node's /metrics
// endpoint.
type CustodyMetrics struct {
	operations  *prometheus.CounterVec
	settlements *prometheus.CounterVec
}

var (
	custodyMetricsOnce sync.Once
	custodyRegistry    *CustodyMetrics
)

// Metrics returns the lazily-initialised custody metrics registry.
func Metrics() *CustodyMetrics {
	custodyMetricsOnce.Do(func() {
		custodyRegistry = &CustodyMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "jobescrow",
				Subsystem: "custody",
				Name:      "operations_total",
				Help:      "Custody operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "jobescrow",
				Subsystem: "custody",
				Name:      "settlements_total",
				Help:      "Terminal settlements segmented by result.",
			}, []string{"result"}),
		}
		prometheus.MustRegister(custodyRegistry.operations, custodyRegistry.settlements)
	})
	return custodyRegistry
}

// ObserveOperation counts one custody call, labelled ok or error.
func (m *CustodyMetrics) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// ObserveSettlement counts one terminal payout, result "paid" or "refunded".
func (m *CustodyMetrics) ObserveSettlement(result string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(result).Inc()
}
